package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/miekg/dns"
)

var hookNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// reserved hook names are registered by the dispatch core itself.
var reservedHooks = map[string]bool{
	"context_create":  true,
	"context_destroy": true,
}

// ValidationError is a single validation failure with its field path.
type ValidationError struct {
	FieldPath string
	Message   string
}

// ValidationErrors collects every failure found in one pass.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "validation failed with %d error(s):", len(ve))
	for i, err := range ve {
		fmt.Fprintf(&sb, "\n  %d. %s: %s", i+1, err.FieldPath, err.Message)
	}
	return sb.String()
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("dns_name", validateDNSName); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("hook_name", validateHookName); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("no_placeholder", validateNoPlaceholder); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateDNSName(fl validator.FieldLevel) bool {
	_, ok := dns.IsDomainName(fl.Field().String())
	return ok
}

func validateHookName(fl validator.FieldLevel) bool {
	return hookNamePattern.MatchString(fl.Field().String())
}

// validateNoPlaceholder rejects values still carrying an unresolved ${VAR}.
func validateNoPlaceholder(fl validator.FieldLevel) bool {
	return !envVarPattern.MatchString(fl.Field().String())
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "hostname_port":
		return "must be in format 'host:port'"
	case "ip":
		return "must be a valid IP address"
	case "dns_name":
		return "must be a valid domain name"
	case "hook_name":
		return "must consist of lowercase letters, digits and underscores, starting with a letter"
	case "no_placeholder":
		return "contains an unresolved ${VAR} placeholder"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// Validate checks the configuration and returns every problem found as
// ValidationErrors. Sections that are disabled are not validated.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, structErrors(c.Service, "service")...)
	errs = append(errs, c.validateHooks()...)
	errs = append(errs, c.validateLibraries()...)
	if c.DNS.Enabled {
		errs = append(errs, structErrors(c.DNS, "dns")...)
	}
	if c.Journal.Enabled {
		errs = append(errs, structErrors(c.Journal, "journal")...)
	}
	if c.API.Enabled {
		errs = append(errs, structErrors(c.API, "api")...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateHooks() ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool, len(c.Hooks))

	for i, name := range c.Hooks {
		path := fmt.Sprintf("hooks.%d", i)
		if err := validate.Var(name, "required,hook_name"); err != nil {
			errs = append(errs, fieldErrors(err, path)...)
			continue
		}
		if reservedHooks[name] {
			errs = append(errs, ValidationError{FieldPath: path, Message: fmt.Sprintf("%q is reserved", name)})
			continue
		}
		if seen[name] {
			errs = append(errs, ValidationError{FieldPath: path, Message: fmt.Sprintf("duplicate hook: %s", name)})
		}
		seen[name] = true
	}
	return errs
}

func (c *Config) validateLibraries() ValidationErrors {
	var errs ValidationErrors
	for i, spec := range c.Libraries {
		errs = append(errs, structErrors(spec, fmt.Sprintf("hooks_libraries.%d", i))...)
	}
	return errs
}

func structErrors(s any, prefix string) ValidationErrors {
	if err := validate.Struct(s); err != nil {
		return convertValidatorErrors(err, prefix)
	}
	return nil
}

// fieldErrors converts a validate.Var failure, which carries no field name.
func fieldErrors(err error, path string) ValidationErrors {
	var out ValidationErrors
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			out = append(out, ValidationError{FieldPath: path, Message: validationMessage(e)})
		}
	}
	return out
}

func convertValidatorErrors(err error, prefix string) ValidationErrors {
	var out ValidationErrors

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return append(out, ValidationError{FieldPath: prefix, Message: err.Error()})
	}

	for _, e := range verrs {
		// Namespace is "<Struct>.<yaml path>"; drop the struct name.
		path := e.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		if prefix != "" {
			path = prefix + "." + path
		}
		out = append(out, ValidationError{FieldPath: path, Message: validationMessage(e)})
	}
	return out
}
