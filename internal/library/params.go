package library

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"
)

// Parameters is the free-form parameter map a library receives from the
// configuration.
type Parameters map[string]any

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("dns_name", func(fl validator.FieldLevel) bool {
		_, ok := dns.IsDomainName(fl.Field().String())
		return ok
	}); err != nil {
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

// Decode copies the parameters into out, a pointer to a struct with yaml
// tags, and validates it against its validate tags. Keys that out does not
// declare are rejected.
func (p Parameters) Decode(out any) error {
	data, err := yaml.Marshal(map[string]any(p))
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode parameters: %w", err)
	}

	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fieldPath(e.Namespace()), e.Tag()))
			}
			return fmt.Errorf("invalid parameters: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
