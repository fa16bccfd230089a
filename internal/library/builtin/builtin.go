// Package builtin holds the hooks libraries compiled into hookd.
package builtin

import (
	"github.com/mattjoyce/hookd/internal/library"
)

const version = "1.0.0"

// Register adds every builtin library to the catalog.
func Register(c *library.Catalog) error {
	for name, f := range map[string]library.Factory{
		QueryLogName:  func() library.Module { return NewQueryLog() },
		BlocklistName: func() library.Module { return NewBlocklist() },
		TTLClampName:  func() library.Module { return NewTTLClamp() },
	} {
		if err := c.Add(name, f); err != nil {
			return err
		}
	}
	return nil
}
