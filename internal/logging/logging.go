// Package logging builds the hclog logger shared by every iamctl component.
package logging

import (
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// New returns the root "iamctl" logger. Unknown levels fall back to warn so
// interactive prompts are not drowned out by engine chatter.
func New(level string, json bool, w io.Writer) hclog.Logger {
	lvl := hclog.LevelFromString(strings.TrimSpace(level))
	if lvl == hclog.NoLevel {
		lvl = hclog.Warn
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "iamctl",
		Level:      lvl,
		Output:     w,
		JSONFormat: json,
	})
}
