// Package logging builds the process logger. Output is one JSON object per
// line unless text output is requested.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"

	"docstore/internal/config"
)

const name = "docstore"

// New returns the root logger configured from cfg, writing to stdout.
func New(cfg config.LogConfig) hclog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit destination, used by tests.
func NewWithWriter(cfg config.LogConfig, w io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(cfg.Level),
		Output:     w,
		JSONFormat: cfg.JSON,
		TimeFormat: time.RFC3339Nano,
	})
}
