// Package logging configures the commonlog backend shared by all zvm
// packages. Packages obtain named loggers with commonlog.GetLogger; this
// package only decides how much of it reaches the log writer.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	"github.com/tliron/commonlog/simple"
)

// DefaultLevel is used when neither a flag nor the environment names a level.
const DefaultLevel = "warn"

// EnvLevel is the environment variable consulted for the log level.
const EnvLevel = "ZVM_LOG_LEVEL"

// Verbosity maps a level name to a commonlog verbosity.
func Verbosity(level string) (int, error) {
	switch strings.ToLower(level) {
	case "quiet", "none":
		return -4, nil
	case "error":
		return -2, nil
	case "warn", "warning":
		return -1, nil
	case "info":
		return 1, nil
	case "debug":
		return 2, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// Level picks the effective level name: flag if set, then $ZVM_LOG_LEVEL,
// then DefaultLevel.
func Level(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvLevel); env != "" {
		return env
	}
	return DefaultLevel
}

// Init logs to stderr at the named level.
func Init(level string) error {
	return InitWriter(level, nil)
}

// InitWriter logs to w at the named level. A nil w means stderr.
func InitWriter(level string, w io.Writer) error {
	verbosity, err := Verbosity(level)
	if err != nil {
		return err
	}

	backend := simple.NewBackend()
	backend.Buffered = false
	backend.Configure(verbosity, nil)
	if w != nil && verbosity > -4 {
		backend.Writer = w
	}
	commonlog.SetBackend(backend)
	return nil
}
