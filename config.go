package zvm

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kolkov/zvm/internal/charset"
	"github.com/kolkov/zvm/internal/trace"
)

// Config holds configuration options for running a story.
type Config struct {
	// Output is the writer for story text.
	// If nil, output is captured and returned from Run.
	Output io.Writer `toml:"-"`

	// Charset is the encoding of the output stream (default: "utf-8").
	// Any WHATWG encoding label is accepted, such as "latin1" or "sjis".
	// Characters the charset cannot represent are replaced.
	Charset string `toml:"charset"`

	// LogLevel is the diagnostic log level: quiet, error, warn, info or
	// debug. The library never configures logging itself; the command
	// line tool applies this value.
	LogLevel string `toml:"log_level"`

	// VerifyChecksum rejects a story whose bytes do not match the header
	// checksum before running it.
	VerifyChecksum bool `toml:"verify_checksum"`

	// MaxSteps stops a run with ErrStepLimit after this many instructions.
	// Zero means no limit.
	MaxSteps uint64 `toml:"max_steps"`

	// Trace configures the instruction trace.
	Trace TraceConfig `toml:"trace"`
}

// TraceConfig controls instruction tracing. Tracing is enabled when any of
// Pattern, Output or Writer is set.
type TraceConfig struct {
	// Pattern is a regular expression over opcode names selecting which
	// instructions are traced. Empty traces everything.
	Pattern string `toml:"pattern"`

	// Format is "text" (default) or "cbor".
	Format string `toml:"format"`

	// Output is the trace file path; "-" or empty means stderr.
	Output string `toml:"output"`

	// Writer receives the trace instead of Output when set.
	Writer io.Writer `toml:"-"`
}

// Enabled reports whether any trace option is set.
func (t *TraceConfig) Enabled() bool {
	return t.Pattern != "" || t.Output != "" || t.Writer != nil
}

// applyDefaults fills in default values for unset Config fields.
func (c *Config) applyDefaults() {
	if c.Charset == "" {
		c.Charset = charset.Default
	}
	if c.Trace.Format == "" {
		c.Trace.Format = trace.Text.String()
	}
}

// validate checks the values applyDefaults cannot fix. It returns the
// compiled trace filter, nil when no pattern is set.
func (c *Config) validate() (*trace.Filter, error) {
	if _, err := charset.Canonical(c.Charset); err != nil {
		return nil, &ConfigError{Key: "charset", Err: err}
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		return nil, &ConfigError{Key: "trace.format", Err: err}
	}
	if c.Trace.Pattern == "" {
		return nil, nil
	}
	filter, err := trace.Compile(c.Trace.Pattern)
	if err != nil {
		return nil, &ConfigError{Key: "trace.pattern", Err: err}
	}
	return filter, nil
}

// LoadConfig reads a TOML configuration file. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, &ConfigError{
			Key: keys[0],
			Err: fmt.Errorf("unknown key in %s: %s", path, strings.Join(keys, ", ")),
		}
	}
	if _, err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
