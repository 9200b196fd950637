package zvm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kolkov/zvm/internal/charset"
	"github.com/kolkov/zvm/internal/decoder"
	"github.com/kolkov/zvm/internal/header"
	"github.com/kolkov/zvm/internal/loader"
	"github.com/kolkov/zvm/internal/memory"
	"github.com/kolkov/zvm/internal/trace"
	"github.com/kolkov/zvm/internal/vm"
)

// Story is a parsed story image ready for execution.
// It is safe for concurrent use; each call to Run executes on a private
// copy of the image.
type Story struct {
	image  []byte // pristine bytes, never written
	header *header.Header
	path   string
}

// Info describes a story's header.
type Info struct {
	Version    uint8
	Release    uint16
	Serial     string
	InitialPC  int
	Checksum   uint16
	FileLength int // Declared length, 0 if unset
	Size       int // Actual image length

	header *header.Header
}

// String renders the full header layout.
func (i Info) String() string {
	return i.header.String()
}

// Info returns the story's header fields.
func (s *Story) Info() Info {
	h := s.header
	return Info{
		Version:    h.Version,
		Release:    h.Release,
		Serial:     h.Serial,
		InitialPC:  h.InitialPC,
		Checksum:   h.Checksum,
		FileLength: h.FileLength,
		Size:       len(s.image),
		header:     h,
	}
}

// Path returns the file the story was loaded from, or "" for images
// loaded from memory.
func (s *Story) Path() string {
	return s.path
}

// Verify checks the image against its header checksum.
func (s *Story) Verify() error {
	if err := loader.Verify(memory.New(s.image), s.header); err != nil {
		return &LoadError{Path: s.path, Err: err}
	}
	return nil
}

// Disassemble returns a listing of the code reachable from the initial
// program counter. On a decode error the listing holds everything decoded
// before it.
func (s *Story) Disassemble() (string, error) {
	mem := memory.New(s.image)
	d := decoder.New(mem, s.header.Abbrevs)
	instrs, err := d.Walk(s.header.InitialPC, s.header.RoutineAddr)
	listing := decoder.Listing(instrs)
	if err != nil {
		return listing, &LoadError{Path: s.path, Err: err}
	}
	return listing, nil
}

// Run executes the story with the given configuration.
// Returns the output as a string, or an error if execution fails.
//
// If config is nil, default configuration is used.
// If config.Output is set, output is written there and the returned
// string will be empty. Output produced before an error is kept.
func (s *Story) Run(config *Config) (string, error) {
	if config == nil {
		config = &Config{}
	}
	c := *config
	c.applyDefaults()
	filter, err := c.validate()
	if err != nil {
		return "", err
	}

	if c.VerifyChecksum {
		if err := s.Verify(); err != nil {
			return "", err
		}
	}

	// Set output capture if not provided
	var outputBuf *bytes.Buffer
	var out io.Writer = c.Output
	if out == nil {
		outputBuf = &bytes.Buffer{}
		out = outputBuf
	}
	encoded, err := charset.NewWriter(out, c.Charset)
	if err != nil {
		return "", &ConfigError{Key: "charset", Err: err}
	}

	var tracer *trace.Tracer
	var traceFile io.Closer
	if c.Trace.Enabled() {
		tw := c.Trace.Writer
		if tw == nil {
			path := c.Trace.Output
			if path == "" {
				path = "-"
			}
			f, err := trace.Create(path)
			if err != nil {
				return "", &ConfigError{Key: "trace.output", Err: err}
			}
			tw, traceFile = f, f
		}
		tracer, err = newTracer(tw, c.Trace.Format, filter)
		if err != nil {
			if traceFile != nil {
				traceFile.Close()
			}
			return "", err
		}
	}

	// Fresh memory per run keeps the story reusable.
	image := make([]byte, len(s.image))
	copy(image, s.image)
	machine := vm.NewWithConfig(memory.New(image), s.header, vm.Config{
		Output:   encoded,
		MaxSteps: c.MaxSteps,
	})
	if tracer != nil {
		machine.SetTracer(tracer)
	}

	runErr := machine.Run()
	closeErr := encoded.Close()
	if traceFile != nil {
		if err := traceFile.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("trace: %w", err)
		}
	}

	var output string
	if outputBuf != nil {
		output = outputBuf.String()
	}
	if runErr != nil {
		return output, runtimeError(runErr)
	}
	if closeErr != nil {
		return output, closeErr
	}
	return output, nil
}

// newTracer builds a tracer from validated options.
func newTracer(w io.Writer, name string, filter *trace.Filter) (*trace.Tracer, error) {
	format, err := trace.ParseFormat(name)
	if err != nil {
		return nil, &ConfigError{Key: "trace.format", Err: err}
	}
	return trace.New(w, format, filter), nil
}
