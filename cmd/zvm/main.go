// zvm - Z-machine interpreter
//
// Runs version-3 story files with output on stdout.
// Uses manual argument parsing in the style of the POSIX tools (supports
// -Tpattern style flags).
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/kolkov/zvm"
	"github.com/kolkov/zvm/internal/loader"
	"github.com/kolkov/zvm/internal/logging"
)

// version is set by GoReleaser at build time via -ldflags.
// For development builds, it will be "dev".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var log = commonlog.GetLogger("zvm.cmd")

const (
	shortUsage = "usage: zvm [options] story.z3\n       zvm -check story.z3 ..."
	longUsage  = `Run options:
  -c file           read configuration from a TOML file
  -charset name     output charset (default utf-8), e.g. latin1, sjis
  -verify           refuse to run a story that fails its checksum
  -max-steps N      stop after N instructions (default: no limit)

Tracing:
  -t                trace every instruction to stderr
  -T pattern        trace instructions whose opcode name matches pattern
  -trace-format f   trace format: text (default) or cbor
  -trace-out file   write the trace to file instead of stderr

Inspection:
  -d                print a disassembly of reachable code and exit
  -info             print the story header and exit
  -check            verify the checksums of all named stories and exit

Other:
  -log-level level  quiet, error, warn (default), info or debug;
                    also read from $ZVM_LOG_LEVEL
  -h, --help        show this help message
  -version          show zvm version and exit
`
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options are the parsed command line flags.
type options struct {
	configFile  string
	charset     string
	logLevel    string
	verify      bool
	maxSteps    uint64
	trace       bool
	pattern     string
	traceFormat string
	traceOut    string
	disasm      bool
	info        bool
	check       bool
	help        bool
	version     bool
	args        []string
}

//nolint:gocyclo,funlen // CLI argument parsing is inherently complex
func parseArgs(argv []string) (*options, error) {
	opts := &options{}

	// value returns the argument of a flag at argv[*i], advancing past it.
	value := func(i *int, flag string) (string, error) {
		if *i+1 >= len(argv) {
			return "", fmt.Errorf("flag needs an argument: %s", flag)
		}
		*i++
		return argv[*i], nil
	}

	var i int
	var err error
	for i = 0; i < len(argv); i++ {
		// Stop on explicit end of args or first arg not prefixed with "-"
		arg := argv[i]
		if arg == "--" {
			i++
			break
		}
		if arg == "-" || !strings.HasPrefix(arg, "-") {
			break
		}

		switch arg {
		case "-c":
			opts.configFile, err = value(&i, arg)
		case "-charset", "--charset":
			opts.charset, err = value(&i, arg)
		case "-log-level", "--log-level":
			opts.logLevel, err = value(&i, arg)
		case "-verify", "--verify":
			opts.verify = true
		case "-max-steps", "--max-steps":
			var s string
			if s, err = value(&i, arg); err == nil {
				opts.maxSteps, err = strconv.ParseUint(s, 10, 64)
				if err != nil {
					err = fmt.Errorf("invalid step limit: %s", s)
				}
			}
		case "-t":
			opts.trace = true
		case "-T":
			opts.pattern, err = value(&i, arg)
			opts.trace = true
		case "-trace-format", "--trace-format":
			opts.traceFormat, err = value(&i, arg)
		case "-trace-out", "--trace-out":
			opts.traceOut, err = value(&i, arg)
			opts.trace = true
		case "-d":
			opts.disasm = true
		case "-info", "--info":
			opts.info = true
		case "-check", "--check":
			opts.check = true
		case "-h", "--help":
			opts.help = true
		case "-version", "--version":
			opts.version = true
		default:
			// Handle flags with no space: -Tpattern, -cfile
			switch {
			case strings.HasPrefix(arg, "-T"):
				opts.pattern = arg[2:]
				opts.trace = true
			case strings.HasPrefix(arg, "-c") && len(arg) > 2:
				opts.configFile = arg[2:]
			default:
				err = fmt.Errorf("flag provided but not defined: %s", arg)
			}
		}
		if err != nil {
			return nil, err
		}
	}

	opts.args = argv[i:]
	return opts, nil
}

// config merges the configuration file with the command line flags.
func (o *options) config() (*zvm.Config, error) {
	config := &zvm.Config{}
	if o.configFile != "" {
		c, err := zvm.LoadConfig(o.configFile)
		if err != nil {
			return nil, err
		}
		config = c
	}

	if o.charset != "" {
		config.Charset = o.charset
	}
	if o.verify {
		config.VerifyChecksum = true
	}
	if o.maxSteps > 0 {
		config.MaxSteps = o.maxSteps
	}
	if o.trace {
		if o.pattern != "" {
			config.Trace.Pattern = o.pattern
		}
		if o.traceOut != "" {
			config.Trace.Output = o.traceOut
		}
		if config.Trace.Output == "" {
			config.Trace.Output = "-"
		}
	}
	if o.traceFormat != "" {
		config.Trace.Format = o.traceFormat
	}
	return config, nil
}

// run executes the command and returns the process exit status.
func run(argv []string, stdout, stderr io.Writer) int {
	errorExit := func(err error) int {
		fmt.Fprintf(stderr, "zvm: %v\n", err)
		return 1
	}

	opts, err := parseArgs(argv)
	if err != nil {
		return errorExit(err)
	}
	if opts.help {
		fmt.Fprintf(stdout, "zvm %s - Z-machine interpreter\n\n%s\n\n%s", version, shortUsage, longUsage)
		return 0
	}
	if opts.version {
		fmt.Fprintf(stdout, "zvm version %s\n", version)
		fmt.Fprintf(stdout, "  commit: %s\n", commit)
		fmt.Fprintf(stdout, "  built:  %s\n", date)
		fmt.Fprintf(stdout, "  core:   %s\n", zvm.Version)
		return 0
	}

	config, err := opts.config()
	if err != nil {
		return errorExit(err)
	}
	level := opts.logLevel
	if level == "" {
		level = config.LogLevel
	}
	if err := logging.Init(logging.Level(level)); err != nil {
		return errorExit(err)
	}
	if opts.configFile != "" {
		log.Infof("configuration read from %s", opts.configFile)
	}

	if len(opts.args) == 0 {
		fmt.Fprintln(stderr, shortUsage)
		return 2
	}

	if opts.check {
		return check(opts.args, stdout, stderr)
	}
	if len(opts.args) > 1 {
		return errorExit(fmt.Errorf("too many arguments: %s", strings.Join(opts.args[1:], " ")))
	}

	story, err := zvm.LoadFile(opts.args[0])
	if err != nil {
		return errorExit(err)
	}

	if opts.info {
		fmt.Fprintln(stdout, story.Info())
		return 0
	}
	if opts.disasm {
		listing, err := story.Disassemble()
		io.WriteString(stdout, listing)
		if err != nil {
			return errorExit(err)
		}
		return 0
	}

	// Buffered output for performance
	out := bufio.NewWriter(stdout)
	config.Output = out
	_, err = story.Run(config)
	if ferr := out.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return errorExit(err)
	}
	return 0
}

// check verifies every story and reports one line per file.
func check(paths []string, stdout, stderr io.Writer) int {
	results, err := loader.CheckAll(context.Background(), paths)
	if err != nil {
		fmt.Fprintf(stderr, "zvm: %v\n", err)
		return 1
	}

	status := 0
	for _, r := range results {
		if !r.OK() {
			fmt.Fprintf(stdout, "%s: FAIL %v\n", r.Path, r.Err)
			status = 1
			continue
		}
		fmt.Fprintf(stdout, "%s: ok release %d serial %s checksum 0x%04x\n",
			r.Path, r.Header.Release, r.Header.Serial, r.Sum)
	}
	return status
}
