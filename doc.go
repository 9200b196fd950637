// Package zvm runs version-3 Z-machine story files.
//
// zvm decodes and executes instructions straight from the story image:
//   - Header-driven memory layout (dynamic, static and high memory)
//   - Z-character text with abbreviations and ZSCII escapes
//   - Routine calls with a shared evaluation stack and frames
//   - Output charset conversion and instruction tracing
//
// # Quick Start
//
// For simple one-off execution:
//
//	output, err := zvm.Run(data, nil)
//
// With configuration:
//
//	err := zvm.Exec(data, os.Stdout, &zvm.Config{
//	    Charset:        "latin1",
//	    VerifyChecksum: true,
//	})
//
// # Loaded Stories
//
// For repeated execution of the same story:
//
//	story, err := zvm.LoadFile("zork1.z3")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	output, err := story.Run(nil)
//
// # Configuration
//
// The [Config] type can be built in code or read from a TOML file with
// [LoadConfig]:
//
//	charset = "utf-8"
//	log_level = "warn"
//	verify_checksum = true
//	max_steps = 1000000
//
//	[trace]
//	pattern = "^(call|ret)"
//	format = "text"
//	output = "trace.log"
//
// # Error Handling
//
// Errors are returned as specific types for detailed handling:
//   - [LoadError]: the image is malformed or fails its checksum
//   - [ConfigError]: an invalid configuration value
//   - [RuntimeError]: an error during execution
//
// All of them unwrap to the sentinel errors declared in this package, so
// errors.Is(err, zvm.ErrUnsupportedOpcode) works on any of them.
//
// # Thread Safety
//
// A loaded [Story] is safe for concurrent use. Each call to [Story.Run]
// executes on a private copy of the image.
package zvm
