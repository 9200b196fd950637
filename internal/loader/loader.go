// Package loader reads story files and verifies their checksums.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/zvm/internal/header"
	"github.com/kolkov/zvm/internal/memory"
)

var log = commonlog.GetLogger("zvm.loader")

// MaxSize is the largest version-3 story.
const MaxSize = 128 * 1024

// ErrChecksum reports a story whose bytes do not sum to the header checksum.
var ErrChecksum = errors.New("checksum mismatch")

// ChecksumError carries the declared and computed checksums.
type ChecksumError struct {
	Want uint16 // From the header
	Got  uint16 // Sum of the story bytes
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: header 0x%04x, computed 0x%04x", e.Want, e.Got)
}

// Is matches ErrChecksum.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}

// Story is a loaded image with its derived header.
type Story struct {
	Path   string
	Memory *memory.Memory
	Header *header.Header
}

// Read returns the contents of the story file at path.
func Read(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d",
			memory.ErrMalformedImage, path, info.Size(), MaxSize)
	}
	return os.ReadFile(path)
}

// Parse wraps data in memory and derives its header.
func Parse(data []byte) (*memory.Memory, *header.Header, error) {
	mem := memory.New(data)
	hdr, err := header.Derive(mem)
	if err != nil {
		return nil, nil, err
	}
	if hdr.Version != 3 {
		log.Warningf("story version %d, only version 3 is supported", hdr.Version)
	}
	return mem, hdr, nil
}

// Load reads and parses the story at path.
func Load(path string) (*Story, error) {
	data, err := Read(path)
	if err != nil {
		return nil, err
	}
	mem, hdr, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("loaded %s: %d bytes, version %d release %d serial %s",
		path, mem.Len(), hdr.Version, hdr.Release, hdr.Serial)
	return &Story{Path: path, Memory: mem, Header: hdr}, nil
}

// Checksum sums the bytes after the header up to the declared file length.
func Checksum(mem *memory.Memory, hdr *header.Header) uint16 {
	return mem.Sum(header.Size, hdr.ChecksumEnd())
}

// Verify compares the computed checksum against the header.
func Verify(mem *memory.Memory, hdr *header.Header) error {
	if got := Checksum(mem, hdr); got != hdr.Checksum {
		log.Warningf("checksum mismatch: header 0x%04x, computed 0x%04x", hdr.Checksum, got)
		return &ChecksumError{Want: hdr.Checksum, Got: got}
	}
	return nil
}

// Result is the outcome of checking one file.
type Result struct {
	Path   string
	Header *header.Header // nil if the file did not load
	Sum    uint16
	Err    error
}

// OK reports whether the file loaded and its checksum matched.
func (r Result) OK() bool {
	return r.Err == nil
}

// CheckAll loads and verifies every path concurrently. Results are in the
// order of paths; per-file failures are reported in Result.Err. The
// returned error is non-nil only if ctx was cancelled.
func CheckAll(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = check(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func check(path string) Result {
	r := Result{Path: path}
	story, err := Load(path)
	if err != nil {
		r.Err = err
		return r
	}
	r.Header = story.Header
	r.Sum = Checksum(story.Memory, story.Header)
	if err := Verify(story.Memory, story.Header); err != nil {
		r.Err = fmt.Errorf("%s: %w", path, err)
	}
	return r
}
