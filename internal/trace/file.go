package trace

import (
	"bufio"
	"io"
	"os"
)

// File is a buffered trace destination.
type File struct {
	file   *os.File
	writer *bufio.Writer
}

// Create opens path for writing, truncating it. "-" writes to stderr.
func Create(path string) (*File, error) {
	if path == "-" {
		return &File{writer: bufio.NewWriter(os.Stderr)}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &File{file: f, writer: bufio.NewWriter(f)}, nil
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	return f.writer.Write(p)
}

// Close flushes buffered records and closes the file.
func (f *File) Close() error {
	err := f.writer.Flush()
	if f.file != nil {
		if cerr := f.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ io.WriteCloser = (*File)(nil)
