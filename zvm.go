package zvm

import (
	"io"

	"github.com/kolkov/zvm/internal/loader"
)

// Version is the zvm version string.
const Version = "0.1.0"

// Run executes a story image and returns its output.
// This is a convenience function for one-off execution.
// For repeated execution of the same story, use Load followed by Story.Run.
//
// Example:
//
//	output, err := zvm.Run(data, nil)
func Run(data []byte, config *Config) (string, error) {
	story, err := Load(data)
	if err != nil {
		return "", err
	}
	return story.Run(config)
}

// Load parses a story image. The image is copied; data may be reused.
func Load(data []byte) (*Story, error) {
	image := make([]byte, len(data))
	copy(image, data)

	_, hdr, err := loader.Parse(image)
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	return &Story{image: image, header: hdr}, nil
}

// LoadFile reads and parses the story file at path.
func LoadFile(path string) (*Story, error) {
	data, err := loader.Read(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	_, hdr, err := loader.Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return &Story{image: data, header: hdr, path: path}, nil
}

// Exec runs a story with its output written to output.
//
// Example:
//
//	err := zvm.Exec(data, os.Stdout, nil)
func Exec(data []byte, output io.Writer, config *Config) error {
	story, err := Load(data)
	if err != nil {
		return err
	}

	if config == nil {
		config = &Config{}
	}
	config.Output = output

	_, err = story.Run(config)
	return err
}

// MustLoad is like Load but panics if the image cannot be parsed.
func MustLoad(data []byte) *Story {
	story, err := Load(data)
	if err != nil {
		panic(err)
	}
	return story
}
