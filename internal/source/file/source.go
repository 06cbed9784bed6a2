// Package file is a source reading a recorded receiver log from disk.
package file

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/edie/pkg/novatel"
	"firestige.xyz/edie/pkg/plugin"
)

const Name = "file"

type Cfg struct {
	Path string `mapstructure:"path"`
}

type Source struct {
	path   string
	stream *novatel.FileStream
}

// NewSource is the registry factory.
func NewSource() plugin.Source {
	return &Source{}
}

// New returns a source for path. Start opens the file.
func New(path string) *Source {
	return &Source{path: path}
}

func (s *Source) Name() string { return Name }

func (s *Source) Init(cfg map[string]any) error {
	var c Cfg
	if err := mapstructure.Decode(cfg, &c); err != nil {
		return fmt.Errorf("decode file source config: %w", err)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	s.path = c.Path
	return nil
}

func (s *Source) Start(ctx context.Context) error {
	stream, err := novatel.OpenFileStream(s.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	s.stream = stream
	return nil
}

func (s *Source) Read(p []byte) (int, error) {
	if s.stream == nil {
		return 0, fmt.Errorf("file source not started")
	}
	return s.stream.Read(p)
}

func (s *Source) PercentRead() float64 {
	if s.stream == nil {
		return 0
	}
	return s.stream.PercentRead()
}

func (s *Source) Reset() error {
	if s.stream == nil {
		return fmt.Errorf("file source not started")
	}
	return s.stream.Reset()
}

func (s *Source) Stop(ctx context.Context) error {
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	return err
}
