package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a database document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the document format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return FormatJSON, fmt.Errorf("unsupported database extension %q (must be .json/.yaml/.yml)", filepath.Ext(path))
	}
}

// Load reads a database from path.
func Load(path string) (*Database, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("empty database path")
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database %s: %w", path, err)
	}
	db, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database %s: %w", path, err)
	}
	return db, nil
}

// LoadAll loads every path in order and merges them into one database.
func LoadAll(paths ...string) (*Database, error) {
	if len(paths) == 0 {
		return nil, errors.New("no database path given")
	}
	db, err := Load(paths[0])
	if err != nil {
		return nil, err
	}
	for _, path := range paths[1:] {
		next, err := Load(path)
		if err != nil {
			return nil, err
		}
		if err := db.Merge(next); err != nil {
			return nil, fmt.Errorf("failed to merge database %s: %w", path, err)
		}
	}
	return db, nil
}

// Parse decodes a database document.
func Parse(data []byte, format Format) (*Database, error) {
	db := &Database{}
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(db); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, db); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown database format %d", format)
	}
	if err := db.link(); err != nil {
		return nil, err
	}
	return db, nil
}
