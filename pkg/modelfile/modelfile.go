/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: modelfile.go
Description: Loading and saving fuzzy models. INI is the native layout; YAML and JSON
carry the same content as a Document. The format is picked from the file extension.
*/

package modelfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"gopkg.in/yaml.v3"
)

// Format names a model file encoding
type Format string

const (
	FormatINI  Format = "ini"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// SaveOptions controls optional output
type SaveOptions struct {
	// Comments adds a format guide header and per-section descriptions (INI only)
	Comments bool
}

// FormatFromPath picks the format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".fz", ".fuzzy":
		return FormatINI, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported model file extension %q", filepath.Ext(path))
}

// ParseFormat accepts a format name as given on the command line
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ini", "fz":
		return FormatINI, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported model format %q", name)
}

// Load reads and validates the model at path
func Load(path string) (*fuzzy.Model, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer fh.Close()

	m, err := Decode(fh, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return m, nil
}

// Save writes m to path in the format implied by its extension
func Save(path string, m *fuzzy.Model, opts SaveOptions) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, m, format, opts); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// Decode reads a model in the given format
func Decode(r io.Reader, format Format) (*fuzzy.Model, error) {
	switch format {
	case FormatINI:
		return decodeINI(r)
	case FormatYAML:
		var doc Document
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode yaml model: %w", err)
		}
		return doc.Model()
	case FormatJSON:
		var doc Document
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode json model: %w", err)
		}
		return doc.Model()
	}
	return nil, fmt.Errorf("unsupported model format %q", format)
}

// Encode writes m in the given format
func Encode(w io.Writer, m *fuzzy.Model, format Format, opts SaveOptions) error {
	switch format {
	case FormatINI:
		f, err := encodeINI(m, opts)
		if err != nil {
			return fmt.Errorf("failed to encode ini model: %w", err)
		}
		return f.Write(w)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(FromModel(m)); err != nil {
			return fmt.Errorf("failed to encode yaml model: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(FromModel(m)); err != nil {
			return fmt.Errorf("failed to encode json model: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unsupported model format %q", format)
}
