// Package config reads a colxfer job file: which source to connect to,
// the queries to partition by, and how to size the transfer. Decoding
// follows smf's internal/parser/toml.Parser — BurntSushi/toml.Decoder
// into an unexported document struct, then a small conversion step — but
// targets a job description instead of a DDL schema file.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Job is a fully decoded, validated transfer job.
type Job struct {
	Source      SourceConfig
	Destination DestinationConfig
	Queries     []string
	Concurrency int
}

// SourceConfig names the database/sql driver and DSN a sqlsource.Source
// connects with, plus its row buffer size.
type SourceConfig struct {
	Driver  string
	DSN     string
	BufSize int
}

// DestinationConfig selects arrowdest-specific tuning. Allocator is
// "checked" for leak-detecting allocation, anything else (including
// empty) for the plain Go allocator.
type DestinationConfig struct {
	Allocator string
}

type document struct {
	Source struct {
		Driver  string `toml:"driver"`
		DSN     string `toml:"dsn"`
		BufSize int    `toml:"buf_size"`
	} `toml:"source"`
	Destination struct {
		Allocator string `toml:"allocator"`
	} `toml:"destination"`
	Queries     []string `toml:"queries"`
	Concurrency int      `toml:"concurrency"`
}

// LoadFile opens path and decodes it as a job file.
func LoadFile(path string) (*Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a job file from r.
func Load(r io.Reader) (*Job, error) {
	var doc document
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return convert(&doc)
}

func convert(doc *document) (*Job, error) {
	if doc.Source.Driver == "" {
		return nil, fmt.Errorf("config: source.driver is required")
	}
	if doc.Source.DSN == "" {
		return nil, fmt.Errorf("config: source.dsn is required")
	}
	if len(doc.Queries) == 0 {
		return nil, fmt.Errorf("config: at least one query is required")
	}

	return &Job{
		Source: SourceConfig{
			Driver:  doc.Source.Driver,
			DSN:     doc.Source.DSN,
			BufSize: doc.Source.BufSize,
		},
		Destination: DestinationConfig{
			Allocator: doc.Destination.Allocator,
		},
		Queries:     append([]string(nil), doc.Queries...),
		Concurrency: doc.Concurrency,
	}, nil
}
