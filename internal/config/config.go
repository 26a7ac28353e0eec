// Package config loads the run configuration for the pairmerge command.
//
// Files are TOML (.toml) or YAML (.yaml, .yml). Every field is optional;
// unset fields keep the values from Default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/seiflotfy/pairmerge"
)

// DefaultBudget is the merge budget used when none is configured.
const DefaultBudget = 500

// ErrInvalid indicates a configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

// Run is the configuration of one pairmerge run.
type Run struct {
	// Input is the text file to read ("" or "-" reads stdin).
	Input string `toml:"input" yaml:"input"`
	// Strategy is fixed, optimal or search. Empty selects search for a
	// positive budget and optimal otherwise.
	Strategy string `toml:"strategy" yaml:"strategy"`
	// Budget is the merge count for fixed and search.
	Budget int `toml:"budget" yaml:"budget"`
	// CollapseWhitespace collapses whitespace runs while preprocessing.
	CollapseWhitespace bool `toml:"collapse_whitespace" yaml:"collapse_whitespace"`
	// Trace forces the cost trace into the report.
	Trace bool `toml:"trace" yaml:"trace"`

	Workers      int     `toml:"workers" yaml:"workers"`
	ChunkSize    int     `toml:"chunk_size" yaml:"chunk_size"`
	ReservedBase int     `toml:"reserved_base" yaml:"reserved_base"`
	ReservedSize int     `toml:"reserved_size" yaml:"reserved_size"`
	AlphabetBase float64 `toml:"alphabet_base" yaml:"alphabet_base"`
}

// Default returns the configuration used without a file.
func Default() Run {
	return Run{Budget: DefaultBudget}
}

// ParseError describes a configuration file that could not be decoded.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads path on top of Default.
func Load(path string) (Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes data, choosing the format from the extension of path.
func Parse(path string, data []byte) (Run, error) {
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Run{}, tomlParseError(path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Run{}, &ParseError{Path: path, Message: err.Error(), Err: err}
		}
	default:
		return Run{}, fmt.Errorf("%w: unsupported config format %q", ErrInvalid, ext)
	}
	return cfg, nil
}

func tomlParseError(path string, err error) error {
	perr := &ParseError{Path: path, Message: err.Error(), Err: err}
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		perr.Line, perr.Column = derr.Position()
	}
	return perr
}

// Validate checks field ranges.
func (r Run) Validate() error {
	if _, err := r.ResolveStrategy(); err != nil {
		return err
	}
	if r.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalid, r.Workers)
	}
	if r.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk_size %d", ErrInvalid, r.ChunkSize)
	}
	if r.ReservedBase < 0 || r.ReservedBase > unicode.MaxRune || r.ReservedSize < 0 {
		return fmt.Errorf("%w: reserved range %d+%d", ErrInvalid, r.ReservedBase, r.ReservedSize)
	}
	if r.AlphabetBase < 0 {
		return fmt.Errorf("%w: alphabet_base %v", ErrInvalid, r.AlphabetBase)
	}
	return nil
}

// ResolveStrategy turns Strategy and Budget into an engine strategy.
func (r Run) ResolveStrategy() (pairmerge.Strategy, error) {
	if r.Strategy == "" {
		if r.Budget > 0 {
			return pairmerge.Search(r.Budget), nil
		}
		return pairmerge.Optimal(), nil
	}

	kind, err := pairmerge.ParseKind(r.Strategy)
	if err != nil {
		return pairmerge.Strategy{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if kind != pairmerge.KindOptimal && r.Budget < 0 {
		return pairmerge.Strategy{}, fmt.Errorf("%w: %s needs a budget >= 0, got %d", ErrInvalid, kind, r.Budget)
	}
	return pairmerge.Strategy{Kind: kind, Budget: r.Budget}, nil
}

// EngineOptions converts the tuning fields to engine options.
func (r Run) EngineOptions() []pairmerge.Option {
	opts := []pairmerge.Option{
		pairmerge.WithWorkers(r.Workers),
		pairmerge.WithChunkSize(r.ChunkSize),
		pairmerge.WithAlphabetBase(r.AlphabetBase),
	}
	if r.ReservedBase != 0 || r.ReservedSize != 0 {
		opts = append(opts, pairmerge.WithReservedRange(rune(r.ReservedBase), r.ReservedSize))
	}
	return opts
}
