// Package pairmerge compresses text by greedy pair merging.
//
// An Engine repeatedly merges the most frequent word-internal pair of
// adjacent symbols into a fresh synthetic symbol and records the merge in a
// replacement table. A Strategy decides how many merges to keep, using a cost
// model of the table plus the remaining text.
//
//	eng, err := pairmerge.NewEngine()
//	res, err := eng.Run(text, pairmerge.Optimal())
//	res.WriteTo(os.Stdout)
package pairmerge

import (
	"errors"
	"fmt"

	"github.com/seiflotfy/pairmerge/cost"
	"github.com/seiflotfy/pairmerge/merge"
)

// Config holds configuration for the engine.
type Config struct {
	Workers      int      // Counting goroutines per merge step (0 = GOMAXPROCS)
	ChunkSize    int      // Pair positions per counting chunk (0 = default)
	ReservedBase rune     // First synthetic symbol (0 = U+F0000)
	ReservedSize int      // Number of synthetic symbols (0 = default)
	AlphabetBase float64  // Cost model base alphabet (0 = 30)
	CacheSize    int      // Memoised expansions per table (0 = default)
	Observer     Observer // Called after every merge attempt (nil = none)
}

// Option is a functional option for configuring the engine.
type Option func(*Config)

// WithWorkers sets the number of goroutines counting pairs in one step.
// Values below 1 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithChunkSize sets how many pair positions each counting chunk covers.
func WithChunkSize(n int) Option {
	return func(c *Config) {
		c.ChunkSize = n
	}
}

// WithReservedRange sets the code points used for synthetic symbols.
// Input containing any of them is rejected. A size of 0 picks the largest
// valid size up to the default.
func WithReservedRange(base rune, size int) Option {
	return func(c *Config) {
		c.ReservedBase = base
		c.ReservedSize = size
	}
}

// WithAlphabetBase sets the base alphabet size of the cost model.
func WithAlphabetBase(base float64) Option {
	return func(c *Config) {
		c.AlphabetBase = base
	}
}

// WithCacheSize sets how many expansions the decoder memoises.
func WithCacheSize(n int) Option {
	return func(c *Config) {
		c.CacheSize = n
	}
}

// WithObserver registers a callback invoked after every merge attempt.
func WithObserver(o Observer) Option {
	return func(c *Config) {
		c.Observer = o
	}
}

// Progress describes one merge attempt.
type Progress struct {
	Strategy   Strategy
	Step       int        // Zero-based attempt number
	Pair       merge.Pair // Pair selected by the merge step
	Count      int        // Frequency of Pair before merging
	TextLength int        // Length of the text after the attempt
	Cost       float64    // Total cost recorded for the attempt
	Accepted   bool       // Whether the merge was committed
}

// Observer receives progress from a running strategy.
type Observer func(Progress)

var (
	// ErrInvalidBudget indicates a negative merge budget.
	ErrInvalidBudget = errors.New("invalid budget")
	// ErrInvalidAlphabetBase indicates a cost model base that makes
	// log2 undefined or negative.
	ErrInvalidAlphabetBase = errors.New("invalid alphabet base")
	// ErrUnknownStrategy indicates an unrecognised strategy kind.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrSymbolsExhausted indicates the reserved range ran out of symbols.
	ErrSymbolsExhausted = merge.ErrSymbolsExhausted
	// ErrReservedSymbol indicates input overlapping the reserved range.
	ErrReservedSymbol = merge.ErrReservedSymbol
	// ErrInvalidReservedRange indicates an unusable reserved range.
	ErrInvalidReservedRange = merge.ErrInvalidReservedRange
)

// Engine runs stopping strategies over merge steps.
// An Engine is immutable and may be shared between goroutines; every run
// owns its own text and table.
type Engine struct {
	config Config
	merger *merge.Merger
	model  cost.Model
}

// NewEngine creates an engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.AlphabetBase == 0 {
		cfg.AlphabetBase = cost.DefaultAlphabetBase
	}
	if !(cfg.AlphabetBase >= 1) { // Rejects NaN too
		return nil, fmt.Errorf("%w: %v", ErrInvalidAlphabetBase, cfg.AlphabetBase)
	}

	merger, err := merge.New(merge.Config{
		ReservedBase: cfg.ReservedBase,
		ReservedSize: cfg.ReservedSize,
		Workers:      cfg.Workers,
		ChunkSize:    cfg.ChunkSize,
		CacheSize:    cfg.CacheSize,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		config: cfg,
		merger: merger,
		model:  cost.Model{AlphabetBase: cfg.AlphabetBase},
	}, nil
}

// Merger returns the engine's merge step.
func (e *Engine) Merger() *merge.Merger {
	return e.merger
}

// Model returns the engine's cost model.
func (e *Engine) Model() cost.Model {
	return e.model
}
