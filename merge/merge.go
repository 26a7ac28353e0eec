// Package merge implements the pair merge step and the replacement table.
//
// A merge step counts adjacent symbol pairs, picks the most frequent
// word-internal pair and substitutes every non-overlapping occurrence with a
// fresh synthetic symbol taken from a reserved code-point range.
package merge

import (
	"errors"
	"fmt"
	"runtime"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultReservedBase is the first code point of Supplementary Private
	// Use Area-A.
	DefaultReservedBase = rune(0xF0000)
	// DefaultReservedSize covers U+F0000..U+FFFFD.
	DefaultReservedSize = 0xFFFFE - 0xF0000
	// DefaultChunkSize is the number of pair positions counted per worker chunk.
	DefaultChunkSize = 1 << 16
	// DefaultCacheSize is the number of memoised expansions kept per table.
	DefaultCacheSize = 4096

	minReservedBase = rune(0x80)
	surrogateMin    = rune(0xD800)
	surrogateMax    = rune(0xDFFF)
)

var (
	// ErrSymbolsExhausted indicates a merge would need a synthetic symbol
	// beyond the reserved range.
	ErrSymbolsExhausted = errors.New("synthetic symbols exhausted")
	// ErrReservedSymbol indicates the input already contains a symbol from
	// the reserved synthetic range.
	ErrReservedSymbol = errors.New("input contains reserved symbol")
	// ErrInvalidReservedRange indicates an unusable reserved range.
	ErrInvalidReservedRange = errors.New("invalid reserved range")
)

// Pair is an ordered pair of adjacent symbols.
type Pair struct {
	Left  rune
	Right rune
}

// Config holds configuration for a Merger. Zero fields take defaults.
type Config struct {
	ReservedBase rune // First synthetic symbol (0 = DefaultReservedBase)
	ReservedSize int  // Number of synthetic symbols (0 = up to DefaultReservedSize)
	Workers      int  // Counting goroutines (0 = GOMAXPROCS)
	ChunkSize    int  // Pair positions per counting chunk (0 = DefaultChunkSize)
	CacheSize    int  // Memoised expansions per table (0 = DefaultCacheSize)
}

// Merger performs merge steps with a fixed configuration.
// It holds no mutable state and is safe for concurrent use.
type Merger struct {
	config Config
}

// Merge is the outcome of one merge step.
type Merge struct {
	Pair     Pair   // Selected pair (zero when nothing qualified)
	Symbol   rune   // Synthetic symbol assigned to Pair
	Count    int    // Overlapping frequency of Pair in the input text
	Replaced int    // Non-overlapping occurrences substituted
	Text     []rune // Text after substitution (the input when nothing qualified)
}

// Found reports whether a qualifying pair was merged.
func (m Merge) Found() bool {
	return m.Count > 0
}

// New creates a Merger, filling defaults and validating the reserved range.
func New(cfg Config) (*Merger, error) {
	if cfg.ReservedBase == 0 {
		cfg.ReservedBase = DefaultReservedBase
	}
	if cfg.ReservedSize == 0 {
		cfg.ReservedSize = defaultReservedSize(cfg.ReservedBase)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if err := validateRange(cfg.ReservedBase, cfg.ReservedSize); err != nil {
		return nil, err
	}
	return &Merger{config: cfg}, nil
}

// defaultReservedSize fits DefaultReservedSize symbols after base without
// running into the surrogate block or past unicode.MaxRune.
func defaultReservedSize(base rune) int {
	limit := int64(unicode.MaxRune) + 1
	if base < surrogateMin {
		limit = int64(surrogateMin)
	}
	return int(min(int64(DefaultReservedSize), limit-int64(base)))
}

func validateRange(base rune, size int) error {
	if size < 1 {
		return fmt.Errorf("%w: size %d", ErrInvalidReservedRange, size)
	}
	if base < minReservedBase {
		return fmt.Errorf("%w: base U+%04X below U+%04X", ErrInvalidReservedRange, base, minReservedBase)
	}
	last := int64(base) + int64(size) - 1
	if last > int64(unicode.MaxRune) {
		return fmt.Errorf("%w: U+%04X+%d passes U+%04X", ErrInvalidReservedRange, base, size, unicode.MaxRune)
	}
	if int64(base) <= int64(surrogateMax) && last >= int64(surrogateMin) {
		return fmt.Errorf("%w: U+%04X+%d overlaps surrogates", ErrInvalidReservedRange, base, size)
	}
	return nil
}

// Config returns the effective configuration.
func (m *Merger) Config() Config {
	return m.config
}

// Reserved reports whether r lies in the synthetic range.
func (m *Merger) Reserved(r rune) bool {
	return r >= m.config.ReservedBase && int64(r) < int64(m.config.ReservedBase)+int64(m.config.ReservedSize)
}

// Check rejects text containing symbols from the reserved range or invalid
// scalar values, which would be indistinguishable from synthetic symbols
// after merging.
func (m *Merger) Check(text []rune) error {
	for i, r := range text {
		if m.Reserved(r) {
			return fmt.Errorf("%w: U+%04X at offset %d", ErrReservedSymbol, r, i)
		}
		if !utf8.ValidRune(r) {
			return fmt.Errorf("%w: invalid scalar %#x at offset %d", ErrReservedSymbol, r, i)
		}
	}
	return nil
}

// NewTable creates an empty replacement table for this Merger's range.
func (m *Merger) NewTable() *Table {
	return newTable(m.config.ReservedBase, m.config.CacheSize)
}

// Step merges the most frequent qualifying pair of text into the synthetic
// symbol ReservedBase+index.
//
// Ties go to the pair whose first occurrence comes earliest. When no pair
// qualifies the returned Merge has Found() == false and carries text
// unchanged. The input slice is never modified.
func (m *Merger) Step(text []rune, index int) (Merge, error) {
	stats := m.count(text)
	pair, stat, ok := best(stats)
	if !ok {
		return Merge{Text: text}, nil
	}
	if index < 0 || index >= m.config.ReservedSize {
		return Merge{Text: text}, fmt.Errorf("%w: merge %d of %d", ErrSymbolsExhausted, index, m.config.ReservedSize)
	}

	symbol := m.config.ReservedBase + rune(index)
	out, replaced := replace(text, pair, symbol)
	return Merge{
		Pair:     pair,
		Symbol:   symbol,
		Count:    stat.count,
		Replaced: replaced,
		Text:     out,
	}, nil
}

// Peek finds the pair Step would merge next without allocating a symbol,
// so it never fails on a full reserved range. The returned Merge has no
// Symbol and a nil Text; Replaced is the number of occurrences a merge
// would substitute.
func (m *Merger) Peek(text []rune) Merge {
	stats := m.count(text)
	pair, stat, ok := best(stats)
	if !ok {
		return Merge{}
	}
	return Merge{
		Pair:     pair,
		Count:    stat.count,
		Replaced: occurrences(text, pair),
	}
}

// Qualifies reports whether r may take part in a merged pair.
// Whitespace and ASCII punctuation delimit words and are never merged.
func Qualifies(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	return !isASCIIPunct(r)
}

// isASCIIPunct matches the 32 ASCII punctuation and symbol characters.
func isASCIIPunct(r rune) bool {
	switch {
	case r >= '!' && r <= '/':
	case r >= ':' && r <= '@':
	case r >= '[' && r <= '`':
	case r >= '{' && r <= '~':
	default:
		return false
	}
	return true
}

// replace substitutes non-overlapping occurrences of p, scanning left to right.
func replace(text []rune, p Pair, symbol rune) ([]rune, int) {
	out := make([]rune, 0, len(text))
	replaced := 0
	for i := 0; i < len(text); i++ {
		if i+1 < len(text) && text[i] == p.Left && text[i+1] == p.Right {
			out = append(out, symbol)
			replaced++
			i++ // Skip the right half of the matched pair
			continue
		}
		out = append(out, text[i])
	}
	return out, replaced
}

// occurrences counts the non-overlapping matches replace would substitute.
func occurrences(text []rune, p Pair) int {
	n := 0
	for i := 0; i+1 < len(text); i++ {
		if text[i] == p.Left && text[i+1] == p.Right {
			n++
			i++
		}
	}
	return n
}
