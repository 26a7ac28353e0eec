package merge

import (
	"encoding/binary"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Table is the ordered, append-only record of merges.
//
// Entry i was assigned the synthetic symbol base+i, so the table doubles as
// the decode dictionary. Entries only ever reference original symbols or
// earlier entries, which keeps expansion acyclic.
type Table struct {
	base  rune
	pairs []Pair
	cache *lru.Cache[rune, []rune] // synthetic symbol → full expansion
}

func newTable(base rune, cacheSize int) *Table {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	// lru.New only fails for non-positive sizes.
	cache, _ := lru.New[rune, []rune](cacheSize)
	return &Table{base: base, cache: cache}
}

// NewTable creates an empty table whose first synthetic symbol is base.
func NewTable(base rune) *Table {
	return newTable(base, DefaultCacheSize)
}

// Base returns the first synthetic symbol.
func (t *Table) Base() rune {
	return t.base
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.pairs)
}

// At returns entry i.
func (t *Table) At(i int) Pair {
	return t.pairs[i]
}

// Symbol returns the synthetic symbol assigned to entry i.
func (t *Table) Symbol(i int) rune {
	return t.base + rune(i)
}

// Pairs returns a copy of the entries in merge order.
func (t *Table) Pairs() []Pair {
	return slices.Clone(t.pairs)
}

// Append records p and returns its synthetic symbol.
func (t *Table) Append(p Pair) rune {
	t.pairs = append(t.pairs, p)
	return t.base + rune(len(t.pairs)-1)
}

// Prefix returns a read-only view of the first n entries.
//
// The view shares the expansion cache: an entry's expansion is the same in
// every prefix that contains it, and symbols past n are treated as original.
func (t *Table) Prefix(n int) *Table {
	n = max(0, min(n, len(t.pairs)))
	return &Table{base: t.base, pairs: t.pairs[:n:n], cache: t.cache}
}

// synthetic reports whether r refers to an entry of this table.
func (t *Table) synthetic(r rune) bool {
	return r >= t.base && int64(r)-int64(t.base) < int64(len(t.pairs))
}

// Expand returns the original symbols that r stands for, left to right.
// Symbols outside the table expand to themselves.
func (t *Table) Expand(r rune) []rune {
	return t.appendExpansion(nil, r)
}

// ExpandString is Expand as a string.
func (t *Table) ExpandString(r rune) string {
	return string(t.Expand(r))
}

// appendExpansion appends the expansion of r to dst.
//
// Expansion walks the merge tree depth first with an explicit stack, so deep
// merge chains cannot exhaust the call stack. Finished expansions of
// synthetic symbols are memoised.
func (t *Table) appendExpansion(dst []rune, r rune) []rune {
	if !t.synthetic(r) {
		return append(dst, r)
	}
	if cached, ok := t.cache.Get(r); ok {
		return append(dst, cached...)
	}

	start := len(dst)
	stack := []rune{r}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !t.synthetic(s) {
			dst = append(dst, s)
			continue
		}
		if cached, ok := t.cache.Get(s); ok {
			dst = append(dst, cached...)
			continue
		}
		p := t.pairs[s-t.base]
		// Push right first so left is expanded first
		stack = append(stack, p.Right, p.Left)
	}

	t.cache.Add(r, slices.Clone(dst[start:]))
	return dst
}

// Decode expands every symbol of text and concatenates the result.
func (t *Table) Decode(text []rune) string {
	out := make([]rune, 0, len(text))
	for _, r := range text {
		out = t.appendExpansion(out, r)
	}
	return string(out)
}

// Encode replays the merges in order on text.
//
// Encoding the text a table was learned from reproduces the merged text, and
// Decode(Encode(x)) == x for any x free of reserved symbols.
func (t *Table) Encode(text []rune) []rune {
	out := text
	for i, p := range t.pairs {
		out, _ = replace(out, p, t.base+rune(i))
	}
	return out
}

// EncodeString is Encode for a string.
func (t *Table) EncodeString(s string) []rune {
	return t.Encode([]rune(s))
}

// Fragment renders entry i as its expanded halves joined by a period.
func (t *Table) Fragment(i int) string {
	p := t.pairs[i]
	var b strings.Builder
	b.WriteString(t.ExpandString(p.Left))
	b.WriteByte('.')
	b.WriteString(t.ExpandString(p.Right))
	return b.String()
}

// Fingerprint hashes the base and the ordered entries.
// Tables built by identical runs have identical fingerprints.
func (t *Table) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(t.base))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(t.pairs)))
	_, _ = d.Write(buf[:])
	for _, p := range t.pairs {
		binary.LittleEndian.PutUint32(buf[:4], uint32(p.Left))
		binary.LittleEndian.PutUint32(buf[4:], uint32(p.Right))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
