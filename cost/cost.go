// Package cost estimates the encoded size of a replacement table plus the
// text that remains after merging.
//
// Both estimates are in bits. A table of n pairs spends two symbols per
// entry, and every symbol (in the table or in the text) is drawn from an
// alphabet of AlphabetBase+n codes.
package cost

import "math"

// DefaultAlphabetBase approximates the base alphabet: letters plus a handful
// of punctuation and whitespace symbols.
const DefaultAlphabetBase = 30

// Model scores table and text sizes for a given base alphabet.
type Model struct {
	AlphabetBase float64
}

// Default is the model used when no alphabet base is configured.
var Default = Model{AlphabetBase: DefaultAlphabetBase}

// bitsPerSymbol returns log2 of the code-book size for a table of tableSize entries.
func (m Model) bitsPerSymbol(tableSize int) float64 {
	return math.Log2(m.AlphabetBase + float64(tableSize))
}

// TableCost returns the bits needed to store tableSize pair entries.
// Sizes must be >= 0.
func (m Model) TableCost(tableSize int) float64 {
	n := float64(tableSize)
	return n * 2 * m.bitsPerSymbol(tableSize)
}

// TextCost returns the bits needed to store textLength symbols once the
// table holds tableSize entries.
func (m Model) TextCost(textLength, tableSize int) float64 {
	return float64(textLength) * m.bitsPerSymbol(tableSize)
}

// Total is TableCost plus TextCost.
func (m Model) Total(textLength, tableSize int) float64 {
	return m.TableCost(tableSize) + m.TextCost(textLength, tableSize)
}

// TableCost scores a table with the Default model.
func TableCost(tableSize int) float64 { return Default.TableCost(tableSize) }

// TextCost scores remaining text with the Default model.
func TextCost(textLength, tableSize int) float64 {
	return Default.TextCost(textLength, tableSize)
}

// Total scores table plus text with the Default model.
func Total(textLength, tableSize int) float64 { return Default.Total(textLength, tableSize) }
