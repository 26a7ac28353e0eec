package pairmerge

import (
	"fmt"
	"io"
	"math"

	"github.com/seiflotfy/pairmerge/cost"
	"github.com/seiflotfy/pairmerge/merge"
)

// Result is the outcome of one strategy run. It is read-only once returned.
type Result struct {
	Strategy Strategy
	Reason   StopReason
	Table    *merge.Table // Reported table (a prefix of the computed one for Search)
	Text     []rune       // Working text encoded with Table
	Trace    []float64    // Total cost per merge attempt
	Computed int          // Merges computed, including any Search discarded

	model cost.Model
}

// Replacements returns the number of reported merges.
func (r *Result) Replacements() int {
	return r.Table.Len()
}

// Cost returns the total cost of the reported table plus text.
func (r *Result) Cost() float64 {
	return r.model.Total(len(r.Text), r.Table.Len())
}

// Decode expands the reported text back to the original input.
func (r *Result) Decode() string {
	return r.Table.Decode(r.Text)
}

// Stats summarises a result.
type Stats struct {
	OriginalLength int
	EncodedLength  int
	Replacements   int
	Computed       int
	TableCost      float64
	TextCost       float64
	Fingerprint    uint64
}

// TotalCost is TableCost plus TextCost.
func (s Stats) TotalCost() float64 {
	return s.TableCost + s.TextCost
}

// Stats computes summary figures. OriginalLength requires decoding the text.
func (r *Result) Stats() Stats {
	n := r.Table.Len()
	return Stats{
		OriginalLength: len([]rune(r.Decode())),
		EncodedLength:  len(r.Text),
		Replacements:   n,
		Computed:       r.Computed,
		TableCost:      r.model.TableCost(n),
		TextCost:       r.model.TextCost(len(r.Text), n),
		Fingerprint:    r.Table.Fingerprint(),
	}
}

// WriteTo writes the report, including the cost trace for the optimal and
// search strategies.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	return r.WriteReport(w, r.Strategy.Kind != KindFixed)
}

// WriteReport writes the merge history:
//
//	After 1 replacements, total cost = 1234   (one per traced attempt, if trace)
//	`t.h`                                     (one per table entry)
//	`th.e`
//	2 replacements
//
// Each entry shows the expanded left and right halves joined by a period.
// Costs are rounded to the nearest integer. Search attempts past the
// selected prefix are marked "(discarded)".
func (r *Result) WriteReport(w io.Writer, trace bool) (int64, error) {
	cw := &countingWriter{w: w}
	if trace {
		for i, c := range r.Trace {
			suffix := ""
			if r.Strategy.Kind == KindSearch && i >= r.Table.Len() {
				suffix = " (discarded)"
			}
			fmt.Fprintf(cw, "After %d replacements, total cost = %d%s\n", i+1, int64(math.Round(c)), suffix)
		}
	}
	for i := 0; i < r.Table.Len(); i++ {
		fmt.Fprintf(cw, "`%s`\n", r.Table.Fragment(i))
	}
	fmt.Fprintf(cw, "%d replacements\n", r.Table.Len())
	return cw.n, cw.err
}

// countingWriter counts bytes written and stops at the first error.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	if cw.err != nil {
		return 0, cw.err
	}
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	cw.err = err
	return n, err
}
