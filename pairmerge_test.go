package pairmerge

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/seiflotfy/pairmerge/merge"
)

// ============================================================================
// Helper Functions
// ============================================================================

func mustEngine(t testing.TB, opts ...Option) *Engine {
	t.Helper()
	eng, err := NewEngine(opts...)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return eng
}

func mustRun(t testing.TB, eng *Engine, text string, s Strategy) *Result {
	t.Helper()
	res, err := eng.Run(text, s)
	if err != nil {
		t.Fatalf("Run(%s) failed: %v", s, err)
	}
	return res
}

func loadTestData(t testing.TB, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return strings.ToLower(string(data))
}

// ============================================================================
// Fixed Strategy
// ============================================================================

func TestFixedZeroBudget(t *testing.T) {
	eng := mustEngine(t)
	input := "hello hello world"

	res := mustRun(t, eng, input, Fixed(0))
	if res.Replacements() != 0 {
		t.Errorf("Expected empty table, got %d entries", res.Replacements())
	}
	if string(res.Text) != input {
		t.Errorf("Expected unchanged text, got %q", string(res.Text))
	}
	if res.Reason != StopBudgetExhausted {
		t.Errorf("Expected %s, got %s", StopBudgetExhausted, res.Reason)
	}
	if len(res.Trace) != 0 {
		t.Errorf("Expected empty trace, got %v", res.Trace)
	}

	var buf bytes.Buffer
	if _, err := res.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if buf.String() != "0 replacements\n" {
		t.Errorf("Unexpected report %q", buf.String())
	}
}

func TestFixedBudget(t *testing.T) {
	eng := mustEngine(t)
	input := loadTestData(t, "alice.txt")

	res := mustRun(t, eng, input, Fixed(25))
	if res.Replacements() != 25 {
		t.Fatalf("Expected 25 replacements, got %d", res.Replacements())
	}
	if len(res.Trace) != 25 || res.Computed != 25 {
		t.Errorf("Expected 25 traced merges, got trace %d computed %d", len(res.Trace), res.Computed)
	}
	if got := res.Decode(); got != input {
		t.Error("Decode does not reproduce the input")
	}
	if last := res.Trace[len(res.Trace)-1]; last != res.Cost() {
		t.Errorf("Last trace entry %f differs from final cost %f", last, res.Cost())
	}
}

func TestFixedStopsWhenPairsRunOut(t *testing.T) {
	eng := mustEngine(t)

	res := mustRun(t, eng, "abab abab", Fixed(10))
	if res.Reason != StopNoPair {
		t.Errorf("Expected %s, got %s", StopNoPair, res.Reason)
	}
	// ab, then (ab)(ab); each word is then a single symbol.
	if res.Replacements() != 2 {
		t.Errorf("Expected 2 replacements, got %d", res.Replacements())
	}
	if len(res.Text) != 3 {
		t.Errorf("Expected 3 symbols, got %d", len(res.Text))
	}
}

// ============================================================================
// Optimal Strategy
// ============================================================================

func TestOptimalNoRepeatedPairs(t *testing.T) {
	eng := mustEngine(t)

	tests := []struct {
		input  string
		reason StopReason
	}{
		{"abc def", StopLocalMinimum},
		{"a b c, d. e", StopNoPair},
		{"", StopNoPair},
	}

	for _, tt := range tests {
		res := mustRun(t, eng, tt.input, Optimal())
		if res.Replacements() != 0 {
			t.Errorf("%q: expected zero merges, got %d", tt.input, res.Replacements())
		}
		if res.Reason != tt.reason {
			t.Errorf("%q: expected %s, got %s", tt.input, tt.reason, res.Reason)
		}
		if string(res.Text) != tt.input {
			t.Errorf("%q: text changed to %q", tt.input, string(res.Text))
		}
	}
}

func TestOptimalStopsAtFirstUptick(t *testing.T) {
	eng := mustEngine(t)
	input := loadTestData(t, "alice.txt")

	res := mustRun(t, eng, input, Optimal())
	if res.Replacements() == 0 {
		t.Fatal("Expected some merges on natural text")
	}
	if res.Reason != StopLocalMinimum && res.Reason != StopNoPair {
		t.Fatalf("Unexpected reason %s", res.Reason)
	}

	// Every accepted merge lowered the cost; the rejected one did not.
	prev := eng.Model().Total(len([]rune(input)), 0)
	for i := 0; i < res.Replacements(); i++ {
		if res.Trace[i] >= prev {
			t.Fatalf("Accepted merge %d did not lower cost: %f >= %f", i, res.Trace[i], prev)
		}
		prev = res.Trace[i]
	}
	if res.Reason == StopLocalMinimum {
		if len(res.Trace) != res.Replacements()+1 {
			t.Fatalf("Expected one rejected attempt, trace %d for %d merges", len(res.Trace), res.Replacements())
		}
		if res.Trace[len(res.Trace)-1] < prev {
			t.Error("Rejected attempt would have lowered the cost")
		}
	}
	if got := res.Decode(); got != input {
		t.Error("Decode does not reproduce the input")
	}
}

// ============================================================================
// Search Strategy
// ============================================================================

func TestSearchStrictlyDecreasingKeepsAll(t *testing.T) {
	eng := mustEngine(t)
	input := strings.Repeat("abcdefgh ", 200)

	res := mustRun(t, eng, input, Search(7))
	if res.Reason != StopSearchComplete {
		t.Errorf("Expected %s, got %s", StopSearchComplete, res.Reason)
	}
	for i := 1; i < len(res.Trace); i++ {
		if res.Trace[i] >= res.Trace[i-1] {
			t.Fatalf("Trace not strictly decreasing at %d: %v", i, res.Trace)
		}
	}
	if res.Replacements() != 7 {
		t.Errorf("Expected the full table of 7, got %d", res.Replacements())
	}
}

func TestSearchSelectsGlobalMinimum(t *testing.T) {
	eng := mustEngine(t)
	input := loadTestData(t, "alice.txt")

	res := mustRun(t, eng, input, Search(400))
	if res.Computed < res.Replacements() {
		t.Fatalf("Computed %d below reported %d", res.Computed, res.Replacements())
	}
	if len(res.Trace) != res.Computed {
		t.Fatalf("Expected %d trace entries, got %d", res.Computed, len(res.Trace))
	}

	best := slices.Min(res.Trace)
	first := slices.Index(res.Trace, best)
	if res.Replacements() != first+1 {
		t.Errorf("Expected prefix %d (first minimum), got %d", first+1, res.Replacements())
	}
	if res.Cost() != best {
		t.Errorf("Reported cost %f differs from minimum %f", res.Cost(), best)
	}
	if got := res.Decode(); got != input {
		t.Error("Decode of the selected prefix does not reproduce the input")
	}

	// The selected prefix agrees with a fixed run of the same length.
	fixed := mustRun(t, eng, input, Fixed(res.Replacements()))
	if fixed.Table.Fingerprint() != res.Table.Fingerprint() {
		t.Error("Selected prefix differs from fixed run of the same length")
	}
	if !slices.Equal(fixed.Text, res.Text) {
		t.Error("Selected text differs from fixed run of the same length")
	}
}

func TestSearchZeroBudget(t *testing.T) {
	res := mustRun(t, mustEngine(t), "hello hello", Search(0))
	if res.Replacements() != 0 || string(res.Text) != "hello hello" {
		t.Errorf("Expected untouched result, got %d merges", res.Replacements())
	}
}

// ============================================================================
// Determinism and errors
// ============================================================================

func TestDeterminism(t *testing.T) {
	input := loadTestData(t, "alice.txt")
	engines := []*Engine{
		mustEngine(t, WithWorkers(1)),
		mustEngine(t, WithWorkers(1)),
		mustEngine(t, WithWorkers(8), WithChunkSize(13)),
		mustEngine(t, WithWorkers(3), WithChunkSize(257)),
	}

	for _, s := range []Strategy{Fixed(60), Optimal(), Search(120)} {
		var base *Result
		for i, eng := range engines {
			res := mustRun(t, eng, input, s)
			if base == nil {
				base = res
				continue
			}
			if res.Table.Fingerprint() != base.Table.Fingerprint() {
				t.Errorf("%s engine %d: table differs", s, i)
			}
			if !slices.Equal(res.Trace, base.Trace) {
				t.Errorf("%s engine %d: trace differs", s, i)
			}
			if !slices.Equal(res.Table.Pairs(), base.Table.Pairs()) {
				t.Errorf("%s engine %d: pairs differ", s, i)
			}
		}
	}
}

func TestRunErrors(t *testing.T) {
	eng := mustEngine(t)

	if _, err := eng.Run("abc", Fixed(-1)); !errors.Is(err, ErrInvalidBudget) {
		t.Errorf("Expected ErrInvalidBudget, got %v", err)
	}
	if _, err := eng.Run("abc", Search(-5)); !errors.Is(err, ErrInvalidBudget) {
		t.Errorf("Expected ErrInvalidBudget, got %v", err)
	}
	if _, err := eng.Run("abc", Strategy{Kind: Kind(9)}); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("Expected ErrUnknownStrategy, got %v", err)
	}
	if _, err := eng.Run("ab\U000F0000cd", Optimal()); !errors.Is(err, ErrReservedSymbol) {
		t.Errorf("Expected ErrReservedSymbol, got %v", err)
	}

	latin := mustEngine(t, WithReservedRange(0x80, 0))
	if _, err := latin.Run("naïve", Fixed(1)); !errors.Is(err, ErrReservedSymbol) {
		t.Errorf("Expected ErrReservedSymbol for ï, got %v", err)
	}
}

func TestSymbolsExhausted(t *testing.T) {
	eng := mustEngine(t, WithReservedRange(0x80, 2))
	input := strings.Repeat("abcdefgh ", 10)

	for _, s := range []Strategy{Fixed(5), Search(5), Optimal()} {
		_, err := eng.Run(input, s)
		if !errors.Is(err, ErrSymbolsExhausted) {
			t.Errorf("%s: expected ErrSymbolsExhausted, got %v", s, err)
		}
	}

	// Two merges fit.
	res := mustRun(t, eng, input, Fixed(2))
	if res.Replacements() != 2 {
		t.Errorf("Expected 2 replacements, got %d", res.Replacements())
	}
}

func TestOptimalStopsOnFullReservedRange(t *testing.T) {
	input := loadTestData(t, "alice.txt")
	want := mustRun(t, mustEngine(t), input, Optimal())
	if want.Reason != StopLocalMinimum || want.Replacements() < 2 {
		t.Fatalf("Expected a local minimum after some merges, got %s with %d", want.Reason, want.Replacements())
	}

	// A range with exactly room for the accepted merges still finds the
	// same local minimum: the rejected candidate is never committed.
	eng := mustEngine(t, WithReservedRange(merge.DefaultReservedBase, want.Replacements()))
	got := mustRun(t, eng, input, Optimal())
	if got.Reason != StopLocalMinimum {
		t.Errorf("Expected %s, got %s", StopLocalMinimum, got.Reason)
	}
	if got.Table.Fingerprint() != want.Table.Fingerprint() {
		t.Error("Table differs from the run with the default range")
	}
	if !slices.Equal(got.Trace, want.Trace) {
		t.Errorf("Expected trace %v, got %v", want.Trace, got.Trace)
	}
	if got.Decode() != input {
		t.Error("Decode does not reproduce the input")
	}

	// One symbol fewer forces an accepted merge past the range.
	eng = mustEngine(t, WithReservedRange(merge.DefaultReservedBase, want.Replacements()-1))
	if _, err := eng.Run(input, Optimal()); !errors.Is(err, ErrSymbolsExhausted) {
		t.Errorf("Expected ErrSymbolsExhausted, got %v", err)
	}
}

func TestNewEngineErrors(t *testing.T) {
	for _, base := range []float64{-4, 0.5, math.NaN(), math.Inf(-1)} {
		if _, err := NewEngine(WithAlphabetBase(base)); !errors.Is(err, ErrInvalidAlphabetBase) {
			t.Errorf("base %v: expected ErrInvalidAlphabetBase, got %v", base, err)
		}
	}
	if _, err := NewEngine(WithReservedRange(0x20, 10)); !errors.Is(err, ErrInvalidReservedRange) {
		t.Errorf("Expected ErrInvalidReservedRange, got %v", err)
	}
}

func TestObserver(t *testing.T) {
	var events []Progress
	eng := mustEngine(t, WithObserver(func(p Progress) {
		events = append(events, p)
	}))

	res := mustRun(t, eng, loadTestData(t, "alice.txt"), Optimal())
	if len(events) != len(res.Trace) {
		t.Fatalf("Expected %d events, got %d", len(res.Trace), len(events))
	}
	accepted := 0
	for i, ev := range events {
		if ev.Step != i {
			t.Errorf("Event %d has step %d", i, ev.Step)
		}
		if ev.Cost != res.Trace[i] {
			t.Errorf("Event %d cost %f, trace %f", i, ev.Cost, res.Trace[i])
		}
		if ev.Accepted {
			accepted++
		}
	}
	if accepted != res.Replacements() {
		t.Errorf("Expected %d accepted events, got %d", res.Replacements(), accepted)
	}
}

// ============================================================================
// Reporting
// ============================================================================

func TestWriteReport(t *testing.T) {
	eng := mustEngine(t, WithWorkers(1))
	res := mustRun(t, eng, "hello hello world", Fixed(2))

	var buf bytes.Buffer
	n, err := res.WriteReport(&buf, true)
	if err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("Reported %d bytes, wrote %d", n, buf.Len())
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	want := []string{
		"After 1 replacements, total cost = ",
		"After 2 replacements, total cost = ",
		"`h.e`",
		"`he.l`",
		"2 replacements",
	}
	if len(lines) != len(want) {
		t.Fatalf("Expected %d lines, got %q", len(want), lines)
	}
	for i, w := range want {
		if !strings.HasPrefix(lines[i], w) {
			t.Errorf("Line %d: expected prefix %q, got %q", i, w, lines[i])
		}
	}
}

func TestWriteReportSearchMarksDiscarded(t *testing.T) {
	// ab lowers the cost to ~34.7; merging the two ab symbols raises it to 35.
	res := mustRun(t, mustEngine(t), "abab abab", Search(5))
	if res.Computed != 2 || res.Replacements() != 1 {
		t.Fatalf("Expected 1 of 2 computed merges, got %d of %d", res.Replacements(), res.Computed)
	}

	var buf bytes.Buffer
	if _, err := res.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	want := "After 1 replacements, total cost = 35\n" +
		"After 2 replacements, total cost = 35 (discarded)\n" +
		"`a.b`\n" +
		"1 replacements\n"
	if buf.String() != want {
		t.Errorf("Expected report %q, got %q", want, buf.String())
	}
}

func TestWriteReportShortWriter(t *testing.T) {
	res := mustRun(t, mustEngine(t), "hello hello world", Fixed(3))
	if _, err := res.WriteTo(failingWriter{}); err == nil {
		t.Error("Expected write error")
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestStats(t *testing.T) {
	input := loadTestData(t, "alice.txt")
	res := mustRun(t, mustEngine(t), input, Fixed(30))

	st := res.Stats()
	if st.OriginalLength != len([]rune(input)) {
		t.Errorf("Expected original length %d, got %d", len([]rune(input)), st.OriginalLength)
	}
	if st.EncodedLength != len(res.Text) || st.EncodedLength >= st.OriginalLength {
		t.Errorf("Unexpected encoded length %d", st.EncodedLength)
	}
	if st.Replacements != 30 || st.Fingerprint != res.Table.Fingerprint() {
		t.Errorf("Unexpected stats %+v", st)
	}
	if st.TotalCost() != res.Cost() {
		t.Errorf("Stats cost %f differs from %f", st.TotalCost(), res.Cost())
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindFixed, KindOptimal, KindSearch} {
		got, err := ParseKind(" " + strings.ToUpper(k.String()) + " ")
		if err != nil || got != k {
			t.Errorf("ParseKind(%s) = %v, %v", k, got, err)
		}
	}
	if _, err := ParseKind("greedy"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("Expected ErrUnknownStrategy, got %v", err)
	}
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkStrategies(b *testing.B) {
	input := loadTestData(b, "alice.txt")
	input = strings.Repeat(input, 20)
	eng := mustEngine(b)

	for _, s := range []Strategy{Fixed(100), Optimal(), Search(200)} {
		b.Run(s.String(), func(b *testing.B) {
			var res *Result
			for i := 0; i < b.N; i++ {
				res = mustRun(b, eng, input, s)
			}
			b.ReportMetric(float64(len([]rune(input)))/float64(len(res.Text)), "ratio")
		})
	}
}
