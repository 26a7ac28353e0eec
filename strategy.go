package pairmerge

import (
	"fmt"
	"strings"

	"github.com/seiflotfy/pairmerge/merge"
)

// Kind selects a stopping strategy.
type Kind uint8

const (
	// KindFixed performs exactly Budget merges (fewer if pairs run out).
	KindFixed Kind = iota
	// KindOptimal keeps merging while each merge lowers the total cost.
	KindOptimal
	// KindSearch performs up to Budget merges and keeps the cheapest prefix.
	KindSearch
)

func (k Kind) String() string {
	switch k {
	case KindFixed:
		return "fixed"
	case KindOptimal:
		return "optimal"
	case KindSearch:
		return "search"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind parses a strategy name as printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed":
		return KindFixed, nil
	case "optimal":
		return KindOptimal, nil
	case "search":
		return KindSearch, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Strategy is a stopping strategy with its merge budget.
// Budget is ignored by KindOptimal.
type Strategy struct {
	Kind   Kind
	Budget int
}

// Fixed merges exactly n times.
func Fixed(n int) Strategy {
	return Strategy{Kind: KindFixed, Budget: n}
}

// Optimal merges until a merge no longer lowers the total cost.
func Optimal() Strategy {
	return Strategy{Kind: KindOptimal}
}

// Search merges up to m times and reports the cheapest prefix.
func Search(m int) Strategy {
	return Strategy{Kind: KindSearch, Budget: m}
}

func (s Strategy) String() string {
	if s.Kind == KindOptimal {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%d)", s.Kind, s.Budget)
}

// StopReason records why a strategy stopped.
type StopReason uint8

const (
	// StopBudgetExhausted: a fixed strategy performed all its merges.
	StopBudgetExhausted StopReason = iota
	// StopLocalMinimum: the next merge would not have lowered the cost.
	StopLocalMinimum
	// StopSearchComplete: a search performed all its merges.
	StopSearchComplete
	// StopNoPair: no qualifying pair was left to merge.
	StopNoPair
)

func (r StopReason) String() string {
	switch r {
	case StopBudgetExhausted:
		return "budget-exhausted"
	case StopLocalMinimum:
		return "local-minimum-found"
	case StopSearchComplete:
		return "search-complete"
	case StopNoPair:
		return "no-pair"
	default:
		return fmt.Sprintf("StopReason(%d)", uint8(r))
	}
}

// Run applies s to text.
//
// The text is validated against the reserved synthetic range first. Merge
// steps run strictly in sequence; a step is either fully committed or not
// at all.
func (e *Engine) Run(text string, s Strategy) (*Result, error) {
	if s.Kind != KindOptimal && s.Budget < 0 {
		return nil, fmt.Errorf("%w: %s budget %d", ErrInvalidBudget, s.Kind, s.Budget)
	}

	r, err := e.newRun(text, s)
	if err != nil {
		return nil, err
	}

	switch s.Kind {
	case KindFixed:
		err = r.fixed(s.Budget)
	case KindOptimal:
		err = r.optimal()
	case KindSearch:
		err = r.search(s.Budget)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, s.Kind)
	}
	if err != nil {
		return nil, err
	}
	return r.result, nil
}

// Fixed is shorthand for Run(text, Fixed(n)).
func (e *Engine) Fixed(text string, n int) (*Result, error) {
	return e.Run(text, Fixed(n))
}

// Optimal is shorthand for Run(text, Optimal()).
func (e *Engine) Optimal(text string) (*Result, error) {
	return e.Run(text, Optimal())
}

// Search is shorthand for Run(text, Search(m)).
func (e *Engine) Search(text string, m int) (*Result, error) {
	return e.Run(text, Search(m))
}

// run is the state shared by all strategies: the working text, the table
// built so far and the cost trace.
type run struct {
	engine   *Engine
	strategy Strategy
	text     []rune
	table    *merge.Table
	trace    []float64
	result   *Result
}

func (e *Engine) newRun(text string, s Strategy) (*run, error) {
	runes := []rune(text)
	if err := e.merger.Check(runes); err != nil {
		return nil, err
	}
	return &run{
		engine:   e,
		strategy: s,
		text:     runes,
		table:    e.merger.NewTable(),
	}, nil
}

// step computes the next merge without committing it.
func (r *run) step() (merge.Merge, error) {
	return r.engine.merger.Step(r.text, r.table.Len())
}

// commit appends m to the table and replaces the working text.
func (r *run) commit(m merge.Merge) {
	r.table.Append(m.Pair)
	r.text = m.Text
}

// cost is the total cost of the committed state.
func (r *run) cost() float64 {
	return r.engine.model.Total(len(r.text), r.table.Len())
}

func (r *run) observe(m merge.Merge, c float64, accepted bool) {
	if r.engine.config.Observer == nil {
		return
	}
	length := len(r.text)
	if accepted {
		length = len(m.Text)
	}
	r.engine.config.Observer(Progress{
		Strategy:   r.strategy,
		Step:       len(r.trace) - 1,
		Pair:       m.Pair,
		Count:      m.Count,
		TextLength: length,
		Cost:       c,
		Accepted:   accepted,
	})
}

func (r *run) finish(reason StopReason, table *merge.Table, text []rune) {
	r.result = &Result{
		Strategy: r.strategy,
		Reason:   reason,
		Table:    table,
		Text:     text,
		Trace:    r.trace,
		Computed: r.table.Len(),
		model:    r.engine.model,
	}
}

// fixed merges n times unconditionally, recording the cost after each merge.
func (r *run) fixed(n int) error {
	reason := StopBudgetExhausted
	for i := 0; i < n; i++ {
		m, err := r.step()
		if err != nil {
			return err
		}
		if !m.Found() {
			reason = StopNoPair
			break
		}
		r.commit(m)
		c := r.cost()
		r.trace = append(r.trace, c)
		r.observe(m, c, true)
	}
	r.finish(reason, r.table, r.text)
	return nil
}

// optimal commits merges while the candidate cost is strictly below the
// current cost. The rejected candidate's cost is still traced. There is no
// lookahead past the first merge that fails to improve.
//
// Once the reserved range is full the candidate is only peeked at, so the
// run fails with ErrSymbolsExhausted only if that merge would be committed.
func (r *run) optimal() error {
	var reason StopReason
	for {
		size := r.engine.merger.Config().ReservedSize
		full := r.table.Len() >= size
		var (
			m   merge.Merge
			err error
		)
		if full {
			m = r.engine.merger.Peek(r.text)
		} else if m, err = r.step(); err != nil {
			return err
		}
		if !m.Found() {
			reason = StopNoPair
			break
		}

		current := r.cost()
		candidate := r.engine.model.Total(len(r.text)-m.Replaced, r.table.Len()+1)
		r.trace = append(r.trace, candidate)
		if candidate >= current {
			r.observe(m, candidate, false)
			reason = StopLocalMinimum
			break
		}
		if full {
			return fmt.Errorf("%w: merge %d of %d", merge.ErrSymbolsExhausted, r.table.Len(), size)
		}
		r.commit(m)
		r.observe(m, candidate, true)
	}
	r.finish(reason, r.table, r.text)
	return nil
}

// search merges up to n times, then keeps the prefix with the lowest traced
// cost. Ties keep the fewest merges.
func (r *run) search(n int) error {
	reason := StopSearchComplete
	bestLen := 0
	bestText := r.text
	for i := 0; i < n; i++ {
		m, err := r.step()
		if err != nil {
			return err
		}
		if !m.Found() {
			reason = StopNoPair
			break
		}
		r.commit(m)
		c := r.cost()
		r.trace = append(r.trace, c)
		r.observe(m, c, true)

		if bestLen == 0 || c < r.trace[bestLen-1] {
			bestLen = r.table.Len()
			bestText = r.text
		}
	}
	r.finish(reason, r.table.Prefix(bestLen), bestText)
	return nil
}
