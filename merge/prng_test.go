package merge

// simplePRNG is a Linear Congruential Generator for reproducible test corpora.
type simplePRNG struct {
	state uint64
}

func newSimplePRNG(seed uint64) *simplePRNG {
	return &simplePRNG{state: seed}
}

// next uses the multiplier and increment from Numerical Recipes.
func (p *simplePRNG) next() uint64 {
	p.state = p.state*6364136223846793005 + 1442695040888963407
	return p.state
}

// intN returns a number in [0, n).
func (p *simplePRNG) intN(n int) int {
	if n <= 0 {
		return 0
	}
	return int((p.next() >> 33) % uint64(n))
}

// words builds n space-separated words drawn from a small vocabulary so
// that pairs repeat often enough to be merged.
func (p *simplePRNG) words(n int) string {
	vocab := []string{
		"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog",
		"alice", "rabbit", "hole", "queen", "hearts", "tea", "party",
		"curiouser", "and", "said", "she", "very",
	}
	punct := []string{" ", " ", " ", ", ", ". ", "\n"}
	out := make([]byte, 0, n*6)
	for i := 0; i < n; i++ {
		out = append(out, vocab[p.intN(len(vocab))]...)
		out = append(out, punct[p.intN(len(punct))]...)
	}
	return string(out)
}
