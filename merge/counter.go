package merge

import "sync"

// pairStat is the frequency of a pair and the offset of its first occurrence.
type pairStat struct {
	count int
	first int
}

// pairCounts maps each qualifying pair to its statistics.
type pairCounts map[Pair]pairStat

// count tallies qualifying pairs of text.
//
// Pair start offsets [0, len(text)-1) are split into contiguous chunks of
// ChunkSize. Each chunk is counted into a private map by one of the workers
// and the maps are reduced after all workers finish. Short texts or a single
// worker are counted inline.
func (m *Merger) count(text []rune) pairCounts {
	positions := len(text) - 1
	if positions <= 0 {
		return pairCounts{}
	}

	chunkSize := m.config.ChunkSize
	numChunks := (positions + chunkSize - 1) / chunkSize
	workers := m.config.Workers
	if workers > numChunks {
		workers = numChunks
	}
	if workers <= 1 {
		counts := make(pairCounts)
		countRange(counts, text, 0, positions)
		return counts
	}

	partials := make([]pairCounts, numChunks)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// Static striping: worker w owns chunks w, w+workers, ...
			for c := w; c < numChunks; c += workers {
				start := c * chunkSize
				end := min(start+chunkSize, positions)
				counts := make(pairCounts)
				countRange(counts, text, start, end)
				partials[c] = counts
			}
		}(w)
	}
	wg.Wait()

	return reduce(partials)
}

// countRange counts pairs starting at offsets [start, end).
// The right symbol of the last pair may lie past end.
func countRange(counts pairCounts, text []rune, start, end int) {
	for i := start; i < end; i++ {
		a, b := text[i], text[i+1]
		if !Qualifies(a) || !Qualifies(b) {
			continue
		}
		p := Pair{Left: a, Right: b}
		stat, seen := counts[p]
		if !seen {
			stat.first = i
		}
		stat.count++
		counts[p] = stat
	}
}

// reduce sums counts and keeps the earliest first offset.
// The result does not depend on the order of partials.
func reduce(partials []pairCounts) pairCounts {
	if len(partials) == 0 {
		return pairCounts{}
	}
	total := partials[0]
	for _, part := range partials[1:] {
		for p, stat := range part {
			acc, seen := total[p]
			if !seen || stat.first < acc.first {
				acc.first = stat.first
			}
			acc.count += stat.count
			total[p] = acc
		}
	}
	return total
}

// best selects the highest count, breaking ties by earliest first offset.
// First offsets are unique per pair, so the choice is independent of map
// iteration order.
func best(counts pairCounts) (Pair, pairStat, bool) {
	var (
		bestPair Pair
		bestStat pairStat
		found    bool
	)
	for p, stat := range counts {
		if !found || stat.count > bestStat.count ||
			(stat.count == bestStat.count && stat.first < bestStat.first) {
			bestPair, bestStat, found = p, stat, true
		}
	}
	return bestPair, bestStat, found
}
