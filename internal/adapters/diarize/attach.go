package diarize

// DefaultMinOverlap is the attribution confidence floor in seconds
const DefaultMinOverlap = 0.15

// Speakers assigns each [start,end) window the speaker whose turns overlap
// it the most. Windows whose best overlap stays under minOverlap seconds get
// an empty speaker, meaning attribution was not confident enough.
// Results line up index-for-index with the input windows
func Speakers(windows [][2]float64, turns []Turn, minOverlap float64) []string {
	out := make([]string, len(windows))
	for i, w := range windows {
		best := ""
		bestOverlap := 0.0
		for _, t := range turns {
			if ov := overlap(w[0], w[1], t.Start, t.End); ov > bestOverlap {
				bestOverlap = ov
				best = t.Speaker
			}
		}
		if bestOverlap >= minOverlap && best != "" {
			out[i] = best
		}
	}
	return out
}

func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	lo, hi := aStart, aEnd
	if bStart > lo {
		lo = bStart
	}
	if bEnd < hi {
		hi = bEnd
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}
