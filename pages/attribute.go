package pages

// Apportion splits a page's totalRuns rendered text runs across its
// content streams in page order, proportional to each stream's recorded
// text-operator count. The returned slice lengths always sum to
// totalRuns: the last stream absorbs the rounding remainder. When every
// stream recorded zero operators no runs are assigned at all, except
// that a single lone stream absorbs everything unconditionally. The
// mapping is approximate by construction and is presented as such.
func Apportion(streams []ContentStream, totalRuns int) []int {
	out := make([]int, len(streams))
	if len(streams) == 0 || totalRuns <= 0 {
		return out
	}
	if len(streams) == 1 {
		out[0] = totalRuns
		return out
	}

	totalOps := 0
	for _, s := range streams {
		totalOps += s.TextOps
	}
	if totalOps == 0 {
		return out
	}

	assigned := 0
	for i, s := range streams {
		if i == len(streams)-1 {
			out[i] = totalRuns - assigned
			break
		}
		out[i] = totalRuns * s.TextOps / totalOps
		assigned += out[i]
	}
	return out
}
