package store

// renumber assigns orders 1..N in slice order and returns copies of the
// rows whose order changed.
func renumber(chs []Chapter) []Chapter {
	var changed []Chapter
	for i := range chs {
		if chs[i].Order != i+1 {
			chs[i].Order = i + 1
			changed = append(changed, chs[i])
		}
	}
	return changed
}

// orderMap maps chapter ids to their order, for order-only writes.
func orderMap(chs []Chapter) map[string]int {
	m := make(map[string]int, len(chs))
	for _, c := range chs {
		m[c.ID] = c.Order
	}
	return m
}

// swapNeighbour moves the chapter at index i by delta (-1 up, +1 down).
// Moving past either end leaves chs untouched and returns false.
func swapNeighbour(chs []Chapter, i, delta int) bool {
	j := i + delta
	if i < 0 || i >= len(chs) || j < 0 || j >= len(chs) {
		return false
	}
	chs[i], chs[j] = chs[j], chs[i]
	return true
}

func indexOfChapter(chs []Chapter, id string) int {
	for i, c := range chs {
		if c.ID == id {
			return i
		}
	}
	return -1
}
