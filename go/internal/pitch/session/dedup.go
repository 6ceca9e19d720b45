package session

// dedupWindow remembers the most recent keys, evicting the oldest.
type dedupWindow struct {
	size int
	keys []string
	seen map[string]int
}

func newDedupWindow(size int) *dedupWindow {
	return &dedupWindow{size: size, seen: make(map[string]int)}
}

// Observe records key and reports whether it was already in the window.
func (w *dedupWindow) Observe(key string) bool {
	if w.seen[key] > 0 {
		return true
	}
	w.keys = append(w.keys, key)
	w.seen[key]++
	if len(w.keys) > w.size {
		oldest := w.keys[0]
		w.keys = w.keys[1:]
		if w.seen[oldest]--; w.seen[oldest] <= 0 {
			delete(w.seen, oldest)
		}
	}
	return false
}
