package resilience

// outcomeWindow keeps the most recent request outcomes in a ring so the
// failure ratio reflects current store API health rather than history.
type outcomeWindow struct {
	slots    []bool
	next     int
	filled   int
	failures int
}

func newOutcomeWindow(size int) *outcomeWindow {
	if size < 1 {
		size = 1
	}
	return &outcomeWindow{slots: make([]bool, size)}
}

// add records one outcome, evicting the oldest once the ring is full.
func (w *outcomeWindow) add(failed bool) {
	if w.filled == len(w.slots) {
		if w.slots[w.next] {
			w.failures--
		}
	} else {
		w.filled++
	}
	w.slots[w.next] = failed
	if failed {
		w.failures++
	}
	w.next = (w.next + 1) % len(w.slots)
}

func (w *outcomeWindow) ratio() float64 {
	if w.filled == 0 {
		return 0
	}
	return float64(w.failures) / float64(w.filled)
}

func (w *outcomeWindow) reset() {
	clear(w.slots)
	w.next, w.filled, w.failures = 0, 0, 0
}
