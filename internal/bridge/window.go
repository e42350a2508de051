package bridge

// Window is a fixed-size ring of the most recent snapshots observed by
// one pending await. Slot selection is tick-agnostic: the awaiter pushes
// exactly one snapshot per evaluation, so entries are the observed tick
// sequence in order.
type Window struct {
	buf []*Snapshot
	n   int // total pushed
}

func newWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{buf: make([]*Snapshot, size)}
}

func (w *Window) push(s *Snapshot) {
	w.buf[w.n%len(w.buf)] = s
	w.n++
}

// Len is the number of snapshots held, at most the window size.
func (w *Window) Len() int {
	if w.n < len(w.buf) {
		return w.n
	}
	return len(w.buf)
}

// Latest returns the most recent snapshot, or nil if none were pushed.
func (w *Window) Latest() *Snapshot {
	return w.At(0)
}

// At returns the snapshot i steps back from the latest (At(0) is the
// latest). Out-of-range lookups return nil.
func (w *Window) At(i int) *Snapshot {
	if i < 0 || i >= w.Len() {
		return nil
	}
	return w.buf[(w.n-1-i)%len(w.buf)]
}
