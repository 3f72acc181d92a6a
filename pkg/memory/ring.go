package memory

// turnRing is a fixed-capacity ring of the latest turns for one pair.
// It serves reads without touching the database on the hot path.
type turnRing struct {
	buf   []Turn
	head  int
	count int
}

func newTurnRing(capacity int) *turnRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &turnRing{buf: make([]Turn, capacity)}
}

func (r *turnRing) push(t Turn) {
	r.buf[(r.head+r.count)%len(r.buf)] = t
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

// last returns up to n newest turns in chronological order.
func (r *turnRing) last(n int) []Turn {
	if n > r.count {
		n = r.count
	}
	out := make([]Turn, 0, n)
	start := r.count - n
	for i := start; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}
