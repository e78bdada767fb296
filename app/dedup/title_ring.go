package dedup

// titleRing is a fixed-capacity ring buffer of normalized titles. Once full,
// a push evicts the oldest entry, keeping the fuzzy comparison cost bounded.
type titleRing struct {
	buf  []string
	next int
	full bool
}

func newTitleRing(capacity int) *titleRing {
	return &titleRing{buf: make([]string, capacity)}
}

func (r *titleRing) push(title string) {
	if len(r.buf) == 0 {
		return
	}

	r.buf[r.next] = title
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *titleRing) titles() []string {
	if r.full {
		return r.buf
	}
	return r.buf[:r.next]
}

func (r *titleRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}
