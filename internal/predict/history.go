package predict

import (
	"sort"

	"stomparena.io/internal/sim"
)

// Entry is one buffered local input.
type Entry struct {
	Tick  uint64
	Input sim.Input
}

// History is a bounded, tick-ordered ring of local inputs. Once full, each
// Push evicts the oldest entry.
type History struct {
	buf   []Entry
	start int
	n     int
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]Entry, capacity)}
}

func (h *History) Len() int { return h.n }
func (h *History) Cap() int { return len(h.buf) }

func (h *History) at(i int) *Entry { return &h.buf[(h.start+i)%len(h.buf)] }

// Push records the input for tick. Entries at or after tick are discarded
// first so the ring stays strictly increasing.
func (h *History) Push(tick uint64, in sim.Input) {
	for h.n > 0 && h.at(h.n-1).Tick >= tick {
		h.n--
	}
	if h.n == len(h.buf) {
		h.start = (h.start + 1) % len(h.buf)
		h.n--
	}
	*h.at(h.n) = Entry{Tick: tick, Input: in}
	h.n++
}

// Lookup returns the input buffered for tick.
func (h *History) Lookup(tick uint64) (sim.Input, bool) {
	i := sort.Search(h.n, func(i int) bool { return h.at(i).Tick >= tick })
	if i < h.n && h.at(i).Tick == tick {
		return h.at(i).Input, true
	}
	return sim.Input{}, false
}

// Oldest returns the first buffered tick, or false when empty.
func (h *History) Oldest() (uint64, bool) {
	if h.n == 0 {
		return 0, false
	}
	return h.at(0).Tick, true
}

// Newest returns the last buffered tick, or false when empty.
func (h *History) Newest() (uint64, bool) {
	if h.n == 0 {
		return 0, false
	}
	return h.at(h.n - 1).Tick, true
}

func (h *History) Reset() {
	h.start = 0
	h.n = 0
}
