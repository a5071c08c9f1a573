package manager

import "sync"

// defaultLogLines bounds the per-instance output capture.
const defaultLogLines = 300

// ringBuffer keeps the most recent subprocess output lines. Writers never
// block and memory stays bounded regardless of instance lifetime.
type ringBuffer struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newRingBuffer(max int) *ringBuffer {
	if max <= 0 {
		max = defaultLogLines
	}
	return &ringBuffer{lines: make([]string, max)}
}

func (b *ringBuffer) Append(line string) {
	b.mu.Lock()
	b.lines[b.next] = line
	b.next++
	if b.next == len(b.lines) {
		b.next = 0
		b.full = true
	}
	b.mu.Unlock()
}

// Tail returns up to n of the most recent lines, oldest first.
func (b *ringBuffer) Tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	size := b.next
	if b.full {
		size = len(b.lines)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]string, 0, n)
	start := b.next - n
	if start < 0 {
		start += len(b.lines)
	}
	for i := 0; i < n; i++ {
		out = append(out, b.lines[(start+i)%len(b.lines)])
	}
	return out
}

// TailString joins the last n lines for error messages.
func (b *ringBuffer) TailString(n int) string {
	lines := b.Tail(n)
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
