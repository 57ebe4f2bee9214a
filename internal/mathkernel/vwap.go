package mathkernel

// vwapSample is one (timestamp, price, qty) entry in the rolling window.
type vwapSample struct {
	tsMs  int64
	price float64
	qty   float64
}

// VwapTracker is a rolling volume-weighted-average-price tracker over a
// fixed time window, maintained in O(1) amortized time per update via
// incremental sum maintenance rather than recomputing the window on read.
type VwapTracker struct {
	windowMs int64
	buffer   []vwapSample
	sumPQ    float64
	sumQ     float64
	head     int
}

// NewVwapTracker constructs a tracker over the given window.
func NewVwapTracker(windowMs int64) *VwapTracker {
	return &VwapTracker{windowMs: windowMs, buffer: make([]vwapSample, 0, 5000)}
}

// Update records a trade and evicts entries that have fallen out of the
// window relative to tsMs.
func (v *VwapTracker) Update(tsMs int64, price, qty float64) {
	v.buffer = append(v.buffer, vwapSample{tsMs, price, qty})
	v.sumPQ += price * qty
	v.sumQ += qty

	cutoff := tsMs - v.windowMs
	for v.head < len(v.buffer) && v.buffer[v.head].tsMs < cutoff {
		s := v.buffer[v.head]
		v.sumPQ -= s.price * s.qty
		v.sumQ -= s.qty
		v.head++
	}
	if v.head > 1024 && v.head*2 >= len(v.buffer) {
		v.buffer = append(v.buffer[:0], v.buffer[v.head:]...)
		v.head = 0
	}
}

// VWAP is the current volume-weighted average price, or 0 if the window
// holds no volume.
func (v *VwapTracker) VWAP() float64 {
	if v.sumQ > 0 {
		return v.sumPQ / v.sumQ
	}
	return 0
}

// HasData reports whether the window holds any volume.
func (v *VwapTracker) HasData() bool {
	return v.sumQ > 0
}

// Len is the number of trades currently retained in the window.
func (v *VwapTracker) Len() int {
	return len(v.buffer) - v.head
}
