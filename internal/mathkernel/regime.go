package mathkernel

// Regime is the tick-direction classification of recent price action.
type Regime int

const (
	Range Regime = iota
	Trend
	Ambiguous
)

func (r Regime) String() string {
	switch r {
	case Range:
		return "range"
	case Trend:
		return "trend"
	default:
		return "ambiguous"
	}
}

type regimeTick struct {
	tsMs int64
	isUp bool
}

// RegimeClassifier tracks tick direction over a rolling time window and
// classifies the current regime based on the fraction of ticks moving in
// the dominant direction:
//
//	Range:     dominant fraction < 0.60
//	Trend:     dominant fraction >= 0.75
//	Ambiguous: everything else, and always when fewer than 10 ticks are held
type RegimeClassifier struct {
	windowMs int64
	ticks    []regimeTick
	head     int
	upCount  uint32
	total    uint32
}

// NewRegimeClassifier constructs a classifier over the given window.
func NewRegimeClassifier(windowMs int64) *RegimeClassifier {
	return &RegimeClassifier{windowMs: windowMs, ticks: make([]regimeTick, 0, 2000)}
}

// Update records a tick direction at tsMs and evicts ticks that have fallen
// out of the window.
func (r *RegimeClassifier) Update(tsMs int64, isUp bool) {
	r.ticks = append(r.ticks, regimeTick{tsMs, isUp})
	if isUp {
		r.upCount++
	}
	r.total++

	cutoff := tsMs - r.windowMs
	for r.head < len(r.ticks) && r.ticks[r.head].tsMs < cutoff {
		if r.ticks[r.head].isUp {
			r.upCount--
		}
		r.total--
		r.head++
	}
	if r.head > 1024 && r.head*2 >= len(r.ticks) {
		r.ticks = append(r.ticks[:0], r.ticks[r.head:]...)
		r.head = 0
	}
}

// Classify returns the current regime.
func (r *RegimeClassifier) Classify() Regime {
	if r.total < 10 {
		return Ambiguous
	}
	dominant := r.upCount
	if r.total-r.upCount > dominant {
		dominant = r.total - r.upCount
	}
	frac := float64(dominant) / float64(r.total)
	switch {
	case frac >= 0.75:
		return Trend
	case frac < 0.60:
		return Range
	default:
		return Ambiguous
	}
}

// TrendDirectionUp reports the direction of dominant tick flow. Only
// meaningful when Classify reports Trend.
func (r *RegimeClassifier) TrendDirectionUp() bool {
	return r.upCount > r.total/2
}

// DominantFrac is the fraction of ticks in the dominant direction, or 0 if
// no ticks are held.
func (r *RegimeClassifier) DominantFrac() float64 {
	if r.total == 0 {
		return 0
	}
	dominant := r.upCount
	if r.total-r.upCount > dominant {
		dominant = r.total - r.upCount
	}
	return float64(dominant) / float64(r.total)
}

// TotalTicks is the number of ticks currently held in the window.
func (r *RegimeClassifier) TotalTicks() uint32 {
	return r.total
}
