package mathkernel

import "math"

// SampledEwmaVol is a 1-second-sampled EWMA realized volatility tracker.
// Instead of updating on every tick (which would mostly see identical or
// near-identical prices at sub-second spacing), it samples once per second
// and computes a log-return normalized to per-second units, so Sigma() is
// directly usable without a trades-per-second conversion.
type SampledEwmaVol struct {
	lambda          float64
	sigmaSq         float64
	lastSamplePrice float64
	lastSampleTsMs  int64
	seeded          bool
	nSamples        uint32
	minSamples      uint32
}

// NewSampledEwmaVol constructs a tracker with decay lambda and the minimum
// sample count required before IsValid reports true.
func NewSampledEwmaVol(lambda float64, minSamples uint32) *SampledEwmaVol {
	return &SampledEwmaVol{lambda: lambda, minSamples: minSamples}
}

// Update feeds a new trade price at tsMs. It only computes a return and
// advances the sample counter once at least 1000ms have elapsed since the
// last sample; the very first call seeds the tracker and reports no sample.
// Returns true if a new sample was taken.
func (e *SampledEwmaVol) Update(price float64, tsMs int64) bool {
	if price <= 0 {
		return false
	}
	if !e.seeded {
		e.lastSamplePrice = price
		e.lastSampleTsMs = tsMs
		e.seeded = true
		return false
	}
	elapsed := tsMs - e.lastSampleTsMs
	if elapsed < 1000 {
		return false
	}
	dtS := float64(elapsed) / 1000.0
	r := math.Log(price / e.lastSamplePrice)
	rSqPerSec := (r * r) / dtS

	e.sigmaSq = e.lambda*e.sigmaSq + (1-e.lambda)*rSqPerSec
	e.nSamples++
	e.lastSamplePrice = price
	e.lastSampleTsMs = tsMs
	return true
}

// Sigma is the per-second realized volatility estimate.
func (e *SampledEwmaVol) Sigma() float64 {
	return math.Sqrt(e.sigmaSq)
}

// IsValid reports whether enough samples have accumulated for the estimate
// to be trusted.
func (e *SampledEwmaVol) IsValid() bool {
	return e.nSamples >= e.minSamples
}

// NSamples is the number of samples taken so far.
func (e *SampledEwmaVol) NSamples() uint32 {
	return e.nSamples
}

// SigmaFloorPerSecond converts an annualized volatility floor into
// per-second units, assuming a 365-day year.
func SigmaFloorPerSecond(sigmaAnnual float64) float64 {
	const secondsPerYear = 365.0 * 24.0 * 3600.0
	return sigmaAnnual / math.Sqrt(secondsPerYear)
}

// SigmaReal returns the realized volatility to feed the pricer: the EWMA
// estimate once it is valid, floored against sigmaFloor so an illiquid or
// just-warmed-up market never prices with near-zero implied volatility.
func SigmaReal(e *SampledEwmaVol, sigmaFloor float64) float64 {
	if !e.IsValid() {
		return sigmaFloor
	}
	return math.Max(e.Sigma(), sigmaFloor)
}
