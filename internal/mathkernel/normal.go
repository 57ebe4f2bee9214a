// Package mathkernel implements the probability model: the normal CDF/PDF,
// the binary-option pricer built on them, 1-second-sampled EWMA volatility,
// rolling VWAP, the tick-direction regime classifier, and the oracle-basis
// adjustment. Every function here is pure and allocation-free so strategies
// can call it on every tick without budget concerns.
package mathkernel

import "math"

const invSqrt2Pi = 0.3989422804014327

// Abramowitz & Stegun 26.2.17 CDF approximation constants (max error < 7.5e-8).
const (
	asP  = 0.2316419
	asB1 = 0.319381530
	asB2 = -0.356563782
	asB3 = 1.781477937
	asB4 = -1.821255978
	asB5 = 1.330274429
)

// Phi is the standard normal PDF.
func Phi(x float64) float64 {
	return invSqrt2Pi * math.Exp(-0.5*x*x)
}

// CDF is the standard normal cumulative distribution function Φ(x), accurate
// to within 7.5e-8 via Abramowitz & Stegun 26.2.17. Uses the reflection
// identity CDF(x) = 1 - CDF(-x) for x < 0.
func CDF(x float64) float64 {
	if x < 0 {
		return 1.0 - CDF(-x)
	}
	t := 1.0 / (1.0 + asP*x)
	poly := t * (asB1 + t*(asB2+t*(asB3+t*(asB4+t*asB5))))
	return 1.0 - Phi(x)*poly
}
