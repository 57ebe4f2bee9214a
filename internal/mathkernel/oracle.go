package mathkernel

import "math"

// OracleBasis models the known gap between the reference trade feed and the
// oracle price the settlement actually resolves against.
//
// S_est(t) = S_ref(t) + beta
// tau_eff  = tau + deltaOracleS
//
// Beta is the expected (oracle - reference) price difference at settlement,
// calibrated from historical settlements. DeltaOracleS is the oracle
// timestamp uncertainty in seconds, which keeps z/d2 from diverging as tau
// approaches zero.
type OracleBasis struct {
	Beta         float64
	DeltaOracleS float64
}

// SEst estimates the oracle-consistent price from the reference feed price.
func (o OracleBasis) SEst(refPrice float64) float64 {
	return refPrice + o.Beta
}

// TauEff is the effective time to expiry incorporating oracle uncertainty,
// floored at 0.001s to avoid division by zero.
func (o OracleBasis) TauEff(tauS float64) float64 {
	return math.Max(tauS+o.DeltaOracleS, 0.001)
}
