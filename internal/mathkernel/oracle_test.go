package mathkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOracleSEst(t *testing.T) {
	ob := OracleBasis{Beta: 10.0, DeltaOracleS: 2.0}
	assert.Equal(t, 100_010.0, ob.SEst(100_000.0))
}

func TestOracleTauEff(t *testing.T) {
	ob := OracleBasis{Beta: 0.0, DeltaOracleS: 2.0}
	assert.Equal(t, 7.0, ob.TauEff(5.0))
	assert.Equal(t, 0.001, ob.TauEff(-5.0))
}

func TestOracleZeroBeta(t *testing.T) {
	ob := OracleBasis{}
	assert.Equal(t, 100_000.0, ob.SEst(100_000.0))
	assert.Equal(t, 300.0, ob.TauEff(300.0))
}
