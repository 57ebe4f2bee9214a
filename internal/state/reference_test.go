package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferenceStateSigmaFloorsBeforeWarmup(t *testing.T) {
	r := NewReferenceState(0.94, 300, 0.30, 30_000, 60_000)
	r.OnTrade(95_000.0, 0, 1.0)
	assert.Equal(t, r.SigmaFloor, r.SigmaReal())
}

func TestReferenceStateTracksPriceAndTs(t *testing.T) {
	r := NewReferenceState(0.94, 5, 0.30, 30_000, 60_000)
	r.OnTrade(95_000.0, 1000, 1.0)
	r.OnTrade(95_100.0, 2000, 1.0)
	assert.Equal(t, 95_100.0, r.Price)
	assert.EqualValues(t, 2000, r.TsMs)
	assert.True(t, r.VwapTracker.HasData())
}
