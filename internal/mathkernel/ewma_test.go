package mathkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampledEwmaBasic(t *testing.T) {
	vol := NewSampledEwmaVol(0.94, 5)
	basePrice := 100_000.0
	for i := int64(0); i < 10; i++ {
		sampled := vol.Update(basePrice, i*1000)
		if i == 0 {
			assert.False(t, sampled, "first price should just seed")
		} else {
			assert.True(t, sampled, "each subsequent 1s gap should sample")
		}
	}
	assert.Less(t, vol.Sigma(), 1e-10)
}

func TestSampledEwmaVolatile(t *testing.T) {
	vol := NewSampledEwmaVol(0.94, 5)
	for i := int64(0); i < 20; i++ {
		price := 100_000.0
		if i%2 != 0 {
			price = 100_100.0
		}
		vol.Update(price, i*1000)
	}
	assert.True(t, vol.IsValid())
	assert.Greater(t, vol.Sigma(), 0.0)
	assert.Less(t, vol.Sigma(), 0.01)
}

func TestSampledEwmaSkipsSubSecond(t *testing.T) {
	vol := NewSampledEwmaVol(0.94, 5)
	vol.Update(100_000.0, 0)
	for i := int64(1); i < 100; i++ {
		sampled := vol.Update(100_010.0, i*10)
		assert.False(t, sampled, "sub-second tick should not sample")
	}
	assert.Equal(t, uint32(0), vol.NSamples())
}

func TestSampledEwmaValidity(t *testing.T) {
	vol := NewSampledEwmaVol(0.94, 10)
	for i := int64(0); i < 10; i++ {
		vol.Update(100_000.0+float64(i), i*1000)
	}
	assert.False(t, vol.IsValid())
	vol.Update(100_010.0, 10_000)
	assert.True(t, vol.IsValid())
}

func TestSigmaRealFloorsWhenInvalid(t *testing.T) {
	vol := NewSampledEwmaVol(0.94, 300)
	vol.Update(100_000.0, 0)
	floor := SigmaFloorPerSecond(0.30)
	assert.Equal(t, floor, SigmaReal(vol, floor))
}

func TestSigmaRealUsesMaxOfEwmaAndFloor(t *testing.T) {
	vol := NewSampledEwmaVol(0.94, 1)
	vol.Update(100_000.0, 0)
	vol.Update(100_000.0, 1000)
	floor := 10.0
	assert.Equal(t, floor, SigmaReal(vol, floor))
}
