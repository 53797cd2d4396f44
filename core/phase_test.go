package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPhaseFirstSample verifies the decomposition of the very first echo
func TestPhaseFirstSample(t *testing.T) {
	var p PhaseEstimator

	d, ok := p.Update(1000000, 1000050, 1000100)
	assert.True(t, ok)
	assert.Equal(t, Delay{RTT: 100, Up: 50, Down: 50, Phase: 0}, d)
	assert.Equal(t, uint64(100), p.MinRTT())

	phase, initialized := p.Phase()
	assert.True(t, initialized)
	assert.Zero(t, phase)
}

// TestPhaseInvalidSample verifies that echoes not received after their send time are ignored
func TestPhaseInvalidSample(t *testing.T) {
	var p PhaseEstimator

	d, ok := p.Update(1000, 900, 1000)
	assert.False(t, ok)
	assert.Zero(t, d.RTT)

	_, initialized := p.Phase()
	assert.False(t, initialized)
}

// TestPhaseConvergence verifies that a constant path converges on the true clock offset
func TestPhaseConvergence(t *testing.T) {
	const (
		rtt    = 10000
		offset = 123456
	)

	var p PhaseEstimator

	// the first sample is skewed by queuing on the way up
	sent := uint64(5000000)
	p.Update(sent, sent+rtt/2+offset+4000, sent+rtt)

	var d Delay
	for i := 0; i < 64; i++ {
		sent += 20000
		d, _ = p.Update(sent, uint64(int64(sent+rtt/2)+offset), sent+rtt)
	}

	assert.InDelta(t, offset, d.Phase, rtt/100)
	assert.InDelta(t, rtt/2, d.Up, rtt/100)
	assert.Equal(t, int64(rtt)-d.Up, d.Down)
}

// TestPhaseConstantPathExact verifies that after eight clean samples the phase is exact
func TestPhaseConstantPathExact(t *testing.T) {
	const (
		rtt    = 2000
		offset = -7777
	)

	var p PhaseEstimator
	sent := uint64(3000000)
	for i := 0; i < 8; i++ {
		d, ok := p.Update(sent, uint64(int64(sent+rtt/2)+offset), sent+rtt)
		assert.True(t, ok)
		assert.InDelta(t, offset, d.Phase, rtt/100)
		sent += 1000
	}
}

// TestPhaseOutlierRejected verifies that a slow sample does not move the phase
func TestPhaseOutlierRejected(t *testing.T) {
	var p PhaseEstimator
	p.Update(1000000, 1000050, 1000100)

	// rtt of 200 is well beyond 9/8 of the best rtt
	d, ok := p.Update(2000000, 2000180, 2000200)
	assert.True(t, ok)
	assert.Zero(t, d.Phase)
	assert.Equal(t, int64(180), d.Up)
	assert.Equal(t, int64(20), d.Down)
	assert.Equal(t, uint64(100), p.MinRTT())
}

// TestPhaseNegativeDelayFallback verifies that an inconsistent decomposition resets the phase and splits evenly
func TestPhaseNegativeDelayFallback(t *testing.T) {
	var p PhaseEstimator
	p.Update(1000000, 1000050, 1000100)

	sent := uint64(2000000)
	remote := sent - 800
	echo := sent + 100
	middle := sent + 50

	d, ok := p.Update(sent, remote, echo)
	assert.True(t, ok)
	assert.Equal(t, uint64(100), d.RTT)
	assert.Equal(t, int64(50), d.Up)
	assert.Equal(t, int64(50), d.Down)
	assert.Equal(t, int64(remote)-int64(middle), d.Phase)

	phase, _ := p.Phase()
	assert.Equal(t, int64(-850), phase)
}

// TestPhaseOddRTTSplit verifies the even split gives the extra microsecond to the downlink
func TestPhaseOddRTTSplit(t *testing.T) {
	var p PhaseEstimator
	p.Update(1000000, 1000050, 1000100)

	d, _ := p.Update(2000000, 1000000, 2000101)
	assert.Equal(t, int64(50), d.Up)
	assert.Equal(t, int64(51), d.Down)
}
