package core

// Delay is the decomposition of one round trip. All values are in microseconds.
type Delay struct {
	RTT   uint64
	Up    int64
	Down  int64
	Phase int64
}

// PhaseEstimator splits round-trip times into uplink and downlink delays by
// tracking a smoothed offset between the remote and local clocks.
//
// The remote side is assumed to process a probe at the midpoint of its local
// send and receive times. Only samples within 1/8 of the best round trip seen
// so far move the offset, since slower samples carry queuing delay.
type PhaseEstimator struct {
	phase       int64
	minRTT      uint64
	initialized bool
}

// Update feeds one echo to the estimator. It reports false, leaving the
// estimate untouched, when the echo was not received after it was sent.
func (p *PhaseEstimator) Update(sentAt, remoteAt, echoAt uint64) (Delay, bool) {
	if sentAt >= echoAt {
		return Delay{Phase: p.phase}, false
	}

	rtt := echoAt - sentAt
	middle := sentAt + rtt/2
	sample := int64(remoteAt) - int64(middle)

	if !p.initialized {
		p.phase = sample
		p.minRTT = rtt
		p.initialized = true
	} else {
		p.minRTT = min(p.minRTT, rtt)
		if rtt < p.minRTT+p.minRTT/8 {
			p.phase = (7*p.phase + sample) / 8
		}
	}

	up := int64(remoteAt) - p.phase - int64(sentAt)
	down := int64(rtt) - up
	if up < 0 || down < 0 {
		p.phase = sample
		up = int64(rtt / 2)
		down = int64(rtt) - up
	}

	return Delay{RTT: rtt, Up: up, Down: down, Phase: p.phase}, true
}

// Phase returns the current remote minus local clock offset estimate and
// whether any valid sample has been seen.
func (p *PhaseEstimator) Phase() (int64, bool) {
	return p.phase, p.initialized
}

// MinRTT returns the smallest round trip seen so far.
func (p *PhaseEstimator) MinRTT() uint64 {
	return p.minRTT
}
