package core

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics provides several functions to update and retrieve stats about a session
type Statistics interface {
	SessionStarted()
	SessionEnded()
	ProbeSent()
	EchoReceived(d Delay)
	ProbeLost()
	EchoStale()
	DatagramDiscarded()

	GetStartTime() (time.Time, bool)
	GetEndTime() (time.Time, bool)

	GetTotalSent() uint32
	GetTotalRecv() uint32
	GetTotalLost() uint32
	GetTotalStale() uint32
	GetTotalDiscarded() uint32
	GetTotalPending() uint32
	GetPktLoss() float64

	GetRTTMax() uint64
	GetRTTMin() uint64
	GetRTTAvg() uint64
	GetRTTMDev() uint64

	GetUpMean() float64
	GetUpStdDev() float64
	GetDownMean() float64
	GetDownStdDev() float64
	GetPhase() int64
}

// statistics aggregate stats about a session
type statistics struct {

	// totalSent is the total amount of probes sent in this session.
	totalSent uint32

	// totalRecv is the total amount of echoes that resolved an outstanding probe.
	totalRecv uint32

	// totalLost is the total amount of probes reported as lost.
	totalLost uint32

	// totalStale is the total amount of echoes for probes that were no longer outstanding.
	totalStale uint32

	// totalDiscarded is the total amount of datagrams too short to be an echo.
	totalDiscarded uint32

	// delayMutex controls updates to the delay aggregates
	delayMutex sync.RWMutex

	// rttsCount is the number of valid round trips
	rttsCount uint64

	// rttsMin contains the smallest encountered rtt
	rttsMin uint64

	// rttsMax contains the largest encountered rtt
	rttsMax uint64

	// rttsSum contains the sum of all rtts
	rttsSum uint64

	// rttsSqSum contains the sum of all squared rtts
	rttsSqSum uint64

	// up and down hold the most recent one-way delay estimates
	up   *windowStats[int64]
	down *windowStats[int64]

	// phase is the last phase estimate
	phase int64

	// timeMutex controls updates to the times
	timeMutex sync.RWMutex

	// stTime contains the start time of the session
	stTime time.Time

	// started indicates whether the stTime has been initialized
	started bool

	// endTime contains the end time of the session
	endTime time.Time

	// ended indicates whether the endTime has been initialized
	ended bool
}

func (s *statistics) SessionStarted() {
	s.timeMutex.Lock()
	defer s.timeMutex.Unlock()

	s.stTime = time.Now()
	s.started = true
}

func (s *statistics) SessionEnded() {
	s.timeMutex.Lock()
	defer s.timeMutex.Unlock()

	s.endTime = time.Now()
	s.ended = true
}

func (s *statistics) ProbeSent() {
	atomic.AddUint32(&s.totalSent, 1)
}

func (s *statistics) EchoReceived(d Delay) {
	atomic.AddUint32(&s.totalRecv, 1)

	s.delayMutex.Lock()
	defer s.delayMutex.Unlock()

	s.phase = d.Phase
	if d.RTT == 0 {
		return
	}

	s.rttsCount++
	s.rttsMax = max(s.rttsMax, d.RTT)
	s.rttsMin = min(s.rttsMin, d.RTT)
	s.rttsSum += d.RTT
	s.rttsSqSum += d.RTT * d.RTT
	s.up.add(d.Up)
	s.down.add(d.Down)
}

func (s *statistics) ProbeLost() {
	atomic.AddUint32(&s.totalLost, 1)
}

func (s *statistics) EchoStale() {
	atomic.AddUint32(&s.totalStale, 1)
}

func (s *statistics) DatagramDiscarded() {
	atomic.AddUint32(&s.totalDiscarded, 1)
}

func (s *statistics) GetStartTime() (time.Time, bool) {
	s.timeMutex.RLock()
	defer s.timeMutex.RUnlock()

	return s.stTime, s.started
}

func (s *statistics) GetEndTime() (time.Time, bool) {
	s.timeMutex.RLock()
	defer s.timeMutex.RUnlock()

	return s.endTime, s.ended
}

func (s *statistics) GetTotalSent() uint32 {
	return atomic.LoadUint32(&s.totalSent)
}

func (s *statistics) GetTotalRecv() uint32 {
	return atomic.LoadUint32(&s.totalRecv)
}

func (s *statistics) GetTotalLost() uint32 {
	return atomic.LoadUint32(&s.totalLost)
}

func (s *statistics) GetTotalStale() uint32 {
	return atomic.LoadUint32(&s.totalStale)
}

func (s *statistics) GetTotalDiscarded() uint32 {
	return atomic.LoadUint32(&s.totalDiscarded)
}

func (s *statistics) GetTotalPending() uint32 {
	return s.GetTotalSent() - s.GetTotalRecv() - s.GetTotalLost()
}

func (s *statistics) GetPktLoss() float64 {
	if s.GetTotalSent() == 0 {
		return 0
	}

	return float64(s.GetTotalLost()) / float64(s.GetTotalSent())
}

func (s *statistics) GetRTTMax() uint64 {
	s.delayMutex.RLock()
	defer s.delayMutex.RUnlock()

	return s.rttsMax
}

func (s *statistics) GetRTTMin() uint64 {
	s.delayMutex.RLock()
	defer s.delayMutex.RUnlock()

	return min(s.rttsMax, s.rttsMin)
}

func (s *statistics) GetRTTAvg() uint64 {
	s.delayMutex.RLock()
	defer s.delayMutex.RUnlock()

	return s.rttAvg()
}

func (s *statistics) rttAvg() uint64 {
	if s.rttsCount == 0 {
		return 0
	}
	return s.rttsSum / s.rttsCount
}

func (s *statistics) GetRTTMDev() uint64 {
	s.delayMutex.RLock()
	defer s.delayMutex.RUnlock()

	if s.rttsCount == 0 {
		return 0
	}

	avg := s.rttAvg()
	sqrd := float64(s.rttsSqSum/s.rttsCount - avg*avg)
	return uint64(math.Sqrt(sqrd))
}

func (s *statistics) GetUpMean() float64 {
	s.delayMutex.RLock()
	defer s.delayMutex.RUnlock()

	return s.up.mean()
}

func (s *statistics) GetUpStdDev() float64 {
	s.delayMutex.RLock()
	defer s.delayMutex.RUnlock()

	return s.up.stdDev()
}

func (s *statistics) GetDownMean() float64 {
	s.delayMutex.RLock()
	defer s.delayMutex.RUnlock()

	return s.down.mean()
}

func (s *statistics) GetDownStdDev() float64 {
	s.delayMutex.RLock()
	defer s.delayMutex.RUnlock()

	return s.down.stdDev()
}

func (s *statistics) GetPhase() int64 {
	s.delayMutex.RLock()
	defer s.delayMutex.RUnlock()

	return s.phase
}

// NewStatistics creates and initializes a Statistics struct keeping the last
// window one-way delays for the mean and deviation.
func NewStatistics(window int) Statistics {
	return &statistics{
		rttsMin: math.MaxUint64,
		up:      newWindowStats[int64](window),
		down:    newWindowStats[int64](window),
	}
}

// initStatsCb is a callback to be used when a session starts, initializing the start time.
func initStatsCb(s *Session) {
	s.Stats.SessionStarted()
}

// finishStatsCb is a callback to be used when a session ends, recording the end time.
func finishStatsCb(s *Session) {
	s.Stats.SessionEnded()
}
