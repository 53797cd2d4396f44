package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// GracePeriod is how long echoes are still awaited after the last probe, in microseconds.
	GracePeriod = 3000000

	// progressPeriod is the time between two progress ticks, in microseconds.
	progressPeriod = 1000000

	// maxWait caps a single receive wait so that cancellation is noticed quickly.
	maxWait = 200 * time.Millisecond

	// recvBufferSize is large enough for any echo plus trailing bytes.
	recvBufferSize = 512
)

// Session is one measurement run against a responder
type Session struct {
	// Stats contain the overall statistics of the session
	Stats Statistics

	settings *Settings

	// id identifies the run in logs.
	id uuid.UUID

	// address is the target as given by the user
	address string

	transport Transport
	clock     Clock
	sink      Sink

	// window tracks outstanding probes to detect losses.
	window *Window

	// estimator decomposes round trips into one-way delays.
	estimator PhaseEstimator

	// nextSeq is the sequence number of the next probe to send.
	nextSeq uint64

	// startTime is the local clock reading at the start of the run, in microseconds.
	startTime uint64

	state State

	// err is the result of the run, set when reaching Done.
	err error

	// logger is an instance of logrus used to log activities related to this session
	logger *log.Entry

	recvBuf []byte
	sendBuf []byte

	isStarted  bool
	isFinished bool

	// stHandlers are called when the session starts.
	stHandlers []func(*Session)

	// sendHandlers are called after each probe is sent.
	sendHandlers []func(*Session, Probe)

	// recHandlers are called after each record is emitted to the sink.
	recHandlers []func(*Session, *Record)

	// tickHandlers are called once per second of run time.
	tickHandlers []func(*Session)

	// endHandlers are called when the session ends, successfully or not.
	endHandlers []func(*Session)
}

// NewSession creates a Session probing address, writing records to sink.
func NewSession(ctx context.Context, address string, settings *Settings, sink Sink) (*Session, error) {
	logger := NewLogger(settings.LoggingLevel)

	logger.Debug("Validating settings")

	err := settings.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger.Infof("Resolving address %s", address)

	transport, err := DialUDP(ctx, address, settings)
	if err != nil {
		return nil, err
	}

	logger.Infof("Address %s resolved to %s, bound to %s", address, transport.Peer(), transport.LocalAddr())

	return newSession(address, settings, transport, SystemClock(), sink, logger), nil
}

func newSession(address string, settings *Settings, transport Transport, clock Clock, sink Sink,
	logger *log.Logger) *Session {
	id := uuid.New()

	s := &Session{
		Stats:     NewStatistics(settings.StatsWindow),
		settings:  settings,
		id:        id,
		address:   address,
		transport: transport,
		clock:     clock,
		sink:      sink,
		window:    NewWindow(WindowCapacity),
		state:     WarmUp,
		logger:    logger.WithFields(log.Fields{"run": id.String(), "role": "prober"}),
		recvBuf:   make([]byte, recvBufferSize),
		sendBuf:   make([]byte, 0, ProbeSize),
	}

	s.AddStHandler(initStatsCb)
	s.AddEndHandler(finishStatsCb)

	return s
}

// Run sends probes for the configured duration, waits for late echoes and
// reports every probe still outstanding as lost. Cancelling ctx ends the run
// early with the same final report.
func (s *Session) Run(ctx context.Context) error {
	if s.isFinished {
		return errors.New("this session has already finished")
	}
	if s.isStarted {
		return errors.New("this session has already started")
	}
	s.isStarted = true
	defer s.transport.Close()

	s.startTime = s.clock.Now()
	s.setState(ActiveSendRecv)

	s.logger.Info("Calling start callbacks")
	for _, f := range s.stHandlers {
		f(s)
	}

	err := s.loop(ctx)

	s.setState(Finalizing)
	if err == nil {
		err = s.finalize()
	} else if ferr := s.sink.Flush(); ferr != nil {
		s.logger.Errorf("Could not flush partial report: %s", ferr)
	}

	s.err = err
	s.setState(Done)
	s.isFinished = true

	s.logger.Info("Calling ending callbacks")
	for _, f := range s.endHandlers {
		f(s)
	}

	if err != nil {
		s.logger.Errorf("Session ended with error: %s", err)
	}
	return err
}

// loop alternates between sending due probes and waiting for echoes until the
// grace period after the last probe has elapsed.
func (s *Session) loop(ctx context.Context) error {
	interval := s.settings.IntervalMicros()
	endSend := s.startTime + s.settings.DurationMicros()
	endRecv := endSend + GracePeriod
	nextSend := s.startTime
	nextTick := s.startTime + progressPeriod

	for {
		now := s.clock.Now()
		if now >= endRecv {
			s.logger.Info("Grace period over")
			return nil
		}

		if ctx.Err() != nil {
			s.logger.Info("Run cancelled, finishing early")
			return nil
		}

		if now >= nextTick {
			if err := s.tick(); err != nil {
				return err
			}
			for nextTick <= now {
				nextTick += progressPeriod
			}
		}

		if s.state == ActiveSendRecv && now >= nextSend {
			if err := s.sendProbe(now); err != nil {
				return err
			}

			// skip missed slots instead of bursting to catch up
			for nextSend <= now {
				nextSend += interval
			}
			if nextSend > endSend {
				s.logger.Infof("Last probe sent, waiting %s for late echoes", usToDuration(endRecv-now))
				nextSend = endRecv
				s.setState(DrainWait)
			}
			continue
		}

		wait := min(usToDuration(nextSend-now), maxWait)
		if s.state == DrainWait {
			wait = min(usToDuration(endRecv-now), maxWait)
		}

		s.logger.Tracef("Waiting up to %s for a datagram", wait)
		n, err := s.transport.Receive(s.recvBuf, wait)
		if errors.Is(err, ErrTimeout) {
			continue
		}
		if err != nil {
			return &TransportError{Op: "receiving echo", Err: err}
		}

		if err := s.handleDatagram(s.recvBuf[:n], s.clock.Now()); err != nil {
			return err
		}
	}
}

// sendProbe sends the next probe and registers it in the window.
func (s *Session) sendProbe(now uint64) error {
	probe := Probe{Seq: s.nextSeq, SentAt: now}

	s.sendBuf = AppendProbe(s.sendBuf[:0], probe)
	s.logger.Tracef("Sending probe %d: %x", probe.Seq, s.sendBuf)

	if err := s.transport.Send(s.sendBuf); err != nil {
		return &TransportError{Op: "sending probe", Err: err}
	}

	s.nextSeq++
	s.Stats.ProbeSent()

	if lost, evicted := s.window.Register(probe.Seq, probe.SentAt); evicted {
		s.logger.Debugf("Probe %d evicted from the window without echo", lost.Seq)
		if err := s.reportLoss(lost); err != nil {
			return err
		}
	}

	for _, f := range s.sendHandlers {
		f(s, probe)
	}
	return nil
}

// handleDatagram decodes one received datagram and reports the probe it resolves.
func (s *Session) handleDatagram(b []byte, echoAt uint64) error {
	echo, err := ParseEcho(b)
	if err != nil {
		s.logger.Debugf("Discarding datagram: %s", err)
		s.Stats.DatagramDiscarded()
		return nil
	}

	if echo.Seq >= s.nextSeq {
		return fmt.Errorf("%w: received number %d while next number to send is %d",
			ErrProtocolViolation, echo.Seq, s.nextSeq)
	}

	if _, ok := s.window.Resolve(echo.Seq); !ok {
		s.logger.Debugf("Echo %d does not match an outstanding probe", echo.Seq)
		s.Stats.EchoStale()
		return nil
	}

	delay, valid := s.estimator.Update(echo.SentAt, echo.RemoteAt, echoAt)
	if !valid {
		s.logger.Warnf("Echo %d received before it was sent (sent %d, echo %d)", echo.Seq, echo.SentAt, echoAt)
	}
	s.Stats.EchoReceived(delay)

	s.logger.Tracef("Echo %d: rtt %d up %d down %d phase %d", echo.Seq, delay.RTT, delay.Up, delay.Down, delay.Phase)

	return s.emit(buildEchoedRecord(echo, echoAt, s.startTime, delay))
}

// finalize reports every probe left in the window as lost and flushes the sink.
func (s *Session) finalize() error {
	losses := s.window.Drain()
	s.logger.Infof("Draining window, %d probes were never echoed", len(losses))

	for _, l := range losses {
		if err := s.reportLoss(l); err != nil {
			return err
		}
	}

	if err := s.sink.Flush(); err != nil {
		return &ReportError{Err: err}
	}
	return nil
}

func (s *Session) reportLoss(l Loss) error {
	s.Stats.ProbeLost()
	return s.emit(buildLostRecord(l, s.startTime))
}

func (s *Session) emit(rec *Record) error {
	if err := s.sink.Emit(rec); err != nil {
		return &ReportError{Err: err}
	}

	for _, f := range s.recHandlers {
		f(s, rec)
	}
	return nil
}

// tick flushes the sink and notifies progress handlers.
func (s *Session) tick() error {
	if err := s.sink.Flush(); err != nil {
		return &ReportError{Err: err}
	}

	for _, f := range s.tickHandlers {
		f(s)
	}
	return nil
}

func (s *Session) setState(state State) {
	if s.state == state {
		return
	}
	s.logger.Infof("State %s -> %s", s.state, state)
	s.state = state
}

// State returns the current phase of the run.
func (s *Session) State() State {
	return s.state
}

// Err returns the result of a finished run.
func (s *Session) Err() error {
	return s.err
}

// ID returns the identifier of the run.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Address is the target as given when creating the session
func (s *Session) Address() string {
	return s.address
}

// Settings returns the settings of the session
func (s *Session) Settings() *Settings {
	return s.settings
}

// NextSequence returns the sequence number of the next probe to send.
func (s *Session) NextSequence() uint64 {
	return s.nextSeq
}

// Phase returns the current clock phase estimate and whether it has been initialized.
func (s *Session) Phase() (int64, bool) {
	return s.estimator.Phase()
}

// IsStarted returns whether this session is started
func (s *Session) IsStarted() bool {
	return s.isStarted
}

// IsFinished returns whether this session is finished
func (s *Session) IsFinished() bool {
	return s.isFinished
}

// AddStHandler adds a handler function that will be called when the session starts
func (s *Session) AddStHandler(handler func(*Session)) {
	s.stHandlers = append(s.stHandlers, handler)
}

// AddSendHandler adds a handler function that will be called after each probe is sent
func (s *Session) AddSendHandler(handler func(*Session, Probe)) {
	s.sendHandlers = append(s.sendHandlers, handler)
}

// AddRecHandler adds a handler function that will be called after each record is emitted
func (s *Session) AddRecHandler(handler func(*Session, *Record)) {
	s.recHandlers = append(s.recHandlers, handler)
}

// AddTickHandler adds a handler function that will be called once per second of run time
func (s *Session) AddTickHandler(handler func(*Session)) {
	s.tickHandlers = append(s.tickHandlers, handler)
}

// AddEndHandler adds a handler function that will be called when the session ends
func (s *Session) AddEndHandler(handler func(*Session)) {
	s.endHandlers = append(s.endHandlers, handler)
}
