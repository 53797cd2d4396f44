package core

import (
	"encoding/binary"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

const testStart = 1000000

// manualClock only moves when told to
type manualClock struct {
	now uint64
}

func (c *manualClock) Now() uint64 {
	return c.now
}

type pendingDatagram struct {
	at   uint64
	data []byte
}

// fakeTransport is an in-memory responder driven by a manualClock. Receive
// advances the clock to the arrival of the next datagram or to the deadline.
type fakeTransport struct {
	clock *manualClock

	// rtt is the round trip of every echo, split evenly on both directions
	rtt uint64

	// offset is added to the remote receive time, modelling the remote clock
	offset int64

	drop      func(seq uint64) bool
	duplicate func(seq uint64) bool
	onSend    func(f *fakeTransport, p Probe)

	sendErr error
	recvErr error

	inbox  []pendingDatagram
	sent   []Probe
	closed bool
}

func newFakeTransport(rtt uint64) *fakeTransport {
	return &fakeTransport{
		clock: &manualClock{now: testStart},
		rtt:   rtt,
	}
}

func (f *fakeTransport) Send(b []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}

	p := Probe{
		Seq:    binary.BigEndian.Uint64(b[0:8]),
		SentAt: binary.BigEndian.Uint64(b[8:16]),
	}
	f.sent = append(f.sent, p)

	if f.onSend != nil {
		f.onSend(f, p)
	}

	if f.drop != nil && f.drop(p.Seq) {
		return nil
	}

	remote := uint64(int64(p.SentAt+f.rtt/2) + f.offset)
	echo := binary.BigEndian.AppendUint64(append([]byte{}, b[:ProbeSize]...), remote)
	f.inject(p.SentAt+f.rtt, echo)

	if f.duplicate != nil && f.duplicate(p.Seq) {
		f.inject(p.SentAt+f.rtt+1, echo)
	}
	return nil
}

func (f *fakeTransport) Receive(b []byte, timeout time.Duration) (int, error) {
	if f.recvErr != nil {
		return 0, f.recvErr
	}

	deadline := f.clock.now + uint64(timeout/time.Microsecond)

	next := -1
	for i, d := range f.inbox {
		if d.at <= deadline && (next < 0 || d.at < f.inbox[next].at) {
			next = i
		}
	}

	if next < 0 {
		f.clock.now = deadline
		return 0, ErrTimeout
	}

	d := f.inbox[next]
	f.inbox = append(f.inbox[:next], f.inbox[next+1:]...)
	f.clock.now = max(f.clock.now, d.at)
	return copy(b, d.data), nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

// inject queues a datagram arriving at the given local time
func (f *fakeTransport) inject(at uint64, data []byte) {
	f.inbox = append(f.inbox, pendingDatagram{at: at, data: data})
}

// recordingSink keeps every record in memory
type recordingSink struct {
	records []*Record
	flushes int
	err     error
}

func (r *recordingSink) Emit(rec *Record) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *recordingSink) Flush() error {
	r.flushes++
	return nil
}

func (r *recordingSink) count(res RecordResult) int {
	n := 0
	for _, rec := range r.records {
		if rec.Result == res {
			n++
		}
	}
	return n
}

var errFake = errors.New("fake failure")

// testSettings returns settings for a run of duration seconds with interval milliseconds between probes
func testSettings(interval, duration int) *Settings {
	settings := DefaultSettings()
	settings.Interval = interval
	settings.Duration = duration
	return settings
}

func newTestSession(settings *Settings, tr *fakeTransport) (*Session, *recordingSink) {
	sink := &recordingSink{}
	return newSession("test", settings, tr, tr.clock, sink, NewLogger(uint32(log.ErrorLevel))), sink
}
