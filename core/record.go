package core

// RecordResult is the outcome of a probe
type RecordResult int

const (
	// Echoed is the result of a probe whose echo came back
	Echoed RecordResult = iota
	// Lost is the result of a probe that was evicted from the window or never echoed before the end of the run
	Lost
)

func (r RecordResult) String() string {
	switch r {
	case Echoed:
		return "echoed"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// Record is the report line of a resolved probe. Times are relative to the
// run start, in microseconds; RTT and Phase are plain deltas.
type Record struct {
	Number   uint64
	Sent     int64
	Received int64
	Echo     int64
	RTT      uint64
	UpT      int64
	DownT    int64
	Phase    int64
	Result   RecordResult
}

// buildLostRecord builds the record of a probe that was never echoed.
func buildLostRecord(l Loss, startTime uint64) *Record {
	return &Record{
		Number: l.Seq,
		Sent:   relative(l.SentAt, startTime),
		Result: Lost,
	}
}

// buildEchoedRecord builds the record of an echoed probe.
func buildEchoedRecord(e Echo, echoAt, startTime uint64, d Delay) *Record {
	return &Record{
		Number:   e.Seq,
		Sent:     relative(e.SentAt, startTime),
		Received: relative(e.RemoteAt, startTime),
		Echo:     relative(echoAt, startTime),
		RTT:      d.RTT,
		UpT:      d.Up,
		DownT:    d.Down,
		Phase:    d.Phase,
		Result:   Echoed,
	}
}

func relative(t, base uint64) int64 {
	return int64(t) - int64(base)
}
