package core

import "time"

// Clock provides the current time in microseconds.
type Clock interface {
	Now() uint64
}

type systemClock struct{}

func (systemClock) Now() uint64 {
	return uint64(time.Now().UnixMicro())
}

// SystemClock returns the wall clock of the local host.
func SystemClock() Clock {
	return systemClock{}
}

// usToDuration converts a microsecond count into a time.Duration.
func usToDuration(us uint64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
