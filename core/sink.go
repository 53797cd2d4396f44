package core

import (
	"bufio"
	"fmt"
	"io"
)

// ReportHeader is the first line written by a CSVSink.
const ReportHeader = "number, sent, received, echo, rtt, up_t, down_t, phase"

// Sink receives one record per resolved probe.
type Sink interface {
	Emit(rec *Record) error
	Flush() error
}

// CSVSink writes records as comma separated lines, preceded by ReportHeader.
type CSVSink struct {
	w          *bufio.Writer
	headerDone bool
}

// NewCSVSink creates a sink writing to w. Output is buffered until Flush.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line if it has not been written yet.
func (s *CSVSink) WriteHeader() error {
	if s.headerDone {
		return nil
	}
	if _, err := fmt.Fprintln(s.w, ReportHeader); err != nil {
		return fmt.Errorf("could not write header: %w", err)
	}
	s.headerDone = true
	return nil
}

// Emit writes rec as one line.
func (s *CSVSink) Emit(rec *Record) error {
	if err := s.WriteHeader(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(s.w, "%d,%d,%d,%d,%d,%d,%d,%d\n",
		rec.Number, rec.Sent, rec.Received, rec.Echo, rec.RTT, rec.UpT, rec.DownT, rec.Phase)
	if err != nil {
		return fmt.Errorf("could not write record %d: %w", rec.Number, err)
	}
	return nil
}

// Flush pushes buffered lines to the underlying writer.
func (s *CSVSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("could not flush report: %w", err)
	}
	return nil
}
