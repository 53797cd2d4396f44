package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/mikaelmello/delayprobe/core"
)

// printer writes human oriented progress and the final summary, away from the report
type printer struct {
	w io.Writer

	// dots prints a progress dot every second, used when the report goes to a file
	dots    bool
	printed bool
}

func newPrinter(w io.Writer, dots bool) *printer {
	return &printer{w: w, dots: dots}
}

// register registers its callbacks to be called by the session
func (p *printer) register(s *core.Session) {
	s.AddStHandler(p.printOnStart)
	s.AddTickHandler(p.printOnTick)
	s.AddEndHandler(p.printOnEnd)
}

func (p *printer) printOnStart(s *core.Session) {
	settings := s.Settings()
	fmt.Fprintf(p.w, "Will send probes to %s port %d every %d ms for %d s (run %s)\n",
		s.Address(), settings.Port, settings.Interval, settings.Duration, s.ID())
}

func (p *printer) printOnTick(s *core.Session) {
	if !p.dots {
		return
	}
	fmt.Fprint(p.w, ".")
	p.printed = true
}

func (p *printer) printOnEnd(s *core.Session) {
	if p.printed {
		fmt.Fprintln(p.w)
	}

	st, _ := s.Stats.GetStartTime()
	end, _ := s.Stats.GetEndTime()
	totalTime := end.Sub(st).Truncate(time.Millisecond)

	rttMin := float64(s.Stats.GetRTTMin()) / 1000
	rttMax := float64(s.Stats.GetRTTMax()) / 1000
	rttAvg := float64(s.Stats.GetRTTAvg()) / 1000
	rttMDev := float64(s.Stats.GetRTTMDev()) / 1000

	fmt.Fprintf(p.w, "--- %s delay statistics ---\n", s.Address())
	fmt.Fprintf(p.w, "%d probes sent, %d echoed, %d lost, %.2f%% packet loss, time %s\n",
		s.Stats.GetTotalSent(), s.Stats.GetTotalRecv(), s.Stats.GetTotalLost(), s.Stats.GetPktLoss()*100, totalTime)
	if n := s.Stats.GetTotalStale() + s.Stats.GetTotalDiscarded(); n > 0 {
		fmt.Fprintf(p.w, "%d late or duplicate echoes, %d malformed datagrams ignored\n",
			s.Stats.GetTotalStale(), s.Stats.GetTotalDiscarded())
	}
	fmt.Fprintf(p.w, "rtt min/avg/max/mdev = %.3f/%.3f/%.3f/%.3f ms\n", rttMin, rttAvg, rttMax, rttMDev)
	fmt.Fprintf(p.w, "up mean/sd = %.3f/%.3f ms, down mean/sd = %.3f/%.3f ms, phase %d us\n",
		s.Stats.GetUpMean()/1000, s.Stats.GetUpStdDev()/1000,
		s.Stats.GetDownMean()/1000, s.Stats.GetDownStdDev()/1000, s.Stats.GetPhase())
	if err := s.Err(); err != nil {
		fmt.Fprintf(p.w, "run aborted: %s\n", err)
	}
}
