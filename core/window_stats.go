package core

import (
	"math"

	"github.com/ddirect/container/fifo"
	"golang.org/x/exp/constraints"
)

// windowStats keeps the mean and standard deviation of the last max samples.
type windowStats[T constraints.Signed] struct {
	samples fifo.Fifo[T]
	max     int
	sum     float64
	sum2    float64
}

func newWindowStats[T constraints.Signed](max int) *windowStats[T] {
	return &windowStats[T]{max: max}
}

func (w *windowStats[T]) add(x T) {
	if w.samples.Len() >= w.max {
		if old, ok := w.samples.Dequeue(); ok {
			f := float64(old)
			w.sum -= f
			w.sum2 -= f * f
		}
	}

	f := float64(x)
	w.sum += f
	w.sum2 += f * f
	w.samples.Enqueue(x)
}

func (w *windowStats[T]) count() int {
	return w.samples.Len()
}

func (w *windowStats[T]) mean() float64 {
	n := w.samples.Len()
	if n == 0 {
		return 0
	}
	return w.sum / float64(n)
}

// stdDev is the sample standard deviation, zero below two samples.
func (w *windowStats[T]) stdDev() float64 {
	n := float64(w.samples.Len())
	if n < 2 {
		return 0
	}
	v := (w.sum2 - w.sum*w.sum/n) / (n - 1)
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}
