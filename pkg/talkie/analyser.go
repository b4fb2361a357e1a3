package talkie

import (
	"math"
	"sync"
)

// Analyser taps the capture stream and keeps the energy of the latest frame
// for the VOX trigger and any level meter.
type Analyser struct {
	mu    sync.Mutex
	level float64
	peak  float64
}

func NewAnalyser() *Analyser {
	return &Analyser{}
}

// Update records the mean absolute amplitude of frame.
func (a *Analyser) Update(frame []float32) {
	level := MeanAbs(frame)
	a.mu.Lock()
	a.level = level
	if level > a.peak {
		a.peak = level
	}
	a.mu.Unlock()
}

// Level returns the mean energy of the most recent frame.
func (a *Analyser) Level() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.level
}

// Peak returns the highest level seen since the last Reset.
func (a *Analyser) Peak() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peak
}

func (a *Analyser) Reset() {
	a.mu.Lock()
	a.level = 0
	a.peak = 0
	a.mu.Unlock()
}

// MeanAbs is the mean absolute amplitude of samples.
func MeanAbs(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += math.Abs(float64(v))
	}
	return sum / float64(len(samples))
}

func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
