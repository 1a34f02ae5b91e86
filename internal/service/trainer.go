package service

import (
	"context"
	"math"
	"math/rand/v2"
)

// EpochInput describes the epoch a Trainer is asked to run.
type EpochInput struct {
	Epoch          int
	Epochs         int
	Specialization string
	ExampleCount   int
}

type EpochMetrics struct {
	Loss     float64
	Accuracy float64
}

// Trainer produces the metrics of one training epoch.
type Trainer interface {
	TrainEpoch(ctx context.Context, in EpochInput) (EpochMetrics, error)
}

// baseAccuracy is the starting accuracy per specialization.
var baseAccuracy = map[string]float64{
	"general":      0.60,
	"conversation": 0.65,
	"programming":  0.70,
	"support":      0.66,
	"education":    0.68,
	"creative":     0.62,
}

const (
	defaultSpecialization = "general"
	maxSimulatedAccuracy  = 0.98
	minSimulatedLoss      = 0.05
	noiseAmplitude        = 0.02
)

// ValidSpecialization reports whether name has a base accuracy.
func ValidSpecialization(name string) bool {
	_, ok := baseAccuracy[name]
	return ok
}

// SimulatedTrainer produces synthetic learning curves. No model is fitted.
type SimulatedTrainer struct {
	// Noise returns a value in [-0.02, 0.02]. Nil uses math/rand/v2.
	Noise func() float64
}

func (t SimulatedTrainer) noise() float64 {
	if t.Noise != nil {
		return t.Noise()
	}
	return (rand.Float64()*2 - 1) * noiseAmplitude
}

func (t SimulatedTrainer) TrainEpoch(ctx context.Context, in EpochInput) (EpochMetrics, error) {
	if err := ctx.Err(); err != nil {
		return EpochMetrics{}, err
	}
	base, ok := baseAccuracy[in.Specialization]
	if !ok {
		base = baseAccuracy[defaultSpecialization]
	}
	n := t.noise()
	epoch := float64(in.Epoch)
	return EpochMetrics{
		Accuracy: math.Min(maxSimulatedAccuracy, base+math.Log(epoch+1)*0.05+n),
		Loss:     math.Max(minSimulatedLoss, 2.5-epoch*0.2+math.Abs(n)),
	}, nil
}
