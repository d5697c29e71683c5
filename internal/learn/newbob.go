package learn

import (
	"math"

	"github.com/rs/zerolog"
)

// Newbob anneals the learning rate from the held-out loss measured between checkpoints.
// A checkpoint whose loss does not improve on the best one costs a trial and decays the rate.
// Training converges when the trials run out.
type Newbob struct {
	Decay      float64
	NumTrials  int
	AutoLRDrop uint64
	Logger     zerolog.Logger

	bestLoss  float64
	bestDir   string
	trials    int
	lastDrop  uint64
	lossSum   float64
	lossCount int
}

func NewNewbob(decay float64, numTrials int, autoLRDrop uint64, logger zerolog.Logger) *Newbob {
	return &Newbob{
		Decay:      decay,
		NumTrials:  numTrials,
		AutoLRDrop: autoLRDrop,
		Logger:     logger,
		bestLoss:   math.Inf(1),
		trials:     numTrials,
	}
}

func (nb *Newbob) Enabled() bool {
	return nb.Decay != 1
}

// SetBest records the loss of the starting network and drops the pending measurements.
func (nb *Newbob) SetBest(loss float64, dir string) {
	nb.bestLoss = loss
	nb.bestDir = dir
	nb.lossSum = 0
	nb.lossCount = 0
}

func (nb *Newbob) BestLoss() float64 {
	return nb.bestLoss
}

// BestDir is the checkpoint directory with the lowest accepted loss.
func (nb *Newbob) BestDir() string {
	return nb.bestDir
}

// AddLoss accumulates the held-out loss of one measurement.
func (nb *Newbob) AddLoss(sum float64, count int) {
	nb.lossSum += sum
	nb.lossCount += count
}

// Step judges the checkpoint saved in dir and may decay *lr.
// It returns true when no trials are left.
func (nb *Newbob) Step(dir string, totalDone uint64, lr *float64) bool {
	if !nb.Enabled() || nb.lossCount == 0 {
		return false
	}
	var loss = nb.lossSum / float64(nb.lossCount)
	nb.lossSum = 0
	nb.lossCount = 0

	if nb.AutoLRDrop > 0 {
		nb.Logger.Info().Float64("loss", loss).Float64("best", nb.bestLoss).Msg("checkpoint accepted")
		nb.accept(loss, dir)
		if totalDone >= nb.lastDrop+nb.AutoLRDrop {
			nb.lastDrop = totalDone
			*lr *= nb.Decay
		}
	} else if loss < nb.bestLoss {
		nb.Logger.Info().Float64("loss", loss).Float64("best", nb.bestLoss).Msg("checkpoint accepted")
		nb.accept(loss, dir)
	} else {
		nb.Logger.Info().Float64("loss", loss).Float64("best", nb.bestLoss).Msg("checkpoint rejected")
		nb.trials--
		if nb.trials > 0 {
			var next = *lr * nb.Decay
			nb.Logger.Info().
				Float64("from", *lr).
				Float64("to", next).
				Int("trials", nb.trials).
				Msg("reducing learning rate")
			*lr = next
		}
	}
	if nb.trials <= 0 {
		nb.Logger.Info().Str("best", nb.bestDir).Msg("converged")
		return true
	}
	return false
}

func (nb *Newbob) accept(loss float64, dir string) {
	nb.bestLoss = loss
	nb.bestDir = dir
	nb.trials = nb.NumTrials
}
