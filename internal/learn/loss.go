package learn

import (
	"math"

	"github.com/ChizhovVadim/CounterLearn/internal/ml"
	"github.com/ChizhovVadim/CounterLearn/pkg/common"
	"github.com/rs/zerolog"
)

const lossEpsilon = 1e-6

// Cubic coefficients of the win rate model, in m = min(240, ply) / 64.
var (
	winRateAs = [4]float64{-8.24404295, 64.23892342, -95.73056462, 153.86478679}
	winRateBs = [4]float64{-3.37154371, 28.44489198, -56.67657741, 72.05858751}
)

// winRateParams returns the logistic center a and width b of the win rate model at ply.
func winRateParams(ply int) (a, b float64) {
	var m = float64(min(240, ply)) / 64
	a = ((winRateAs[0]*m+winRateAs[1])*m+winRateAs[2])*m + winRateAs[3]
	b = ((winRateBs[0]*m+winRateBs[1])*m+winRateBs[2])*m + winRateBs[3]
	return a, b
}

// winRate returns the win probability per mille of a position scored v at the given ply.
func winRate(v float64, ply int) float64 {
	var a, b = winRateParams(ply)
	var x = common.Clamp(v, -2000, 2000)
	return 1000 / (1 + math.Exp((a-x)/b))
}

// wdlExpectation returns q = (W + D/2) / 1000, its complement 1-q and dq/dv.
// q = (σ((x-a)/b) + σ((x+a)/b)) / 2; 1-q is summed from the complementary sigmoids.
// Outside the clamp the derivative at the boundary is used.
func wdlExpectation(v float64, ply int) (q, notQ, dq float64) {
	var a, b = winRateParams(ply)
	var x = common.Clamp(v, -2000, 2000)
	var u1 = (x - a) / b
	var u2 = (x + a) / b
	var s1, n1 = ml.Sigmoid(u1), ml.Sigmoid(-u1)
	var s2, n2 = ml.Sigmoid(u2), ml.Sigmoid(-u2)
	q = 0.5 * (s1 + s2)
	notQ = 0.5 * (n1 + n2)
	dq = 0.5 * (s1*n1 + s2*n2) / b
	return q, notQ, dq
}

// lossModel maps scores to win probabilities and computes the training gradient.
// d is the label score, s the network score, both from the record's side to move.
type lossModel struct {
	coef        float64
	useWDL      bool
	lambda      float64
	lambda2     float64
	lambdaLimit float64
	srcMin      float64
	srcMax      float64
	destMin     float64
	destMax     float64
}

func newLossModel(cfg *Config) lossModel {
	return lossModel{
		coef:        cfg.WinningProbabilityCoefficient,
		useWDL:      cfg.UseWDL,
		lambda:      cfg.Lambda,
		lambda2:     cfg.Lambda2,
		lambdaLimit: cfg.LambdaLimit,
		srcMin:      cfg.SrcScoreMin,
		srcMax:      cfg.SrcScoreMax,
		destMin:     cfg.DestScoreMin,
		destMax:     cfg.DestScoreMax,
	}
}

func (lm *lossModel) win(v float64, ply int) float64 {
	if lm.useWDL {
		var q, _, _ = wdlExpectation(v, ply)
		return q
	}
	return ml.Sigmoid(v * lm.coef)
}

func (lm *lossModel) scale(v float64) float64 {
	return (v-lm.srcMin)/(lm.srcMax-lm.srcMin)*(lm.destMax-lm.destMin) + lm.destMin
}

func (lm *lossModel) label(d float64, ply int) float64 {
	return lm.win(lm.scale(d), ply)
}

func (lm *lossModel) lambdaFor(d float64) float64 {
	if math.Abs(d) >= lm.lambdaLimit {
		return lm.lambda2
	}
	return lm.lambda
}

func gameTarget(result int) float64 {
	return float64(result+1) * 0.5
}

// dCrossEntropy is the derivative in s of -(p·log(q) + (1-p)·log(1-q)),
// divided by coef to match the sigmoid scale.
func (lm *lossModel) dCrossEntropy(p, s float64, ply int) float64 {
	var q, notQ, dq = wdlExpectation(s, ply)
	return dq * ((1-p)/notQ - p/q) / lm.coef
}

// Gradient of the loss with respect to s.
func (lm *lossModel) Gradient(d, s float64, ply, result int) float64 {
	var p = lm.label(d, ply)
	var t = gameTarget(result)
	var lambda = lm.lambdaFor(d)
	if lm.useWDL {
		return lambda*lm.dCrossEntropy(p, s, ply) + (1-lambda)*lm.dCrossEntropy(t, s, ply)
	}
	var q = lm.win(s, ply)
	return lambda*(q-p) + (1-lambda)*(q-t)
}

// Add accumulates the cross-entropy diagnostics of one example.
func (lm *lossModel) Add(stats *LossStats, d, s float64, ply, result int) {
	var q = lm.win(s, ply)
	var p = lm.label(d, ply)
	var t = gameTarget(result)
	var lambda = lm.lambdaFor(d)
	var m = (1-lambda)*t + lambda*p

	stats.CrossEntropyEval += binaryEntropy(p, q)
	stats.CrossEntropyWin += binaryEntropy(t, q)
	stats.EntropyEval += binaryEntropy(p, p)
	stats.EntropyWin += binaryEntropy(t, t)
	stats.CrossEntropy += binaryEntropy(m, q)
	stats.Entropy += binaryEntropy(m, m)
	stats.NormEval += math.Abs(d - s)
	stats.NormWin += math.Abs(t - q)
	stats.Count++
}

func binaryEntropy(p, q float64) float64 {
	return -p*math.Log(q+lossEpsilon) - (1-p)*math.Log(1-q+lossEpsilon)
}

// LossStats sums diagnostics over a set of examples.
type LossStats struct {
	CrossEntropyEval float64
	CrossEntropyWin  float64
	EntropyEval      float64
	EntropyWin       float64
	CrossEntropy     float64
	Entropy          float64
	NormEval         float64
	NormWin          float64
	MoveAccord       int
	Count            int
}

func (s *LossStats) Merge(other *LossStats) {
	s.CrossEntropyEval += other.CrossEntropyEval
	s.CrossEntropyWin += other.CrossEntropyWin
	s.EntropyEval += other.EntropyEval
	s.EntropyWin += other.EntropyWin
	s.CrossEntropy += other.CrossEntropy
	s.Entropy += other.Entropy
	s.NormEval += other.NormEval
	s.NormWin += other.NormWin
	s.MoveAccord += other.MoveAccord
	s.Count += other.Count
}

// Loss is the mean of cross entropy minus entropy, zero for a perfect fit.
func (s *LossStats) Loss() float64 {
	if s.Count == 0 {
		return 0
	}
	return (s.CrossEntropy - s.Entropy) / float64(s.Count)
}

func (s *LossStats) Log(e *zerolog.Event) *zerolog.Event {
	if s.Count == 0 {
		return e.Int("count", 0)
	}
	var n = float64(s.Count)
	return e.
		Int("count", s.Count).
		Float64("ce_eval", s.CrossEntropyEval/n).
		Float64("ce_win", s.CrossEntropyWin/n).
		Float64("entropy_eval", s.EntropyEval/n).
		Float64("entropy_win", s.EntropyWin/n).
		Float64("ce", s.CrossEntropy/n).
		Float64("entropy", s.Entropy/n).
		Float64("loss", s.Loss()).
		Float64("norm_eval", s.NormEval/n).
		Float64("norm_win", s.NormWin/n).
		Float64("move_accuracy", float64(s.MoveAccord)/n)
}
