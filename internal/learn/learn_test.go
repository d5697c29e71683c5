package learn

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ChizhovVadim/CounterLearn/internal/gensfen"
	"github.com/ChizhovVadim/CounterLearn/internal/nnue"
	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
	"github.com/ChizhovVadim/CounterLearn/pkg/engine"
	eval "github.com/ChizhovVadim/CounterLearn/pkg/eval/material"
	"github.com/rs/zerolog"
)

var testLogger = zerolog.New(io.Discard)

func TestNewbob(t *testing.T) {
	var nb = NewNewbob(0.5, 2, 0, testLogger)
	var lr = 1.0
	var tests = []struct {
		loss      float64
		converged bool
		lr        float64
		best      string
	}{
		{0.5, false, 1, "0"},
		{0.45, false, 1, "1"},
		{0.46, false, 0.5, "1"},
		{0.47, true, 0.5, "1"},
	}
	for i, test := range tests {
		nb.AddLoss(test.loss*10, 10)
		var dir = string(rune('0' + i))
		var converged = nb.Step(dir, uint64(i), &lr)
		if converged != test.converged || lr != test.lr || nb.BestDir() != test.best {
			t.Error(i, test, converged, lr, nb.BestDir())
		}
	}
}

func TestNewbobAutoLRDrop(t *testing.T) {
	var nb = NewNewbob(0.5, 1, 100, testLogger)
	var lr = 1.0
	var steps = []struct {
		loss      float64
		totalDone uint64
		lr        float64
	}{
		{0.5, 50, 1},
		{0.6, 100, 0.5},
		{0.7, 150, 0.5},
		{0.8, 200, 0.25},
	}
	for i, step := range steps {
		nb.AddLoss(step.loss, 1)
		if nb.Step("dir", step.totalDone, &lr) {
			t.Error(i, "converged")
		}
		if lr != step.lr || nb.BestLoss() != step.loss {
			t.Error(i, step, lr, nb.BestLoss())
		}
	}
}

func TestNewbobDisabled(t *testing.T) {
	var nb = NewNewbob(1, 1, 0, testLogger)
	var lr = 1.0
	nb.AddLoss(1, 1)
	if nb.Step("dir", 0, &lr) || lr != 1 || nb.BestDir() != "" {
		t.Error(lr, nb.BestDir())
	}
}

func testLossModel(useWDL bool, lambda float64) lossModel {
	var cfg = DefaultConfig()
	cfg.UseWDL = useWDL
	cfg.Lambda = lambda
	cfg.Lambda2 = lambda
	return newLossModel(&cfg)
}

func TestGradientMonotonic(t *testing.T) {
	for _, lambda := range []float64{0, 0.5, 1} {
		var lm = testLossModel(false, lambda)
		for _, result := range []int{-1, 0, 1} {
			var prev = math.Inf(-1)
			for s := -1500.0; s <= 1500; s += 50 {
				var grad = lm.Gradient(200, s, 60, result)
				if grad < prev {
					t.Error(lambda, result, s, grad, prev)
				}
				prev = grad
			}
		}
	}
}

func TestGradientSignWDL(t *testing.T) {
	var lm = testLossModel(true, 1)
	for _, d := range []float64{-400, 0, 250} {
		for s := -1500.0; s <= 1500; s += 50 {
			if math.Abs(s-d) < 50 {
				continue
			}
			var grad = lm.Gradient(d, s, 60, 0)
			if (grad > 0) != (s > d) {
				t.Error(d, s, grad)
			}
		}
	}
}

func TestGradientWDLSaturated(t *testing.T) {
	for _, lambda := range []float64{1, 0.5} {
		var lm = testLossModel(true, lambda)
		for _, result := range []int{0, 1} {
			for _, s := range []float64{900, 1500, 1800, 2000, 3000, 15000} {
				var grad = lm.Gradient(250, s, 60, result)
				if math.IsNaN(grad) || math.IsInf(grad, 0) || grad <= 0 {
					t.Error(lambda, result, s, grad)
				}
				grad = lm.Gradient(-250, -s, 60, -result)
				if math.IsNaN(grad) || math.IsInf(grad, 0) || grad >= 0 {
					t.Error(lambda, -result, -s, grad)
				}
			}
		}
	}
}

func TestGradientWDLNumeric(t *testing.T) {
	var lm = testLossModel(true, 1)
	const h = 1e-2
	var crossEntropy = func(p, s float64) float64 {
		var q = lm.win(s, 60)
		return -p*math.Log(q) - (1-p)*math.Log(1-q)
	}
	for _, d := range []float64{-300, 0, 250} {
		var p = lm.label(d, 60)
		for _, s := range []float64{-600, -50, 100, 700} {
			var numeric = (crossEntropy(p, s+h) - crossEntropy(p, s-h)) / (2 * h) / lm.coef
			var grad = lm.Gradient(d, s, 60, 0)
			if math.Abs(grad-numeric) > 1e-6*math.Max(1, math.Abs(numeric)) {
				t.Error(d, s, grad, numeric)
			}
		}
	}
}

func TestGradientAtLabel(t *testing.T) {
	var lm = testLossModel(false, 1)
	for _, d := range []float64{-500, 0, 300} {
		if grad := lm.Gradient(d, d, 40, 1); math.Abs(grad) > 1e-12 {
			t.Error(d, grad)
		}
		if lm.Gradient(d, d+100, 40, 1) <= 0 || lm.Gradient(d, d-100, 40, 1) >= 0 {
			t.Error("gradient sign", d)
		}
	}
	var wdl = testLossModel(true, 1)
	if grad := wdl.Gradient(100, 100, 40, 0); math.Abs(grad) > 1e-3 {
		t.Error("wdl", grad)
	}
}

func TestWinProbability(t *testing.T) {
	var lm = testLossModel(false, 1)
	if p := lm.win(0, 0); p != 0.5 {
		t.Error(p)
	}
	if p := lm.win(400, 0); math.Abs(p-10.0/11) > 1e-9 {
		t.Error(p)
	}
	var wdl = testLossModel(true, 1)
	for _, ply := range []int{0, 64, 300} {
		if p := wdl.win(0, ply); math.Abs(p-0.5) > 1e-9 {
			t.Error(ply, p)
		}
		if wdl.win(300, ply) <= wdl.win(100, ply) {
			t.Error("wdl not increasing", ply)
		}
		if p := wdl.win(5000, ply); p != wdl.win(2000, ply) {
			t.Error("wdl clamp", ply, p)
		}
	}
}

func TestScale(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.SrcScoreMin = -1000
	cfg.SrcScoreMax = 1000
	cfg.DestScoreMin = -500
	cfg.DestScoreMax = 500
	var lm = newLossModel(&cfg)
	var tests = []struct {
		in, out float64
	}{
		{0, 0},
		{1000, 500},
		{-200, -100},
	}
	for i, test := range tests {
		if got := lm.scale(test.in); math.Abs(got-test.out) > 1e-9 {
			t.Error(i, test, got)
		}
	}
	var identity = testLossModel(false, 1)
	if got := identity.scale(123); got != 123 {
		t.Error(got)
	}
}

func TestLossStats(t *testing.T) {
	var lm = testLossModel(false, 1)
	var perfect, poor LossStats
	lm.Add(&perfect, 150, 150, 30, 1)
	lm.Add(&poor, 150, -400, 30, 1)
	if math.Abs(perfect.Loss()) > 1e-4 {
		t.Error(perfect.Loss())
	}
	if poor.Loss() <= perfect.Loss() {
		t.Error(poor.Loss(), perfect.Loss())
	}
	perfect.Merge(&poor)
	if perfect.Count != 2 || perfect.NormEval != 550 {
		t.Error(perfect)
	}
}

func TestDispatcher(t *testing.T) {
	const workers = 4
	const tasks = 200
	var d = NewTaskDispatcher()
	var counts [tasks]atomic.Int32
	var pending atomic.Int32
	pending.Store(tasks)
	for i := 0; i < tasks; i++ {
		i := i
		d.Push(func(worker int) {
			counts[i].Add(1)
			pending.Add(-1)
		})
	}
	var wg sync.WaitGroup
	for w := 1; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.WaitAndRun(w, func() bool {
				return pending.Load() > 0
			})
		}()
	}
	d.OnIdle(0)
	d.Wait()
	d.Wake()
	wg.Wait()
	for i := range counts {
		if n := counts[i].Load(); n != 1 {
			t.Error(i, n)
		}
	}
}

func writeScoredRecords(t *testing.T, path string, from, n int) {
	t.Helper()
	var recs = make([]sfen.Record, n)
	for i := range recs {
		recs[i].Score = int16(from + i)
	}
	if err := sfen.WriteAll(path, sfen.FormatBin, recs); err != nil {
		t.Fatal(err)
	}
}

func TestReader(t *testing.T) {
	var dir = t.TempDir()
	var a = filepath.Join(dir, "a.bin")
	var b = filepath.Join(dir, "b.bin")
	writeScoredRecords(t, a, 0, 45)
	writeScoredRecords(t, b, 45, 30)

	var cfg = DefaultConfig()
	cfg.Threads = 2
	cfg.Files = []string{a, b}
	cfg.Loop = 2
	cfg.ReadSize = 20
	cfg.ThreadBufferSize = 7
	var reader = NewSfenReader(&cfg, testLogger)

	var errc = make(chan error, 1)
	go func() {
		errc <- reader.Run(context.Background())
	}()
	var mu sync.Mutex
	var seen = make(map[int16]int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Threads; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				var rec, ok = reader.Read(w)
				if !ok {
					return
				}
				mu.Lock()
				seen[rec.Score]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if !reader.EndOfFiles() || reader.TotalRead() != 150 {
		t.Error(reader.EndOfFiles(), reader.TotalRead())
	}
	if len(seen) != 75 {
		t.Fatal(len(seen))
	}
	for score, n := range seen {
		if n != cfg.Loop {
			t.Error(score, n)
		}
	}
}

func TestReaderStop(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "a.bin")
	writeScoredRecords(t, path, 0, 100)
	var cfg = DefaultConfig()
	cfg.Files = []string{path}
	cfg.Loop = 1000
	cfg.ReadSize = 10
	cfg.ThreadBufferSize = 5
	var reader = NewSfenReader(&cfg, testLogger)
	var ctx, cancel = context.WithCancel(context.Background())
	var errc = make(chan error, 1)
	go func() {
		errc <- reader.Run(ctx)
	}()
	if _, ok := reader.Read(0); !ok {
		t.Fatal("no records")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	for {
		if _, ok := reader.Read(0); !ok {
			break
		}
	}
}

func TestValidationSet(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "v.bin")
	var recs = []sfen.Record{
		{Score: 100, Result: 1},
		{Score: 5000, Result: 1},
		{Score: -20, Result: 0},
		{Score: -300, Result: -1},
	}
	if err := sfen.WriteAll(path, sfen.FormatBin, recs); err != nil {
		t.Fatal(err)
	}
	var cfg = DefaultConfig()
	var reader = NewSfenReader(&cfg, testLogger)
	if err := reader.ReadValidationSet(path, 3000, false); err != nil {
		t.Fatal(err)
	}
	var got = reader.MSE()
	if len(got) != 2 || got[0].Score != 100 || got[1].Score != -300 {
		t.Error(got)
	}
}

func generateTrainingData(t *testing.T, dir string, records uint64) string {
	t.Helper()
	var cfg = gensfen.DefaultConfig()
	cfg.Threads = 2
	cfg.Hash = 1
	cfg.DepthMin = 1
	cfg.DepthMax = 1
	cfg.LoopMax = records
	cfg.WriteMinPly = 1
	cfg.WriteMaxPly = 60
	cfg.HashBits = 16
	cfg.Seed = 3
	cfg.Format = sfen.FormatBinpack
	cfg.OutputFileName = filepath.Join(dir, "train")
	var evalBuilder = func(worker int) (engine.Evaluator, error) {
		return eval.NewEvaluationService(), nil
	}
	if err := gensfen.Run(context.Background(), cfg, evalBuilder, testLogger); err != nil {
		t.Fatal(err)
	}
	return cfg.OutputFileName + cfg.Format.Extension()
}

func TestLearn(t *testing.T) {
	var dir = t.TempDir()
	var data = generateTrainingData(t, dir, 400)

	var cfg = DefaultConfig()
	cfg.Threads = 3
	cfg.Seed = 5
	cfg.Files = []string{data}
	cfg.Loop = 2
	cfg.SaveDir = filepath.Join(dir, "evalsave")
	cfg.Hidden = 16
	cfg.MiniBatchSize = 50
	cfg.EvalSaveInterval = 100
	cfg.LossOutputInterval = 100
	cfg.MSESize = 40
	cfg.ReadSize = 100
	cfg.ThreadBufferSize = 10
	cfg.HashBits = 12
	cfg.NewbobNumTrials = 100
	cfg.SkipDuplicatedPositions = false

	if err := Run(context.Background(), cfg, testLogger); err != nil {
		t.Fatal(err)
	}
	for _, tag := range []string{"original", "0", "final"} {
		if _, err := os.Stat(filepath.Join(cfg.SaveDir, tag, "nn.bin")); err != nil {
			t.Error(tag, err)
		}
	}
}

func TestLearnInterrupted(t *testing.T) {
	var dir = t.TempDir()
	var data = generateTrainingData(t, dir, 100)

	var cfg = DefaultConfig()
	cfg.Threads = 2
	cfg.Files = []string{data}
	cfg.SaveDir = filepath.Join(dir, "evalsave")
	cfg.Hidden = 8
	cfg.MiniBatchSize = 20
	cfg.MSESize = 10
	cfg.ReadSize = 40
	cfg.ThreadBufferSize = 10
	cfg.NewbobDecay = 1
	cfg.SkipDuplicatedPositions = false

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()
	learner, err := NewLearner(cfg, mustNetwork(t, &cfg), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if err := learner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(cfg.SaveDir, "final", "nn.bin")); err != nil {
		t.Error(err)
	}
}

func TestLearnConverges(t *testing.T) {
	var dir = t.TempDir()
	var data = generateTrainingData(t, dir, 200)

	var cfg = DefaultConfig()
	cfg.Threads = 2
	cfg.Files = []string{data}
	cfg.Loop = 100
	cfg.SaveDir = filepath.Join(dir, "evalsave")
	cfg.Hidden = 8
	cfg.MiniBatchSize = 20
	cfg.EvalSaveInterval = 20
	cfg.MSESize = 20
	cfg.ReadSize = 40
	cfg.ThreadBufferSize = 10
	cfg.HashBits = 12
	cfg.NewbobNumTrials = 1
	cfg.LearningRate = 1
	cfg.SkipDuplicatedPositions = false

	var network = mustNetwork(t, &cfg)
	learner, err := NewLearner(cfg, network, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if err := learner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// one rejected checkpoint ends the run long before the input does
	if learner.TotalDone() >= uint64(100*200-cfg.MSESize) {
		t.Error("not converged", learner.TotalDone())
	}
	if learner.BestDir() == "" {
		t.Error("no best checkpoint")
	}
}

func TestTryRLockWhileUpdateDue(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.Threads = 2
	cfg.Files = []string{"unused.bin"}
	cfg.MiniBatchSize = 10
	cfg.SkipDuplicatedPositions = false
	learner, err := NewLearner(cfg, mustNetwork(t, &cfg), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	learner.nextUpdate.Store(10)
	learner.totalDone.Store(9)
	if !learner.tryRLock() {
		t.Fatal("lock refused before the update is due")
	}
	learner.mu.RUnlock()

	// the batch completes while the write lock is free
	learner.totalDone.Store(10)
	if learner.tryRLock() {
		t.Error("lock taken while the update is due")
	}
	if !learner.mu.TryLock() {
		t.Fatal("read lock leaked")
	}
	learner.mu.Unlock()

	learner.nextUpdate.Store(20)
	if !learner.tryRLock() {
		t.Error("lock refused after the update")
	}
	learner.mu.RUnlock()
}

func mustNetwork(t *testing.T, cfg *Config) *nnue.Network {
	t.Helper()
	return nnue.NewNetwork(cfg.FeatureSet, cfg.Hidden, rand.New(rand.NewSource(cfg.Seed)))
}
