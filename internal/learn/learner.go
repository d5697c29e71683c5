package learn

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChizhovVadim/CounterLearn/internal/nnue"
	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
	"github.com/ChizhovVadim/CounterLearn/pkg/common"
	"github.com/ChizhovVadim/CounterLearn/pkg/engine"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Learner trains a network on records streamed by a SfenReader.
// Every worker adds gradients under a read lock, worker 0 applies them under the write lock
// once MiniBatchSize examples are done.
type Learner struct {
	cfg        Config
	logger     zerolog.Logger
	reader     *SfenReader
	network    *nnue.Network
	loss       lossModel
	newbob     *Newbob
	dispatcher *TaskDispatcher
	dedup      *sfen.HashTable
	workers    []*worker

	mu         sync.RWMutex
	totalDone  atomic.Uint64
	nextUpdate atomic.Uint64
	stop       atomic.Bool

	// owned by worker 0
	learningRate float64
	epoch        uint64
	saveCount    uint64
	lossCount    uint64
	lastDone     uint64
	checkpoint   int
	start        time.Time
}

type worker struct {
	id        int
	rnd       *rand.Rand
	engine    *engine.Engine
	evaluator *nnue.ThreadEvaluator
	train     LossStats
	skipped   int
}

func NewLearner(cfg Config, network *nnue.Network, logger zerolog.Logger) (*Learner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if network.FeatureSet != cfg.FeatureSet {
		return nil, fmt.Errorf("network feature set %v, want %v", network.FeatureSet, cfg.FeatureSet)
	}
	var l = &Learner{
		cfg:          cfg,
		logger:       logger,
		reader:       NewSfenReader(&cfg, logger),
		network:      network,
		loss:         newLossModel(&cfg),
		newbob:       NewNewbob(cfg.NewbobDecay, cfg.NewbobNumTrials, cfg.AutoLRDrop, logger),
		dispatcher:   NewTaskDispatcher(),
		learningRate: cfg.LearningRate,
	}
	if cfg.SkipDuplicatedPositions {
		l.dedup = sfen.NewHashTable(cfg.HashBits)
	}
	for i := 0; i < cfg.Threads; i++ {
		var evaluator = network.ThreadEvaluator(i)
		l.workers = append(l.workers, &worker{
			id:        i,
			rnd:       rand.New(rand.NewSource(cfg.Seed + int64(i) + 1)),
			engine:    engine.NewEngine(evaluator, 0),
			evaluator: evaluator,
		})
	}
	return l, nil
}

// Run trains until the input is exhausted or the annealing converges, then saves the final network.
func (l *Learner) Run(ctx context.Context) error {
	var cfg = &l.cfg
	l.logger.Info().Interface("config", cfg).Msg("learn started")
	l.start = time.Now()

	var g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.reader.Run(gctx)
	})
	g.Go(func() error {
		defer l.reader.Stop()
		if cfg.ValidationSetFile == "" {
			l.reader.ReadForMSE(cfg.MSESize)
		} else if err := l.reader.ReadValidationSet(cfg.ValidationSetFile, cfg.EvalLimit, cfg.UseDrawInValidation); err != nil {
			return err
		}
		if l.newbob.Enabled() {
			var path, err = l.network.Save(cfg.SaveDir, "original")
			if err != nil {
				return err
			}
			var stats = l.calcLoss(0, 0)
			l.newbob.SetBest(stats.Loss(), path)
			l.logger.Info().Float64("loss", stats.Loss()).Msg("initial loss")
		}
		return l.runWorkers(gctx)
	})
	// an interrupted run still writes the final network
	var err = g.Wait()
	var interrupted = err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err())
	if err != nil && !interrupted {
		return err
	}

	if _, err := l.save(true); err != nil {
		return err
	}
	if interrupted {
		l.logger.Warn().Uint64("examples", l.totalDone.Load()).Msg("learn interrupted")
		return err
	}
	l.logger.Info().
		Uint64("examples", l.totalDone.Load()).
		Uint64("epochs", l.epoch).
		Float64("learning_rate", l.learningRate).
		Str("best", l.newbob.BestDir()).
		Str("elapsed", time.Since(l.start).Round(time.Second).String()).
		Msg("learn finished")
	return nil
}

func (l *Learner) runWorkers(ctx context.Context) error {
	var g, gctx = errgroup.WithContext(ctx)
	for _, w := range l.workers {
		w := w
		g.Go(func() error {
			defer l.dispatcher.Wake()
			return l.work(gctx, w)
		})
	}
	return g.Wait()
}

func (l *Learner) updateDue() bool {
	return l.nextUpdate.Load() <= l.totalDone.Load()
}

func (l *Learner) work(ctx context.Context, w *worker) error {
	for {
		if l.stop.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			l.halt()
			return err
		}
		if w.id == 0 {
			if l.updateDue() {
				if err := l.update(w); err != nil {
					l.halt()
					return err
				}
				continue
			}
			l.mu.RLock()
		} else if !l.tryRLock() {
			l.dispatcher.WaitAndRun(w.id, func() bool {
				return l.updateDue() && !l.stop.Load()
			})
			continue
		}
		var ok = l.trainExample(w)
		l.mu.RUnlock()
		if !ok {
			l.halt()
			return nil
		}
	}
}

// tryRLock takes the read lock for a worker other than 0. It fails while an update is due,
// also when it became due between the check and the lock: worker 0 keeps reading
// the worker stats after it releases the write lock.
func (l *Learner) tryRLock() bool {
	if l.updateDue() || !l.mu.TryRLock() {
		return false
	}
	if l.updateDue() {
		l.mu.RUnlock()
		return false
	}
	return true
}

func (l *Learner) halt() {
	l.stop.Store(true)
	l.dispatcher.Wake()
}

// update runs on worker 0 while the other workers wait in the dispatcher.
func (l *Learner) update(w *worker) error {
	var cfg = &l.cfg
	defer l.dispatcher.Wake()
	if l.nextUpdate.Load() == 0 {
		l.nextUpdate.Add(cfg.MiniBatchSize)
		return nil
	}

	l.mu.Lock()
	l.network.ApplyUpdate(l.learningRate)
	l.mu.Unlock()
	l.epoch++

	l.saveCount++
	if l.saveCount*cfg.MiniBatchSize >= cfg.EvalSaveInterval {
		l.saveCount = 0
		var converged, err = l.save(false)
		if err != nil {
			return err
		}
		if converged {
			l.halt()
			return nil
		}
	}

	l.lossCount++
	if l.lossCount*cfg.MiniBatchSize >= cfg.LossOutputInterval {
		l.lossCount = 0
		var done = l.totalDone.Load()
		l.calcLoss(w.id, done-l.lastDone)
		l.lastDone = done
	}
	l.nextUpdate.Add(cfg.MiniBatchSize)
	return nil
}

// trainExample draws records until one passes the filters and adds its gradient.
// It returns false when the reader is exhausted.
func (l *Learner) trainExample(w *worker) bool {
	var cfg = &l.cfg
	for {
		var rec, ok = l.reader.Read(w.id)
		if !ok {
			return false
		}
		if common.Abs(int(rec.Score)) > cfg.EvalLimit {
			continue
		}
		if !cfg.UseDrawInTraining && rec.Result == 0 {
			continue
		}
		if int(rec.Ply) < w.rnd.Intn(cfg.ReductionGamePly) {
			continue
		}
		var pos, err = rec.Position()
		if err != nil {
			w.skipped++
			l.logger.Warn().Err(err).Msg("training record skipped")
			continue
		}
		if l.dedup != nil {
			var key = pos.Key()
			if l.reader.IsForMSE(key) || l.dedup.Seen(key) {
				continue
			}
		}

		var child common.Position
		if !pos.MakeLegalMove(rec.Move, &child) {
			w.skipped++
			continue
		}
		if !child.HasLegalMove() {
			continue
		}
		var _, pv = w.engine.QSearch(&child)
		var leaf, legal = playLine(&child, pv)
		if !legal {
			w.skipped++
			continue
		}

		var rootWhite = pos.WhiteMove()
		var s = w.evaluator.Evaluate(&leaf)
		if leaf.WhiteMove() != rootWhite {
			s = -s
		}
		var d = float64(rec.Score)
		var grad = l.loss.Gradient(d, float64(s), int(rec.Ply), int(rec.Result))
		l.loss.Add(&w.train, d, float64(s), int(rec.Ply), int(rec.Result))
		w.evaluator.AddExample(&leaf, rootWhite, grad, 1)
		l.totalDone.Add(1)
		return true
	}
}

// playLine returns the position at the end of moves.
func playLine(p *common.Position, moves []common.Move) (common.Position, bool) {
	var cur = *p
	var next common.Position
	for _, move := range moves {
		if !cur.MakeLegalMove(move, &next) {
			return cur, false
		}
		cur = next
	}
	return cur, true
}

// shallowValue is the evaluation at the end of the quiescence line, from the side to move of p.
func shallowValue(w *worker, p *common.Position) int {
	var _, pv = w.engine.QSearch(p)
	var leaf, _ = playLine(p, pv)
	var s = w.evaluator.Evaluate(&leaf)
	if leaf.WhiteMove() != p.WhiteMove() {
		s = -s
	}
	return s
}

// calcLoss measures the held-out set on every idle worker and logs the result.
// done is the number of examples trained since the previous call.
func (l *Learner) calcLoss(workerID int, done uint64) LossStats {
	var elapsed = time.Since(l.start)
	var totalDone = l.totalDone.Load()
	var records = l.reader.MSE()
	var mu sync.Mutex
	var test LossStats
	for i := range records {
		var rec = &records[i]
		l.dispatcher.Push(func(id int) {
			var w = l.workers[id]
			var pos, err = rec.Position()
			if err != nil {
				l.logger.Warn().Err(err).Msg("loss set record skipped")
				return
			}
			var stats LossStats
			var s = shallowValue(w, &pos)
			l.loss.Add(&stats, float64(rec.Score), float64(s), int(rec.Ply), int(rec.Result))
			var si = w.engine.Search(context.Background(), engine.SearchParams{
				Game:  common.NewGame(pos),
				Depth: 1,
			})
			if len(si.MainLine) != 0 && si.MainLine[0] == rec.Move {
				stats.MoveAccord++
			}
			mu.Lock()
			test.Merge(&stats)
			mu.Unlock()
		})
	}
	l.dispatcher.OnIdle(workerID)
	l.dispatcher.Wait()

	l.newbob.AddLoss(test.CrossEntropy-test.Entropy, test.Count)

	var speed = float64(totalDone) / max(elapsed.Seconds(), 1)
	l.logger.Info().
		Uint64("examples", totalDone).
		Float64("per_second", speed).
		Uint64("epoch", l.epoch).
		Float64("learning_rate", l.learningRate).
		Msg("progress")
	if test.Count != 0 {
		test.Log(l.logger.Info().Str("set", "test")).Msg("loss")
	}
	if done != 0 {
		var train LossStats
		var skipped = 0
		for _, w := range l.workers {
			train.Merge(&w.train)
			w.train = LossStats{}
			skipped += w.skipped
		}
		train.Log(l.logger.Info().Str("set", "train").Int("skipped", skipped)).Msg("loss")
	}
	return test
}

// save writes a checkpoint. It returns true when training should stop.
func (l *Learner) save(final bool) (bool, error) {
	var cfg = &l.cfg
	if cfg.SaveOnlyOnce {
		var path, err = l.network.Save(cfg.SaveDir, "")
		if err != nil {
			return false, err
		}
		l.logger.Info().Str("path", path).Msg("network saved")
		return final, nil
	}
	if final {
		var path, err = l.network.Save(cfg.SaveDir, "final")
		if err != nil {
			return false, err
		}
		l.logger.Info().Str("path", path).Msg("network saved")
		return true, nil
	}
	var tag = strconv.Itoa(l.checkpoint)
	l.checkpoint++
	var path, err = l.network.Save(cfg.SaveDir, tag)
	if err != nil {
		return false, err
	}
	l.logger.Info().Str("path", path).Msg("network saved")
	return l.newbob.Step(path, l.totalDone.Load(), &l.learningRate), nil
}

func (l *Learner) TotalDone() uint64 {
	return l.totalDone.Load()
}

func (l *Learner) LearningRate() float64 {
	return l.learningRate
}

func (l *Learner) BestDir() string {
	return l.newbob.BestDir()
}

// Run trains cfg.NetFile, or a new randomly initialized network, on cfg.Files.
func Run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	var network *nnue.Network
	if cfg.NetFile != "" {
		var err error
		network, err = nnue.Load(cfg.NetFile)
		if err != nil {
			return fmt.Errorf("load network: %w", err)
		}
		cfg.FeatureSet = network.FeatureSet
		cfg.Hidden = network.Hidden
		logger.Info().Str("path", cfg.NetFile).Msg("network loaded")
	} else {
		network = nnue.NewNetwork(cfg.FeatureSet, cfg.Hidden, rand.New(rand.NewSource(cfg.Seed)))
	}
	learner, err := NewLearner(cfg, network, logger)
	if err != nil {
		return err
	}
	return learner.Run(ctx)
}
