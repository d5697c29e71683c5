package gensfen

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
	"github.com/ChizhovVadim/CounterLearn/pkg/common"
	"github.com/ChizhovVadim/CounterLearn/pkg/engine"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Run plays self-play games on cfg.Threads goroutines until cfg.LoopMax records are written.
// evalBuilder returns the evaluator of one worker.
func Run(
	ctx context.Context,
	cfg Config,
	evalBuilder func(worker int) (engine.Evaluator, error),
	logger zerolog.Logger,
) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.EvalLimit = common.Min(cfg.EvalLimit, engine.MateIn(2))
	if cfg.RandomMultiPVDepth <= 0 {
		cfg.RandomMultiPVDepth = cfg.DepthMin
	}
	var rnd = rand.New(rand.NewSource(cfg.Seed))
	var path = cfg.OutputFileName
	if cfg.RandomFileName {
		path = fmt.Sprintf("%v_%x%x", path, rnd.Uint64(), rnd.Uint64())
	}
	path += cfg.Format.Extension()

	logger.Info().Interface("config", cfg).Str("output", path).Msg("gensfen started")
	var start = time.Now()

	startPos, err := common.NewPositionFromFEN(common.InitialPositionFen)
	if err != nil {
		return err
	}
	var evaluators = make([]engine.Evaluator, cfg.Threads)
	for i := range evaluators {
		evaluators[i], err = evalBuilder(i)
		if err != nil {
			return fmt.Errorf("evaluator of worker %v: %w", i, err)
		}
	}
	writer, err := NewSfenWriter(WriterConfig{
		Path:      path,
		Format:    cfg.Format,
		SaveEvery: cfg.SaveEvery,
		Workers:   cfg.Threads,
	}, logger)
	if err != nil {
		return err
	}
	var drivers = make([]*driver, cfg.Threads)
	var hash = sfen.NewHashTable(cfg.HashBits)
	var q = &quota{max: cfg.LoopMax}
	for i, evaluator := range evaluators {
		drivers[i] = &driver{
			id:        i,
			cfg:       &cfg,
			engine:    engine.NewEngine(evaluator, cfg.Hash),
			rnd:       rand.New(rand.NewSource(cfg.Seed + int64(i) + 1)),
			writer:    writer,
			hash:      hash,
			quota:     q,
			logger:    logger.With().Int("worker", i).Logger(),
			start:     startPos,
			moves:     make([]common.Move, 0, common.MaxMoves),
			kingMoves: make([]common.Move, 0, 8),
		}
	}

	var g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		return writer.Run(gctx)
	})
	var wg = &sync.WaitGroup{}
	for _, d := range drivers {
		d := d
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return d.Run(gctx)
		})
	}
	g.Go(func() error {
		wg.Wait()
		return writer.Close()
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().
		Uint64("records", writer.Total()).
		Str("elapsed", time.Since(start).Round(time.Second).String()).
		Msg("gensfen finished")
	return nil
}
