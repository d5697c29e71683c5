package gensfen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ChizhovVadim/CounterLearn/internal/pool"
	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
	"github.com/rs/zerolog"
)

var errLostBuffers = errors.New("gensfen: records left in buffers after the writer stopped")

type WriterConfig struct {
	Path         string
	Format       sfen.Format
	SaveEvery    uint64
	Workers      int
	BufferSize   int
	StatusPeriod int
}

// SfenWriter collects records from the self-play workers and writes them from one goroutine.
type SfenWriter struct {
	cfg      WriterConfig
	logger   zerolog.Logger
	pool     *pool.Pool[sfen.Record]
	out      sfen.OutputStream
	total    uint64
	perFile  uint64
	fileName string
	failed   bool
	done     chan struct{}
}

func NewSfenWriter(cfg WriterConfig, logger zerolog.Logger) (*SfenWriter, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 5000
	}
	if cfg.StatusPeriod <= 0 {
		cfg.StatusPeriod = 40
	}
	if cfg.SaveEvery == 0 {
		cfg.SaveEvery = math.MaxUint64
	}
	var out, err = sfen.Create(cfg.Path, cfg.Format)
	if err != nil {
		return nil, err
	}
	return &SfenWriter{
		cfg:      cfg,
		logger:   logger,
		pool:     pool.New[sfen.Record](cfg.Workers, cfg.BufferSize),
		out:      out,
		fileName: cfg.Path,
		done:     make(chan struct{}),
	}, nil
}

// Write is called by worker only.
func (w *SfenWriter) Write(worker int, rec *sfen.Record) {
	w.pool.Push(worker, *rec)
}

// Finalize hands the partial buffer of worker to the writer.
func (w *SfenWriter) Finalize(worker int) {
	w.pool.Flush(worker)
}

// Run writes batches until the writer is closed and every batch is written.
// Canceling ctx drops the queued batches.
func (w *SfenWriter) Run(ctx context.Context) error {
	defer close(w.done)
	var stop = context.AfterFunc(ctx, w.pool.Discard)
	defer stop()
	var start = time.Now()
	var batches = 0
	for {
		var taken, ok = w.pool.TakeAll()
		if !ok {
			break
		}
		for _, batch := range taken {
			if err := w.writeBatch(batch); err != nil {
				w.failed = true
				w.pool.Discard()
				return err
			}
			batches++
			if batches%w.cfg.StatusPeriod == 0 {
				w.status(start)
			}
		}
	}
	w.status(start)
	if err := ctx.Err(); err != nil {
		w.failed = true
		return err
	}
	return nil
}

func (w *SfenWriter) writeBatch(batch []sfen.Record) error {
	if err := w.out.WriteMany(batch); err != nil {
		return fmt.Errorf("write %v: %w", w.fileName, err)
	}
	w.total += uint64(len(batch))
	w.perFile += uint64(len(batch))
	if w.perFile < w.cfg.SaveEvery {
		return nil
	}
	var err = w.out.Close()
	w.out = nil
	if err != nil {
		return fmt.Errorf("close %v: %w", w.fileName, err)
	}
	w.perFile = 0
	w.fileName = fmt.Sprintf("%v_%v", w.cfg.Path, w.total/w.cfg.SaveEvery)
	out, err := sfen.Create(w.fileName, w.cfg.Format)
	if err != nil {
		return err
	}
	w.out = out
	w.logger.Info().Str("file", w.fileName).Msg("output file rotated")
	return nil
}

func (w *SfenWriter) status(start time.Time) {
	var elapsed = time.Since(start).Seconds()
	var speed = 0.0
	if elapsed > 0 {
		speed = float64(w.total) / elapsed
	}
	w.logger.Info().
		Uint64("records", w.total).
		Int("speed", int(speed)).
		Str("file", w.fileName).
		Msg("gensfen status")
}

// Total is the number of records written. Call it after Close.
func (w *SfenWriter) Total() uint64 {
	return w.total
}

// Close stops Run after it drains the pool. Run must have been started
// and every worker must have called Finalize.
func (w *SfenWriter) Close() error {
	w.pool.Close()
	<-w.done
	var err error
	if n := w.pool.Pending(); n != 0 && !w.failed {
		err = fmt.Errorf("%w: %v records", errLostBuffers, n)
		w.logger.Error().Err(err).Send()
	}
	if w.out != nil {
		if cerr := w.out.Close(); err == nil {
			err = cerr
		}
		w.out = nil
	}
	return err
}
