package learn

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/ChizhovVadim/CounterLearn/internal/pool"
	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
	"github.com/ChizhovVadim/CounterLearn/pkg/common"
	"github.com/rs/zerolog"
)

// SfenReader streams training records from files into per-worker buffers.
// A background goroutine reads windows of ReadSize records, shuffles them
// and splits them into batches of ThreadBufferSize.
type SfenReader struct {
	files      []string
	readSize   int
	bufferSize int
	noShuffle  bool
	rnd        *rand.Rand
	logger     zerolog.Logger

	pool       *pool.Pool[sfen.Record]
	endOfFiles atomic.Bool
	totalRead  atomic.Uint64

	mse     []sfen.Record
	mseKeys map[uint64]struct{}
}

func NewSfenReader(cfg *Config, logger zerolog.Logger) *SfenReader {
	var files []string
	for i := 0; i < cfg.Loop; i++ {
		files = append(files, cfg.Files...)
	}
	return &SfenReader{
		files:      files,
		readSize:   cfg.ReadSize,
		bufferSize: cfg.ThreadBufferSize,
		noShuffle:  cfg.NoShuffle,
		rnd:        rand.New(rand.NewSource(cfg.Seed)),
		logger:     logger,
		pool:       pool.New[sfen.Record](cfg.Threads, cfg.ThreadBufferSize),
		mseKeys:    make(map[uint64]struct{}),
	}
}

// Run fills the pool until every file is read or the reader is stopped.
func (r *SfenReader) Run(ctx context.Context) error {
	defer r.pool.Close()
	defer r.endOfFiles.Store(true)
	var stop = context.AfterFunc(ctx, r.Stop)
	defer stop()

	var input sfen.InputStream
	defer func() {
		if input != nil {
			input.Close()
		}
	}()
	var next = 0
	var openNext = func() (bool, error) {
		for {
			if input != nil {
				var err = input.Err()
				input.Close()
				input = nil
				if err != nil {
					return false, err
				}
			}
			if next >= len(r.files) {
				return false, nil
			}
			var path = r.files[next]
			next++
			var in, err = sfen.Open(path)
			if err != nil {
				return false, fmt.Errorf("open training file: %w", err)
			}
			r.logger.Info().Str("file", path).Msg("open training file")
			input = in
			if !input.Eof() {
				return true, nil
			}
		}
	}

	var ok, err = openNext()
	if err != nil {
		return err
	}
	var maxBatches = max(1, r.readSize/r.bufferSize)
	for ok {
		if !r.pool.WaitBelow(maxBatches) {
			return nil
		}
		var window = make([]sfen.Record, 0, r.readSize)
		var rec sfen.Record
		for len(window) < r.readSize {
			if input.Read(&rec) {
				window = append(window, rec)
				continue
			}
			if ok, err = openNext(); err != nil {
				return err
			}
			if !ok {
				break
			}
		}
		r.pushWindow(window)
	}
	r.logger.Info().Uint64("records", r.totalRead.Load()).Msg("end of files")
	return nil
}

func (r *SfenReader) pushWindow(window []sfen.Record) {
	if !r.noShuffle {
		r.rnd.Shuffle(len(window), func(i, j int) {
			window[i], window[j] = window[j], window[i]
		})
	}
	for len(window) > 0 {
		var n = min(r.bufferSize, len(window))
		r.pool.PushBatch(window[:n:n])
		r.totalRead.Add(uint64(n))
		window = window[n:]
	}
}

// Read returns the next record of the worker.
// It returns false when the input is exhausted or the reader is stopped.
func (r *SfenReader) Read(worker int) (sfen.Record, bool) {
	return r.pool.Draw(worker)
}

// ReadForMSE holds back n records for loss measurement. It must run before the workers start.
func (r *SfenReader) ReadForMSE(n int) {
	for i := 0; i < n; i++ {
		var rec, ok = r.Read(0)
		if !ok {
			r.logger.Warn().Int("records", i).Msg("not enough records for the loss set")
			break
		}
		var p, err = rec.Position()
		if err != nil {
			r.logger.Warn().Err(err).Msg("loss set record skipped")
			continue
		}
		r.mse = append(r.mse, rec)
		r.mseKeys[p.Key()] = struct{}{}
	}
}

// ReadValidationSet loads the loss set from a separate file.
func (r *SfenReader) ReadValidationSet(path string, evalLimit int, useDraws bool) error {
	var input, err = sfen.Open(path)
	if err != nil {
		return fmt.Errorf("open validation set: %w", err)
	}
	defer input.Close()
	var rec sfen.Record
	for input.Read(&rec) {
		if common.Abs(int(rec.Score)) > evalLimit {
			continue
		}
		if !useDraws && rec.Result == 0 {
			continue
		}
		if p, err := rec.Position(); err == nil {
			r.mseKeys[p.Key()] = struct{}{}
		}
		r.mse = append(r.mse, rec)
	}
	if err := input.Err(); err != nil {
		return fmt.Errorf("read validation set: %w", err)
	}
	r.logger.Info().Str("file", path).Int("records", len(r.mse)).Msg("validation set loaded")
	return nil
}

// MSE returns the held-out records.
func (r *SfenReader) MSE() []sfen.Record {
	return r.mse
}

func (r *SfenReader) IsForMSE(key uint64) bool {
	var _, found = r.mseKeys[key]
	return found
}

// Stop drops buffered records and wakes every waiter.
func (r *SfenReader) Stop() {
	r.pool.Discard()
}

func (r *SfenReader) EndOfFiles() bool {
	return r.endOfFiles.Load()
}

func (r *SfenReader) TotalRead() uint64 {
	return r.totalRead.Load()
}
