// Package shuffle reorders record files randomly, in memory or out of core.
package shuffle

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const statusPeriod = 10_000_000

// Chunked shuffles windows of bufferSize records into temporary files under tmpDir
// and merges them by a weighted random choice.
// The merge keeps one file open per window, so the number of records divided by bufferSize
// must stay below the process file descriptor limit.
func Chunked(
	ctx context.Context,
	inputs []string,
	output string,
	format sfen.Format,
	tmpDir string,
	bufferSize int,
	rnd *rand.Rand,
	logger zerolog.Logger,
) error {
	if bufferSize <= 0 {
		return fmt.Errorf("bad buffer size %v", bufferSize)
	}
	if tmpDir == "" {
		var dir, err = os.MkdirTemp("", "shuffle")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		tmpDir = dir
	} else if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return err
	}

	var tmpFiles []string
	var counts []uint64
	defer func() {
		for _, path := range tmpFiles {
			os.Remove(path)
		}
	}()

	// one window is written while the next one is filled
	var g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(1)
	var writeWindow = func(window []sfen.Record) {
		var path = filepath.Join(tmpDir, strconv.Itoa(len(tmpFiles))+".bin")
		tmpFiles = append(tmpFiles, path)
		counts = append(counts, uint64(len(window)))
		var seed = rnd.Int63()
		g.Go(func() error {
			var r = rand.New(rand.NewSource(seed))
			shuffleRecords(r, window)
			return sfen.WriteAll(path, sfen.FormatBin, window)
		})
	}

	var window = make([]sfen.Record, 0, bufferSize)
	for _, path := range inputs {
		var input, err = sfen.Open(path)
		if err != nil {
			g.Wait()
			return err
		}
		logger.Info().Str("file", path).Msg("open file")
		var rec sfen.Record
		for input.Read(&rec) {
			window = append(window, rec)
			if len(window) == bufferSize {
				writeWindow(window)
				window = make([]sfen.Record, 0, bufferSize)
			}
		}
		err = input.Err()
		input.Close()
		if err != nil {
			g.Wait()
			return fmt.Errorf("read %v: %w", path, err)
		}
		if gctx.Err() != nil {
			if err := g.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		}
	}
	if len(window) != 0 {
		writeWindow(window)
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info().Int("files", len(tmpFiles)).Msg("windows written")

	var streams = make([]sfen.InputStream, 0, len(tmpFiles))
	defer func() {
		for _, s := range streams {
			s.Close()
		}
	}()
	for _, path := range tmpFiles {
		var s, err = sfen.Open(path)
		if err != nil {
			return err
		}
		streams = append(streams, s)
	}
	return merge(ctx, streams, counts, output, format, rnd, logger)
}

// Quick merges the input files by a weighted random choice without shuffling inside a file.
func Quick(
	ctx context.Context,
	inputs []string,
	output string,
	format sfen.Format,
	rnd *rand.Rand,
	logger zerolog.Logger,
) error {
	var streams = make([]sfen.InputStream, 0, len(inputs))
	defer func() {
		for _, s := range streams {
			s.Close()
		}
	}()
	var counts = make([]uint64, 0, len(inputs))
	for _, path := range inputs {
		var n, err = countRecords(path)
		if err != nil {
			return err
		}
		logger.Info().Str("file", path).Uint64("records", n).Msg("open file")
		s, err := sfen.Open(path)
		if err != nil {
			return err
		}
		streams = append(streams, s)
		counts = append(counts, n)
	}
	return merge(ctx, streams, counts, output, format, rnd, logger)
}

// InMemory loads every record, shuffles them once and writes them out.
func InMemory(
	ctx context.Context,
	inputs []string,
	output string,
	format sfen.Format,
	rnd *rand.Rand,
	logger zerolog.Logger,
) error {
	var all []sfen.Record
	for _, path := range inputs {
		var recs, err = sfen.ReadAll(path)
		if err != nil {
			return fmt.Errorf("read %v: %w", path, err)
		}
		logger.Info().Str("file", path).Int("records", len(recs)).Msg("read file")
		all = append(all, recs...)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	shuffleRecords(rnd, all)
	logger.Info().Str("file", output).Int("records", len(all)).Msg("write")
	return sfen.WriteAll(output, format, all)
}

func shuffleRecords(rnd *rand.Rand, recs []sfen.Record) {
	rnd.Shuffle(len(recs), func(i, j int) {
		recs[i], recs[j] = recs[j], recs[i]
	})
}

// merge picks the source of every output record with probability proportional
// to the records left in it.
func merge(
	ctx context.Context,
	streams []sfen.InputStream,
	counts []uint64,
	output string,
	format sfen.Format,
	rnd *rand.Rand,
	logger zerolog.Logger,
) error {
	var total uint64
	for _, n := range counts {
		total += n
	}
	if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
		return err
	}
	out, err := sfen.Create(output, format)
	if err != nil {
		return err
	}
	logger.Info().Str("file", output).Uint64("records", total).Msg("write")

	var written uint64
	var rec sfen.Record
	for left := total; left != 0; left-- {
		if written%statusPeriod == 0 && ctx.Err() != nil {
			out.Close()
			return ctx.Err()
		}
		var r = uint64(rnd.Int63n(int64(left)))
		var i = 0
		for counts[i] <= r {
			r -= counts[i]
			i++
		}
		counts[i]--
		if !streams[i].Read(&rec) {
			if err := streams[i].Err(); err != nil {
				out.Close()
				return err
			}
			continue
		}
		if err := out.Write(&rec); err != nil {
			out.Close()
			return err
		}
		written++
		if written%statusPeriod == 0 {
			logger.Info().Uint64("written", written).Uint64("total", total).Msg("shuffle")
		}
	}
	if err := out.Close(); err != nil {
		return err
	}
	logger.Info().Uint64("written", written).Msg("shuffle done")
	return nil
}

// countRecords returns the number of records of a file, from its size for flat files.
func countRecords(path string) (uint64, error) {
	var input, err = sfen.Open(path)
	if err != nil {
		return 0, err
	}
	defer input.Close()
	if sfen.IsFlat(input) {
		var n, err = sfen.CountRecords(path)
		return uint64(n), err
	}
	var n uint64
	var rec sfen.Record
	for input.Read(&rec) {
		n++
	}
	return n, input.Err()
}
