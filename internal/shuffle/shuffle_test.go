package shuffle

import (
	"context"
	"io"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
	"github.com/rs/zerolog"
)

func writeInputs(t *testing.T, dir string) ([]string, int) {
	t.Helper()
	var sizes = []int{37, 0, 120, 55}
	var paths []string
	var next = 0
	for i, n := range sizes {
		var recs = make([]sfen.Record, n)
		for j := range recs {
			recs[j].Score = int16(next)
			recs[j].Ply = uint16(i)
			next++
		}
		var format = sfen.FormatBin
		if i%2 == 1 {
			format = sfen.FormatBinpack
		}
		var path = filepath.Join(dir, "in"+string(rune('a'+i))+format.Extension())
		if err := sfen.WriteAll(path, format, recs); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths, next
}

func checkShuffled(t *testing.T, path string, total int) {
	t.Helper()
	var recs, err = sfen.ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != total {
		t.Fatal("count", len(recs), total)
	}
	var seen = make([]bool, total)
	var inOrder = 0
	for i := range recs {
		var score = int(recs[i].Score)
		if score < 0 || score >= total || seen[score] {
			t.Fatal("record", i, recs[i])
		}
		seen[score] = true
		if score == i {
			inOrder++
		}
	}
	if inOrder == total {
		t.Error("order unchanged")
	}
}

func TestShuffle(t *testing.T) {
	var logger = zerolog.New(io.Discard)
	var ctx = context.Background()
	var tests = []struct {
		name string
		run  func(inputs []string, output string, rnd *rand.Rand) error
	}{
		{"chunked", func(inputs []string, output string, rnd *rand.Rand) error {
			return Chunked(ctx, inputs, output, sfen.FormatBin, filepath.Join(filepath.Dir(output), "tmp"), 16, rnd, logger)
		}},
		{"chunked-systemp", func(inputs []string, output string, rnd *rand.Rand) error {
			return Chunked(ctx, inputs, output, sfen.FormatBinpack, "", 1000, rnd, logger)
		}},
		{"quick", func(inputs []string, output string, rnd *rand.Rand) error {
			return Quick(ctx, inputs, output, sfen.FormatBin, rnd, logger)
		}},
		{"memory", func(inputs []string, output string, rnd *rand.Rand) error {
			return InMemory(ctx, inputs, output, sfen.FormatBinpack, rnd, logger)
		}},
	}
	for i, test := range tests {
		var dir = t.TempDir()
		var inputs, total = writeInputs(t, dir)
		var output = filepath.Join(dir, "out.bin")
		if err := test.run(inputs, output, rand.New(rand.NewSource(int64(i)))); err != nil {
			t.Fatal(test.name, err)
		}
		checkShuffled(t, output, total)
	}
}

func TestQuickKeepsFileOrder(t *testing.T) {
	var dir = t.TempDir()
	var inputs, total = writeInputs(t, dir)
	var output = filepath.Join(dir, "out.bin")
	if err := Quick(context.Background(), inputs, output, sfen.FormatBin, rand.New(rand.NewSource(1)), zerolog.New(io.Discard)); err != nil {
		t.Fatal(err)
	}
	var recs, err = sfen.ReadAll(output)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != total {
		t.Fatal(len(recs))
	}
	var last = map[uint16]int16{}
	for i, rec := range recs {
		if prev, ok := last[rec.Ply]; ok && rec.Score <= prev {
			t.Error(i, rec.Ply, prev, rec.Score)
		}
		last[rec.Ply] = rec.Score
	}
}
