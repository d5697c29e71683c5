package sfen

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChizhovVadim/CounterLearn/pkg/common"
)

func randomRecords(rnd *rand.Rand, n int) []Record {
	var result = make([]Record, n)
	for i := range result {
		var rec = &result[i]
		if i > 0 && rnd.Intn(4) != 0 {
			// next ply of the same game
			var prev = result[i-1]
			rec.Board = prev.Board
			rec.Board[rnd.Intn(len(rec.Board))] ^= byte(1 + rnd.Intn(255))
			rec.Ply = prev.Ply + 1
			rec.Result = -prev.Result
		} else {
			rnd.Read(rec.Board[:])
			rec.Ply = uint16(rnd.Intn(400))
			rec.Result = int8(rnd.Intn(3) - 1)
		}
		rec.Score = int16(rnd.Intn(65536) - 32768)
		rec.Move = common.Move(rnd.Intn(65536))
	}
	return result
}

func equalRecords(t *testing.T, want, got []Record) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatal("length", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatal("record", i, want[i], got[i])
		}
	}
}

func TestRoundTrip(t *testing.T) {
	var rnd = rand.New(rand.NewSource(1))
	for _, format := range []Format{FormatBin, FormatBinpack} {
		for _, n := range []int{0, 1, 100, binpackBlockRecords + 17} {
			var recs = randomRecords(rnd, n)
			var path = filepath.Join(t.TempDir(), "data"+format.Extension())
			if err := WriteAll(path, format, recs); err != nil {
				t.Fatal(err)
			}
			got, err := ReadAll(path)
			if err != nil {
				t.Fatal(format, n, err)
			}
			equalRecords(t, recs, got)
		}
	}
}

func TestRecordEncoding(t *testing.T) {
	var rec = Record{Score: -300, Move: 0x1234, Ply: 77, Result: -1}
	rec.Board[0] = 0xAB
	var buf [RecordSize]byte
	rec.Put(buf[:])
	if buf[32] != 0xD4 || buf[33] != 0xFE || buf[38] != 0xFF || buf[39] != 0 {
		t.Error(buf)
	}
	var got Record
	got.Get(buf[:])
	if got != rec {
		t.Error(got, rec)
	}
}

func TestTruncatedTail(t *testing.T) {
	var rnd = rand.New(rand.NewSource(2))
	var recs = randomRecords(rnd, 50)

	var binPath = filepath.Join(t.TempDir(), "data.bin")
	if err := WriteAll(binPath, FormatBin, recs); err != nil {
		t.Fatal(err)
	}
	appendBytes(t, binPath, make([]byte, RecordSize-3))
	got, err := ReadAll(binPath)
	if err != nil {
		t.Fatal(err)
	}
	equalRecords(t, recs, got)
	if n, _ := CountRecords(binPath); n != int64(len(recs)) {
		t.Error("count", n)
	}

	// two blocks, the second one cut short
	var packPath = filepath.Join(t.TempDir(), "data.pack")
	if err := WriteAll(packPath, FormatBinpack, recs[:30]); err != nil {
		t.Fatal(err)
	}
	out, err := Create(packPath, FormatBinpack)
	if err != nil {
		t.Fatal(err)
	}
	if err := out.WriteMany(recs[30:]); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
	got, err = ReadAll(packPath)
	if err != nil {
		t.Fatal(err)
	}
	equalRecords(t, recs, got)

	fi, err := os.Stat(packPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(packPath, fi.Size()-5); err != nil {
		t.Fatal(err)
	}
	// no .binpack extension: detected by magic
	got, err = ReadAll(packPath)
	if err != nil {
		t.Fatal(err)
	}
	equalRecords(t, recs[:30], got)
}

func appendBytes(t *testing.T, path string, data []byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
}

func TestParseFormat(t *testing.T) {
	var tests = []struct {
		s      string
		format Format
		ok     bool
	}{
		{"bin", FormatBin, true},
		{"binpack", FormatBinpack, true},
		{"BINPACK", FormatBinpack, true},
		{"", FormatBin, true},
		{"plain", FormatBin, false},
	}
	for i, test := range tests {
		var format, err = ParseFormat(test.s)
		if (err == nil) != test.ok || format != test.format {
			t.Error(i, test, format, err)
		}
	}
}

func TestHashTable(t *testing.T) {
	var h = NewHashTable(4)
	var key = uint64(0x123456789)
	if h.Seen(key) {
		t.Error("first occurrence reported as seen")
	}
	if !h.Seen(key) {
		t.Error("second occurrence not seen")
	}
	// same bucket, different key
	var other = key + 16
	if h.Seen(other) {
		t.Error("collision reported as duplicate")
	}
	if h.Seen(key) {
		t.Error("evicted key reported as seen")
	}
	h.Clear()
	if h.Seen(other) {
		t.Error("seen after clear")
	}
}

func TestPlain(t *testing.T) {
	var p, err = common.NewPositionFromFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	move, _ := common.ParseMove("e2a6")
	rec, err := NewRecord(&p, 123, move, 42)
	if err != nil {
		t.Fatal(err)
	}
	rec.Result = 1
	line, err := FormatPlain(&rec)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParsePlain(line)
	if err != nil {
		t.Fatal(line, err)
	}
	if got != rec {
		t.Error(line, got, rec)
	}

	var dir = t.TempDir()
	var binPath = filepath.Join(dir, "a.bin")
	if err := WriteAll(binPath, FormatBin, []Record{rec, rec}); err != nil {
		t.Fatal(err)
	}
	var txtPath = filepath.Join(dir, "a.txt")
	if n, skipped, err := ConvertToPlain(binPath, txtPath); err != nil || n != 2 || skipped != 0 {
		t.Fatal(n, skipped, err)
	}
	var packPath = filepath.Join(dir, "b.binpack")
	if n, skipped, err := ConvertFromPlain(txtPath, packPath, FormatBinpack); err != nil || n != 2 || skipped != 0 {
		t.Fatal(n, skipped, err)
	}
	back, err := ReadAll(packPath)
	if err != nil {
		t.Fatal(err)
	}
	equalRecords(t, []Record{rec, rec}, back)
}
