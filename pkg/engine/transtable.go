package engine

import (
	. "github.com/ChizhovVadim/CounterLearn/pkg/common"
)

const (
	boundLower = 1 << iota
	boundUpper
)

const boundExact = boundLower | boundUpper

func roundPowerOfTwo(size int) int {
	var x = 1
	for (x << 1) <= size {
		x <<= 1
	}
	return x
}

//16 bytes
type transEntry struct {
	key32 uint32
	move  Move
	date  uint16
	score int16
	depth int8
	bound uint8
	_     [4]byte
}

// transTable belongs to one engine and is not safe for concurrent use.
type transTable struct {
	megabytes int
	entries   []transEntry
	date      uint16
	mask      uint32
}

func newTransTable(megabytes int) *transTable {
	var size = roundPowerOfTwo(1024 * 1024 * megabytes / 16)
	return &transTable{
		megabytes: megabytes,
		entries:   make([]transEntry, size),
		mask:      uint32(size - 1),
	}
}

func (tt *transTable) Size() int {
	return tt.megabytes
}

func (tt *transTable) IncDate() {
	tt.date++
}

func (tt *transTable) Clear() {
	tt.date = 0
	for i := range tt.entries {
		tt.entries[i] = transEntry{}
	}
}

func (tt *transTable) Read(key uint64) (depth, score, bound int, move Move, ok bool) {
	var entry = &tt.entries[uint32(key)&tt.mask]
	if entry.key32 != uint32(key>>32) || entry.bound == 0 {
		return
	}
	entry.date = tt.date
	return int(entry.depth), int(entry.score), int(entry.bound), entry.move, true
}

func (tt *transTable) Update(key uint64, depth, score, bound int, move Move) {
	var entry = &tt.entries[uint32(key)&tt.mask]
	var replace bool
	if entry.key32 == uint32(key>>32) {
		replace = depth >= int(entry.depth)-3 || bound == boundExact
	} else {
		replace = entry.date != tt.date ||
			depth >= int(entry.depth)
	}
	if !replace {
		return
	}
	if move == MoveEmpty && entry.key32 == uint32(key>>32) {
		move = entry.move
	}
	entry.key32 = uint32(key >> 32)
	entry.move = move
	entry.date = tt.date
	entry.score = int16(score)
	entry.depth = int8(depth)
	entry.bound = uint8(bound)
}
