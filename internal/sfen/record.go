package sfen

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ChizhovVadim/CounterLearn/pkg/common"
)

const RecordSize = 40

// Record is one labeled position. Score and Result are from the side to move point of view.
type Record struct {
	Board  common.PackedBoard
	Score  int16
	Move   common.Move
	Ply    uint16
	Result int8
}

func NewRecord(p *common.Position, score int, move common.Move, ply int) (Record, error) {
	var pb, err = p.Pack()
	if err != nil {
		return Record{}, err
	}
	return Record{
		Board: pb,
		Score: int16(common.Clamp(score, math.MinInt16, math.MaxInt16)),
		Move:  move,
		Ply:   uint16(common.Clamp(ply, 0, math.MaxUint16)),
	}, nil
}

func (r *Record) Position() (common.Position, error) {
	return r.Board.Unpack()
}

// Put encodes r into buf[:RecordSize].
func (r *Record) Put(buf []byte) {
	_ = buf[RecordSize-1]
	copy(buf, r.Board[:])
	binary.LittleEndian.PutUint16(buf[32:], uint16(r.Score))
	binary.LittleEndian.PutUint16(buf[34:], uint16(r.Move))
	binary.LittleEndian.PutUint16(buf[36:], r.Ply)
	buf[38] = byte(r.Result)
	buf[39] = 0
}

// Get decodes buf[:RecordSize] into r.
func (r *Record) Get(buf []byte) {
	_ = buf[RecordSize-1]
	copy(r.Board[:], buf)
	r.Score = int16(binary.LittleEndian.Uint16(buf[32:]))
	r.Move = common.Move(binary.LittleEndian.Uint16(buf[34:]))
	r.Ply = binary.LittleEndian.Uint16(buf[36:])
	r.Result = int8(buf[38])
}

func (r *Record) MarshalBinary() ([]byte, error) {
	var buf = make([]byte, RecordSize)
	r.Put(buf)
	return buf, nil
}

func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("sfen: record size %v", len(data))
	}
	r.Get(data)
	return nil
}
