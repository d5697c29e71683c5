package common

import (
	"fmt"

	"github.com/dylhunn/dragontoothmg"
)

const (
	Empty = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

const (
	SideWhite = true
	SideBlack = false
)

const MaxMoves = 256

const InitialPositionFen = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Move uses the dragontoothmg 16-bit encoding, so it is stored in records as is.
// The zero value (a1a1) is never a legal move.
type Move uint16

const MoveEmpty Move = 0

func (m Move) From() int {
	var dm = dragontoothmg.Move(m)
	return int(dm.From())
}

func (m Move) To() int {
	var dm = dragontoothmg.Move(m)
	return int(dm.To())
}

func (m Move) Promotion() int {
	var dm = dragontoothmg.Move(m)
	return int(dm.Promote())
}

func (m Move) String() string {
	if m == MoveEmpty {
		return "0000"
	}
	var dm = dragontoothmg.Move(m)
	return dm.String()
}

func ParseMove(s string) (Move, error) {
	var dm, err = dragontoothmg.ParseMove(s)
	if err != nil {
		return MoveEmpty, fmt.Errorf("parse move %v: %w", s, err)
	}
	return Move(dm), nil
}

type OrderedMove struct {
	Move Move
	Key  int32
}
