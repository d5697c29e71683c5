package engine

import (
	. "github.com/ChizhovVadim/CounterLearn/pkg/common"
)

const (
	stackSize     = 128
	maxHeight     = stackSize - 1
	valueDraw     = 0
	valueMate     = 30000
	valueInfinity = valueMate + 1
	valueWin      = valueMate - 2*maxHeight
	valueLoss     = -valueWin
)

// ValueMate is the score of a position where the side to move mates at once.
const ValueMate = valueMate

func winIn(height int) int {
	return valueMate - height
}

func lossIn(height int) int {
	return -valueMate + height
}

// IsMateScore reports a forced mate found by the search.
func IsMateScore(v int) bool {
	return v >= valueWin || v <= valueLoss
}

// MateIn returns the score of mate in ply half-moves.
func MateIn(ply int) int {
	return winIn(ply)
}

func valueToTT(v, height int) int {
	if v >= valueWin {
		return v + height
	}

	if v <= valueLoss {
		return v - height
	}

	return v
}

func valueFromTT(v, height int) int {
	if v >= valueWin {
		return v - height
	}

	if v <= valueLoss {
		return v + height
	}

	return v
}

func isLowMaterial(p *Position) bool {
	return p.HasInsufficientMaterial(SideWhite, 1) &&
		p.HasInsufficientMaterial(SideBlack, 1)
}

func isDraw(p *Position) bool {
	return p.Rule50() >= 100 || isLowMaterial(p)
}

func findMoveIndex(ml []Move, move Move) int {
	for i := range ml {
		if ml[i] == move {
			return i
		}
	}
	return -1
}

func moveToBegin(ml []Move, index int) {
	if index == 0 {
		return
	}
	var item = ml[index]
	copy(ml[1:index+1], ml[:index])
	ml[0] = item
}
