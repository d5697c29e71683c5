package engine

import . "github.com/ChizhovVadim/CounterLearn/pkg/common"

const sortTableKeyImportant = 100000

// moveIterator yields legal moves best first.
// With noisyOnly it yields captures and promotions (all moves when in check).
type moveIterator struct {
	position  *Position
	moves     []Move
	buffer    []OrderedMove
	history   *historyService
	transMove Move
	killer1   Move
	killer2   Move
	count     int
	index     int
}

func (mi *moveIterator) Init(noisyOnly bool) {
	var p = mi.position
	var ml = p.LegalMoves(mi.moves)
	var isCheck = noisyOnly && p.IsCheck()
	mi.count = 0
	for _, m := range ml {
		var noisy = p.IsCaptureOrPromotion(m)
		if noisyOnly && !noisy && !isCheck {
			continue
		}
		var score int
		if m == mi.transMove {
			score = sortTableKeyImportant + 2000
		} else if noisy {
			score = sortTableKeyImportant + 1000 + mvvlva(p, m)
		} else if m == mi.killer1 {
			score = sortTableKeyImportant + 1
		} else if m == mi.killer2 {
			score = sortTableKeyImportant
		} else if mi.history != nil {
			score = mi.history.Read(p.WhiteMove(), m)
		}
		mi.buffer[mi.count] = OrderedMove{Move: m, Key: int32(score)}
		mi.count++
	}
	sortMoves(mi.buffer[:mi.count])
}

func (mi *moveIterator) Reset() {
	mi.index = 0
}

func (mi *moveIterator) Next() Move {
	if mi.index >= mi.count {
		return MoveEmpty
	}
	var m = mi.buffer[mi.index].Move
	mi.index++
	return m
}

var sortPieceValues = [...]int{Empty: 0, Pawn: 1, Knight: 2, Bishop: 3, Rook: 4, Queen: 5, King: 6}

func mvvlva(p *Position, move Move) int {
	return 8*(sortPieceValues[p.CapturedPiece(move)]+
		sortPieceValues[move.Promotion()]) -
		sortPieceValues[p.MovingPiece(move)]
}

func sortMoves(moves []OrderedMove) {
	for i := 1; i < len(moves); i++ {
		j, t := i, moves[i]
		for ; j > 0 && moves[j-1].Key < t.Key; j-- {
			moves[j] = moves[j-1]
		}
		moves[j] = t
	}
}
