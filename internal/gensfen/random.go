package gensfen

import (
	"context"
	"math/rand"

	"github.com/ChizhovVadim/CounterLearn/pkg/common"
	"github.com/ChizhovVadim/CounterLearn/pkg/engine"
	"golang.org/x/exp/slices"
)

// randomMoveFlags marks count random plies in [minPly-1, maxPly).
// minPly and maxPly count from 1.
func randomMoveFlags(rnd *rand.Rand, minPly, maxPly, count int) []bool {
	var a []int
	for i := common.Max(minPly-1, 0); i < maxPly; i++ {
		a = append(a, i)
	}
	// room for the king move inserts
	var flags = make([]bool, common.Max(maxPly+count, 0))
	for i := 0; i < common.Min(count, len(a)); i++ {
		var j = i + rnd.Intn(len(a)-i)
		a[i], a[j] = a[j], a[i]
		flags[a[i]] = true
	}
	return flags
}

func (d *driver) isRandomPly(ply int) bool {
	if d.cfg.RandomMoveMinPly != -1 {
		return ply < len(d.flags) && d.flags[ply]
	}
	return d.randomCount < d.cfg.RandomMoveCount
}

func (d *driver) chooseRandomMove(ctx context.Context, game *common.Game, ply int) (common.Move, bool) {
	if !d.isRandomPly(ply) {
		return common.MoveEmpty, false
	}
	d.randomCount++

	if d.cfg.RandomMultiPV > 0 {
		var si = d.engine.Search(ctx, engine.SearchParams{
			Game:    game,
			Depth:   d.cfg.RandomMultiPVDepth,
			MultiPV: d.cfg.RandomMultiPV,
		})
		return pickMultiPV(d.rnd, si.Lines, d.cfg.RandomMultiPV, d.cfg.RandomMultiPVDiff)
	}

	var moves = game.Position().LegalMoves(d.moves[:0])
	if len(moves) == 0 {
		return common.MoveEmpty, false
	}
	if d.cfg.RandomMoveLikeApery == 0 || d.rnd.Intn(d.cfg.RandomMoveLikeApery) != 0 {
		return moves[d.rnd.Intn(len(moves))], true
	}
	var kingMoves = d.kingMoves[:0]
	for _, m := range moves {
		if game.Position().IsKingMove(m) {
			kingMoves = append(kingMoves, m)
		}
	}
	if len(kingMoves) == 0 {
		return moves[d.rnd.Intn(len(moves))], true
	}
	var move = kingMoves[d.rnd.Intn(len(kingMoves))]
	// the opponent answers with a random move too
	if d.rnd.Intn(2) == 0 && ply+1 <= len(d.flags) {
		d.flags = slices.Insert(d.flags, ply+1, true)
	}
	return move, true
}

// pickMultiPV chooses uniformly among the lines within diff of the best one.
func pickMultiPV(rnd *rand.Rand, lines []engine.Line, multiPV, diff int) (common.Move, bool) {
	var s = common.Min(len(lines), multiPV)
	for i := 1; i < s; i++ {
		if lines[0].Score > lines[i].Score+diff {
			s = i
			break
		}
	}
	if s == 0 {
		return common.MoveEmpty, false
	}
	return lines[rnd.Intn(s)].Moves[0], true
}
