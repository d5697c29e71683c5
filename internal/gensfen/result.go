package gensfen

import (
	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
	"github.com/ChizhovVadim/CounterLearn/pkg/common"
)

// gameResult adjudicates the current position of game before a move is chosen.
// scores are the search scores of the previous plies. result is for the side to move.
func (cfg *Config) gameResult(game *common.Game, ply int, scores []int) (result int, over bool) {
	var p = game.Position()
	if !p.HasLegalMove() {
		if p.IsCheck() {
			return -1, true
		}
		return 0, true
	}
	if ply >= cfg.WriteMaxPly || game.IsDraw() {
		return 0, true
	}
	if cfg.DetectDrawByLowScore && ply >= cfg.DrawAdjPly &&
		lowScoreRun(scores, cfg.DrawAdjScore, cfg.DrawAdjCount) {
		return 0, true
	}
	if cfg.DetectDrawByInsufficientMaterial &&
		p.HasInsufficientMaterial(common.SideWhite, cfg.MaxMinorPieces) &&
		p.HasInsufficientMaterial(common.SideBlack, cfg.MaxMinorPieces) {
		return 0, true
	}
	return 0, false
}

// lowScoreRun reports that the last count scores are all within margin of zero.
func lowScoreRun(scores []int, margin, count int) bool {
	if count <= 0 || len(scores) < count {
		return false
	}
	for _, s := range scores[len(scores)-count:] {
		if common.Abs(s) > margin {
			return false
		}
	}
	return true
}

// resign checks the eval limit. counter holds the number of consecutive plies over the limit.
func (cfg *Config) resign(score int, counter *int, shouldResign bool) (result int, over bool) {
	if common.Abs(score) < cfg.EvalLimit {
		*counter = 0
		return 0, false
	}
	*counter++
	if (shouldResign && *counter >= cfg.ResignPlies) || common.Abs(score) >= cfg.KnownWin {
		if score >= cfg.EvalLimit {
			return 1, true
		}
		return -1, true
	}
	return 0, false
}

// backfill stamps game outcomes. result is for the side to move at ply,
// so records an even number of plies away get result and the others -result.
func backfill(recs []sfen.Record, ply int, result int8) {
	for i := range recs {
		if (ply-int(recs[i].Ply))&1 == 0 {
			recs[i].Result = result
		} else {
			recs[i].Result = -result
		}
	}
}
