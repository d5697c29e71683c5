package eval

import (
	"github.com/ChizhovVadim/CounterLearn/pkg/common"
)

// EvaluationService counts material only. Self-play uses it to bootstrap before any net is trained.
type EvaluationService struct{}

func NewEvaluationService() *EvaluationService {
	return &EvaluationService{}
}

var pieceValues = [...]int{common.Pawn: 100, common.Knight: 400, common.Bishop: 400, common.Rook: 600, common.Queen: 1200}

func (e *EvaluationService) Evaluate(p *common.Position) int {
	var white = p.Pieces(common.SideWhite)
	var black = p.Pieces(common.SideBlack)
	var eval = pieceValues[common.Pawn]*(common.PopCount(white.Pawns)-common.PopCount(black.Pawns)) +
		pieceValues[common.Knight]*(common.PopCount(white.Knights)-common.PopCount(black.Knights)) +
		pieceValues[common.Bishop]*(common.PopCount(white.Bishops)-common.PopCount(black.Bishops)) +
		pieceValues[common.Rook]*(common.PopCount(white.Rooks)-common.PopCount(black.Rooks)) +
		pieceValues[common.Queen]*(common.PopCount(white.Queens)-common.PopCount(black.Queens))
	if !p.WhiteMove() {
		eval = -eval
	}
	return eval
}
