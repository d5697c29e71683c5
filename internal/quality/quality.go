// Package quality measures how well an evaluator predicts the labels of a record file.
package quality

import (
	"context"
	"fmt"
	"math"

	"github.com/ChizhovVadim/CounterLearn/internal/ml"
	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
	"github.com/ChizhovVadim/CounterLearn/pkg/common"
	"github.com/ChizhovVadim/CounterLearn/pkg/engine"
	"github.com/rs/zerolog"
)

// scoreScale maps centipawns to the logit of the win probability.
const scoreScale = math.Ln10 / 400

type Result struct {
	Count   int
	Skipped int
	// ResultCost is the mean squared error between the predicted win probability and the game result.
	ResultCost float64
	// ScoreCost is the mean squared error between the predicted and the recorded win probability.
	ScoreCost    float64
	AbsError     float64
	MoveAccuracy float64
}

// Run evaluates up to limit records of path (all when limit <= 0).
func Run(
	ctx context.Context,
	path string,
	evaluator engine.Evaluator,
	limit int,
	logger zerolog.Logger,
) (Result, error) {
	var input, err = sfen.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer input.Close()

	var eng = engine.NewEngine(evaluator, 0)
	var resultCost ml.IModelCost = &ml.SigmoidMSECost{}
	var scoreCost ml.IModelCost = &ml.MSECost{}
	var res Result
	var sumResult, sumScore, sumAbs float64
	var accord int

	var rec sfen.Record
	for input.Read(&rec) {
		if limit > 0 && res.Count >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var pos, err = rec.Position()
		if err != nil {
			res.Skipped++
			continue
		}
		var s = float64(evaluator.Evaluate(&pos))
		var d = float64(rec.Score)
		var target = float64(rec.Result+1) * 0.5
		sumResult += resultCost.Cost(s*scoreScale, target)
		sumScore += scoreCost.Cost(ml.Sigmoid(s*scoreScale), ml.Sigmoid(d*scoreScale))
		sumAbs += math.Abs(s - d)

		var si = eng.Search(ctx, engine.SearchParams{
			Game:  common.NewGame(pos),
			Depth: 1,
		})
		if len(si.MainLine) != 0 && si.MainLine[0] == rec.Move {
			accord++
		}
		res.Count++
	}
	if err := input.Err(); err != nil {
		return res, fmt.Errorf("read %v: %w", path, err)
	}
	if res.Count != 0 {
		var n = float64(res.Count)
		res.ResultCost = sumResult / n
		res.ScoreCost = sumScore / n
		res.AbsError = sumAbs / n
		res.MoveAccuracy = float64(accord) / n
	}
	logger.Info().
		Str("file", path).
		Int("count", res.Count).
		Int("skipped", res.Skipped).
		Float64("result_cost", res.ResultCost).
		Float64("score_cost", res.ScoreCost).
		Float64("abs_error", res.AbsError).
		Float64("move_accuracy", res.MoveAccuracy).
		Msg("quality")
	return res, nil
}
