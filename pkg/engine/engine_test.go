package engine

import (
	"context"
	"testing"

	"github.com/ChizhovVadim/CounterLearn/pkg/common"
	eval "github.com/ChizhovVadim/CounterLearn/pkg/eval/material"
)

func newTestGame(t *testing.T, fen string) *common.Game {
	var p, err = common.NewPositionFromFEN(fen)
	if err != nil {
		t.Fatal(err)
	}
	return common.NewGame(p)
}

func TestMateInOne(t *testing.T) {
	var eng = NewEngine(eval.NewEvaluationService(), 1)
	var game = newTestGame(t, "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	var si = eng.Search(context.Background(), SearchParams{Game: game, Depth: 3})
	if len(si.MainLine) == 0 || si.MainLine[0].String() != "a1a8" {
		t.Fatal(si.MainLine)
	}
	if si.Score != MateIn(1) || !IsMateScore(si.Score) {
		t.Error(si.Score)
	}
}

func TestNoLegalMoves(t *testing.T) {
	var eng = NewEngine(eval.NewEvaluationService(), 0)
	var game = newTestGame(t, "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	var si = eng.Search(context.Background(), SearchParams{Game: game, Depth: 2})
	if len(si.MainLine) != 0 || si.Score != -ValueMate {
		t.Error(si)
	}
}

func TestMultiPV(t *testing.T) {
	var eng = NewEngine(eval.NewEvaluationService(), 1)
	var game = newTestGame(t, common.InitialPositionFen)
	var si = eng.Search(context.Background(), SearchParams{Game: game, Depth: 2, MultiPV: 3})
	if len(si.Lines) != 3 {
		t.Fatal(len(si.Lines))
	}
	var seen = make(map[common.Move]bool)
	for i, line := range si.Lines {
		if i > 0 && line.Score > si.Lines[i-1].Score {
			t.Error("lines not sorted", si.Lines)
		}
		if seen[line.Moves[0]] {
			t.Error("duplicate first move", line.Moves[0])
		}
		seen[line.Moves[0]] = true
	}
	if si.MainLine[0] != si.Lines[0].Moves[0] {
		t.Error("main line mismatch")
	}
}

func TestNodeLimit(t *testing.T) {
	var eng = NewEngine(eval.NewEvaluationService(), 1)
	var game = newTestGame(t, common.InitialPositionFen)
	var si = eng.Search(context.Background(), SearchParams{Game: game, Nodes: 500})
	if si.Depth < 1 || len(si.MainLine) == 0 {
		t.Error(si)
	}
	if si.Depth >= 10 {
		t.Error("node limit ignored", si.Depth)
	}
}

func TestQSearch(t *testing.T) {
	var eng = NewEngine(eval.NewEvaluationService(), 0)
	var p, _ = common.NewPositionFromFEN("4k3/8/8/3q4/4P3/8/8/4K3 w - - 0 1")
	var score, pv = eng.QSearch(&p)
	if len(pv) == 0 || pv[0].String() != "e4d5" {
		t.Fatal(pv)
	}
	if score != 100 {
		t.Error(score)
	}

	var quiet, _ = common.NewPositionFromFEN("4k3/8/8/8/8/8/4P3/4K3 b - - 0 1")
	score, pv = eng.QSearch(&quiet)
	if len(pv) != 0 || score != -100 {
		t.Error(score, pv)
	}
}
