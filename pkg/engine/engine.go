package engine

import (
	"context"
	"sort"

	. "github.com/ChizhovVadim/CounterLearn/pkg/common"
)

type Evaluator interface {
	// Evaluate returns the score from the side to move point of view.
	Evaluate(p *Position) int
}

type SearchParams struct {
	Game    *Game
	Depth   int
	Nodes   int
	MultiPV int
}

type Line struct {
	Score int
	Moves []Move
}

type SearchInfo struct {
	Depth    int
	Score    int
	MainLine []Move
	// Lines holds MultiPV lines best first, Lines[0] is the main line.
	Lines []Line
	Nodes int64
}

// Engine is single threaded. Self-play and training run one engine per worker.
type Engine struct {
	Options
	evaluator   Evaluator
	transTable  *transTable
	history     historyService
	historyKeys map[uint64]int
	limits      *limitsManager
	nodes       int64
	stack       [stackSize]struct {
		position       Position
		moves          [MaxMoves]Move
		moveList       [MaxMoves]OrderedMove
		quietsSearched [MaxMoves]Move
		pv             pv
		killer1        Move
		killer2        Move
	}
}

type pv struct {
	items [stackSize]Move
	size  int
}

// NewEngine creates an engine. hash is the transposition table size in megabytes, 0 disables it.
func NewEngine(evaluator Evaluator, hash int) *Engine {
	var e = &Engine{
		Options:   NewOptions(),
		evaluator: evaluator,
	}
	e.Hash = hash
	return e
}

func (e *Engine) Prepare() {
	if e.Hash <= 0 {
		e.transTable = nil
		return
	}
	if e.transTable == nil || e.transTable.Size() != e.Hash {
		e.transTable = newTransTable(e.Hash)
	}
}

func (e *Engine) Clear() {
	if e.transTable != nil {
		e.transTable.Clear()
	}
	e.history.Clear()
}

func (e *Engine) Search(ctx context.Context, searchParams SearchParams) SearchInfo {
	e.Prepare()
	var p = searchParams.Game.Position()
	e.limits = newLimitsManager(ctx, searchParams.Depth, searchParams.Nodes)
	e.historyKeys = getHistoryKeys(searchParams.Game.Positions())
	e.nodes = 0
	if e.transTable != nil {
		e.transTable.IncDate()
	}
	e.stack[0].position = *p

	var rootMoves = p.LegalMoves(make([]Move, 0, MaxMoves))
	if len(rootMoves) == 0 {
		var score = valueDraw
		if p.IsCheck() {
			score = lossIn(0)
		}
		return SearchInfo{Score: score}
	}
	var multiPV = Max(1, Min(searchParams.MultiPV, len(rootMoves)))
	var mi = moveIterator{
		position: p,
		moves:    e.stack[0].moves[:],
		buffer:   e.stack[0].moveList[:],
	}
	mi.Init(false)
	for i := 0; i < mi.count; i++ {
		rootMoves[i] = mi.buffer[i].Move
	}

	var result SearchInfo
	for depth := 1; depth <= maxHeight; depth++ {
		if e.limits.IsDone(e.nodes) {
			break
		}
		var lines, ok = e.searchDepth(rootMoves, depth, multiPV)
		if !ok {
			break
		}
		result.Depth = depth
		result.Lines = lines
		result.Score = lines[0].Score
		result.MainLine = lines[0].Moves
		e.limits.OnIterationComplete(depth, result.Score)
		for i := len(lines) - 1; i >= 0; i-- {
			moveToBegin(rootMoves, findMoveIndex(rootMoves, lines[i].Moves[0]))
		}
		if result.Score >= winIn(depth-5) || result.Score <= lossIn(depth-5) {
			break
		}
	}
	result.Nodes = e.nodes
	return result
}

// QSearch runs a quiescence search from p and returns its score and principal variation.
// It never uses the transposition table.
func (e *Engine) QSearch(p *Position) (int, []Move) {
	e.limits = newLimitsManager(context.Background(), 0, 0)
	e.historyKeys = nil
	e.nodes = 0
	e.stack[0].position = *p
	var score = e.quiescence(-valueInfinity, valueInfinity, 0)
	return score, e.stack[0].pv.toSlice()
}

func (e *Engine) searchDepth(rootMoves []Move, depth, multiPV int) (lines []Line, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if r == errSearchTimeout {
				lines, ok = nil, false
				return
			}
			panic(r)
		}
	}()
	var excluded = make([]Move, 0, multiPV)
	for i := 0; i < multiPV; i++ {
		var score = e.searchRoot(rootMoves, excluded, depth)
		var moves = e.stack[0].pv.toSlice()
		if len(moves) == 0 {
			break
		}
		lines = append(lines, Line{Score: score, Moves: moves})
		excluded = append(excluded, moves[0])
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Score > lines[j].Score
	})
	return lines, len(lines) != 0
}

func getHistoryKeys(positions []Position) map[uint64]int {
	var result = make(map[uint64]int)
	for i := len(positions) - 1; i > 0 && positions[i].Rule50() > 0; i-- {
		result[positions[i-1].Key()]++
	}
	return result
}

func (e *Engine) incNodes() {
	e.nodes++
	e.limits.OnNodesChanged(e.nodes)
}

func (e *Engine) clearPV(height int) {
	e.stack[height].pv.clear()
}

func (e *Engine) assignPV(height int, m Move) {
	e.stack[height].pv.assign(m, &e.stack[height+1].pv)
}

func (pv *pv) clear() {
	pv.size = 0
}

func (pv *pv) assign(m Move, child *pv) {
	pv.size = 1
	pv.items[0] = m
	if child.size > 0 {
		pv.size += child.size
		copy(pv.items[1:], child.items[:child.size])
	}
}

func (pv *pv) toSlice() []Move {
	var result = make([]Move, pv.size)
	copy(result, pv.items[:pv.size])
	return result
}
