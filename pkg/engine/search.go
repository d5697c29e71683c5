package engine

import (
	. "github.com/ChizhovVadim/CounterLearn/pkg/common"
)

func (e *Engine) searchRoot(rootMoves, excluded []Move, depth int) int {
	const height = 0
	e.clearPV(height)
	var alpha = -valueInfinity
	var beta = valueInfinity
	var best = -valueInfinity
	var position = &e.stack[height].position
	var child = &e.stack[height+1].position
	var movesSearched = 0
	for _, move := range rootMoves {
		if findMoveIndex(excluded, move) >= 0 {
			continue
		}
		position.MakeMove(move, child)
		e.incNodes()
		movesSearched++
		var score int
		if movesSearched == 1 {
			score = -e.alphaBeta(-beta, -alpha, depth-1, height+1)
		} else {
			score = -e.alphaBeta(-(alpha + 1), -alpha, depth-1, height+1)
			if score > alpha {
				score = -e.alphaBeta(-beta, -alpha, depth-1, height+1)
			}
		}
		if score > best {
			best = score
		}
		if score > alpha {
			alpha = score
			e.assignPV(height, move)
		}
	}
	return best
}

// main search method
func (e *Engine) alphaBeta(alpha, beta, depth, height int) int {
	var position = &e.stack[height].position
	var isCheck = position.IsCheck()
	if isCheck {
		depth++
	}
	if depth <= 0 {
		return e.quiescence(alpha, beta, height)
	}
	e.clearPV(height)

	if height >= maxHeight {
		return e.evaluator.Evaluate(position)
	}
	if e.isRepeat(height) || isDraw(position) {
		return valueDraw
	}
	// mate distance pruning
	alpha = Max(alpha, lossIn(height))
	beta = Min(beta, winIn(height+1))
	if alpha >= beta {
		return alpha
	}
	var pvNode = beta != alpha+1

	var ttDepth, ttValue, ttBound, ttMove, ttHit = e.ttRead(position.Key())
	if ttHit {
		ttValue = valueFromTT(ttValue, height)
		if ttDepth >= depth && !pvNode {
			if ttValue >= beta && (ttBound&boundLower) != 0 {
				return ttValue
			}
			if ttValue <= alpha && (ttBound&boundUpper) != 0 {
				return ttValue
			}
		}
	}

	var killer1 = e.stack[height].killer1
	var killer2 = e.stack[height].killer2
	var mi = moveIterator{
		position:  position,
		moves:     e.stack[height].moves[:],
		buffer:    e.stack[height].moveList[:],
		history:   &e.history,
		transMove: ttMove,
		killer1:   killer1,
		killer2:   killer2,
	}
	mi.Init(false)
	if mi.count == 0 {
		if isCheck {
			return lossIn(height)
		}
		return valueDraw
	}

	if height+2 <= maxHeight {
		e.stack[height+2].killer1 = MoveEmpty
		e.stack[height+2].killer2 = MoveEmpty
	}
	var child = &e.stack[height+1].position
	var quietsSearched = e.stack[height].quietsSearched[:0]
	var movesSearched = 0
	var best = -valueInfinity
	var bestMove = MoveEmpty
	var oldAlpha = alpha

	for mi.Reset(); ; {
		var move = mi.Next()
		if move == MoveEmpty {
			break
		}
		var isNoisy = position.IsCaptureOrPromotion(move)
		position.MakeMove(move, child)
		e.incNodes()
		movesSearched++

		var reduction int
		if depth >= 3 && movesSearched > 1 && !isNoisy && !isCheck && !child.IsCheck() {
			reduction = e.Lmr(depth, movesSearched)
			if move == killer1 || move == killer2 {
				reduction--
			}
			if pvNode {
				reduction -= 2
			}
			reduction = Max(0, Min(depth-2, reduction))
		}
		if !isNoisy {
			quietsSearched = append(quietsSearched, move)
		}

		var newDepth = depth - 1
		var score = alpha + 1
		// LMR
		if reduction > 0 {
			score = -e.alphaBeta(-(alpha + 1), -alpha, newDepth-reduction, height+1)
		}
		// PVS
		if score > alpha && pvNode && movesSearched > 1 && newDepth > 0 {
			score = -e.alphaBeta(-(alpha + 1), -alpha, newDepth, height+1)
		}
		// full search
		if score > alpha {
			score = -e.alphaBeta(-beta, -alpha, newDepth, height+1)
		}

		if score > best {
			best = score
			bestMove = move
		}
		if score > alpha {
			alpha = score
			e.assignPV(height, move)
			if alpha >= beta {
				break
			}
		}
	}

	if alpha > oldAlpha && !position.IsCaptureOrPromotion(bestMove) {
		e.history.Update(position.WhiteMove(), quietsSearched, bestMove, depth)
		e.updateKiller(bestMove, height)
	}

	var bound = 0
	if best > oldAlpha {
		bound |= boundLower
	}
	if best < beta {
		bound |= boundUpper
	}
	e.ttUpdate(position.Key(), depth, valueToTT(best, height), bound, bestMove)

	return best
}

func (e *Engine) quiescence(alpha, beta, height int) int {
	e.clearPV(height)
	var position = &e.stack[height].position
	if height >= maxHeight {
		return e.evaluator.Evaluate(position)
	}
	if e.isRepeat(height) || isDraw(position) {
		return valueDraw
	}

	var isCheck = position.IsCheck()
	var best = -valueInfinity
	if !isCheck {
		var eval = e.evaluator.Evaluate(position)
		best = eval
		if eval > alpha {
			alpha = eval
			if alpha >= beta {
				return alpha
			}
		}
	}
	var mi = moveIterator{
		position: position,
		moves:    e.stack[height].moves[:],
		buffer:   e.stack[height].moveList[:],
	}
	mi.Init(true)
	if isCheck && mi.count == 0 {
		return lossIn(height)
	}
	var child = &e.stack[height+1].position
	for mi.Reset(); ; {
		var move = mi.Next()
		if move == MoveEmpty {
			break
		}
		position.MakeMove(move, child)
		e.incNodes()
		var score = -e.quiescence(-beta, -alpha, height+1)
		best = Max(best, score)
		if score > alpha {
			alpha = score
			e.assignPV(height, move)
			if alpha >= beta {
				break
			}
		}
	}
	return best
}

func (e *Engine) isRepeat(height int) bool {
	var key = e.stack[height].position.Key()
	for i := height - 4; i >= 0; i -= 2 {
		if e.stack[i].position.Key() == key {
			return true
		}
	}
	return e.historyKeys[key] > 0
}

func (e *Engine) updateKiller(move Move, height int) {
	if e.stack[height].killer1 != move {
		e.stack[height].killer2 = e.stack[height].killer1
		e.stack[height].killer1 = move
	}
}

func (e *Engine) ttRead(key uint64) (depth, score, bound int, move Move, ok bool) {
	if e.transTable == nil {
		return
	}
	return e.transTable.Read(key)
}

func (e *Engine) ttUpdate(key uint64, depth, score, bound int, move Move) {
	if e.transTable == nil {
		return
	}
	e.transTable.Update(key, depth, score, bound, move)
}
