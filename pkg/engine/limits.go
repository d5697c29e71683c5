package engine

import (
	"context"
	"errors"
)

var errSearchTimeout = errors.New("search timeout")

// limitsManager stops a search on node count, depth or context cancellation.
// Depth 1 always completes so there is a move to play.
type limitsManager struct {
	ctx      context.Context
	depth    int
	nodes    int64
	complete int
}

func newLimitsManager(ctx context.Context, depth int, nodes int) *limitsManager {
	if depth <= 0 || depth > maxHeight {
		depth = maxHeight
	}
	return &limitsManager{
		ctx:   ctx,
		depth: depth,
		nodes: int64(nodes),
	}
}

func (lm *limitsManager) OnNodesChanged(nodes int64) {
	if lm.complete == 0 {
		return
	}
	if lm.nodes > 0 && nodes >= lm.nodes {
		panic(errSearchTimeout)
	}
	if nodes&1023 == 0 && lm.ctx.Err() != nil {
		panic(errSearchTimeout)
	}
}

func (lm *limitsManager) OnIterationComplete(depth, score int) {
	lm.complete = depth
}

func (lm *limitsManager) IsDone(nodes int64) bool {
	if lm.complete >= lm.depth {
		return true
	}
	return lm.complete > 0 &&
		(lm.ctx.Err() != nil || lm.nodes > 0 && nodes >= lm.nodes)
}
