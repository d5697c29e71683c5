package gensfen

import (
	"context"
	"math/rand"
	"sync/atomic"

	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
	"github.com/ChizhovVadim/CounterLearn/pkg/common"
	"github.com/ChizhovVadim/CounterLearn/pkg/engine"
	"github.com/rs/zerolog"
)

// quota hands out one ticket per written record.
type quota struct {
	max    uint64
	issued atomic.Uint64
}

func (q *quota) Take() bool {
	return q.issued.Add(1) <= q.max
}

func (q *quota) Done() bool {
	return q.issued.Load() >= q.max
}

// driver plays self-play games on one goroutine.
type driver struct {
	id        int
	cfg       *Config
	engine    *engine.Engine
	rnd       *rand.Rand
	writer    *SfenWriter
	hash      *sfen.HashTable
	quota     *quota
	logger    zerolog.Logger
	start     common.Position
	flags     []bool
	moves     []common.Move
	kingMoves []common.Move

	randomCount int
	trajectory  []sfen.Record
	scores      []int
}

func (d *driver) Run(ctx context.Context) error {
	defer d.writer.Finalize(d.id)
	for !d.quota.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.playGame(ctx) {
			break
		}
	}
	return nil
}

// playGame returns true when the quota is exhausted.
func (d *driver) playGame(ctx context.Context) bool {
	var cfg = d.cfg
	var game = common.NewGame(d.start)
	var shouldResign = d.rnd.Intn(10) > 1
	var resignCounter = 0
	d.flags = randomMoveFlags(d.rnd, cfg.RandomMoveMinPly, cfg.RandomMoveMaxPly, cfg.RandomMoveCount)
	d.randomCount = 0
	d.trajectory = d.trajectory[:0]
	d.scores = d.scores[:0]

	for ply := 0; ; ply++ {
		if ctx.Err() != nil {
			return true
		}
		if result, over := cfg.gameResult(game, ply, d.scores); over {
			return d.commit(ply, result)
		}

		var depth = cfg.DepthMin
		if cfg.DepthMax > cfg.DepthMin {
			depth += d.rnd.Intn(cfg.DepthMax - cfg.DepthMin + 1)
		}
		var si = d.engine.Search(ctx, engine.SearchParams{
			Game:  game,
			Depth: depth,
			Nodes: cfg.Nodes,
		})
		var score = si.Score
		if result, over := cfg.resign(score, &resignCounter, shouldResign); over {
			return d.commit(ply, result)
		}
		if len(si.MainLine) == 0 {
			if ctx.Err() == nil {
				d.logger.Warn().
					Str("fen", game.Position().String()).
					Int("ply", ply).
					Msg("search returned no move, game abandoned")
			}
			return false
		}
		d.scores = append(d.scores, score)

		var pos = game.Position()
		if ply < cfg.WriteMinPly-1 {
			d.trajectory = d.trajectory[:0]
		} else if !d.hash.Seen(pos.Key()) {
			var rec, err = sfen.NewRecord(pos, score, si.MainLine[0], ply)
			if err != nil {
				d.logger.Warn().Err(err).Str("fen", pos.String()).Msg("position not packed, game abandoned")
				return false
			}
			d.trajectory = append(d.trajectory, rec)
		}

		var next = si.MainLine[0]
		if move, ok := d.chooseRandomMove(ctx, game, ply); ok {
			next = move
		}
		game.Push(next)
	}
}

// commit writes the finished game. result is for the side to move at ply.
// Records are admitted from the end of the game while the quota lasts.
func (d *driver) commit(ply, result int) (quit bool) {
	if !d.cfg.WriteDrawGames && result == 0 {
		return false
	}
	var recs = d.trajectory
	backfill(recs, ply, int8(result))
	var n = 0
	for n < len(recs) {
		if !d.quota.Take() {
			quit = true
			break
		}
		n++
	}
	for i := len(recs) - n; i < len(recs); i++ {
		d.writer.Write(d.id, &recs[i])
	}
	return quit
}
