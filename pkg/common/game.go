package common

// Game keeps the positions played so far for repetition detection.
type Game struct {
	positions []Position
	moves     []Move
}

func NewGame(start Position) *Game {
	return &Game{
		positions: []Position{start},
	}
}

func (g *Game) Position() *Position {
	return &g.positions[len(g.positions)-1]
}

func (g *Game) Positions() []Position {
	return g.positions
}

func (g *Game) Moves() []Move {
	return g.moves
}

func (g *Game) Ply() int {
	return len(g.moves)
}

func (g *Game) Push(move Move) {
	var child Position
	g.Position().MakeMove(move, &child)
	g.positions = append(g.positions, child)
	g.moves = append(g.moves, move)
}

func (g *Game) Pop() {
	if len(g.moves) == 0 {
		return
	}
	g.positions = g.positions[:len(g.positions)-1]
	g.moves = g.moves[:len(g.moves)-1]
}

// RepetitionCount counts occurrences of the current position since the last irreversible move.
func (g *Game) RepetitionCount() int {
	var cur = g.Position()
	var count = 1
	for i := len(g.positions) - 3; i >= 0 && i >= len(g.positions)-1-cur.Rule50(); i -= 2 {
		if g.positions[i].Key() == cur.Key() {
			count++
		}
	}
	return count
}

// IsDraw reports the 50-move rule and threefold repetition.
func (g *Game) IsDraw() bool {
	return g.Position().Rule50() >= 100 || g.RepetitionCount() >= 3
}

// Status reports whether the game is over by the rules.
// result is for the side to move: -1 checkmated, 0 draw.
func (g *Game) Status() (terminal bool, result int) {
	var p = g.Position()
	if !p.HasLegalMove() {
		if p.IsCheck() {
			return true, -1
		}
		return true, 0
	}
	if g.IsDraw() {
		return true, 0
	}
	return false, 0
}
