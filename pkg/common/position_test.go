package common

import (
	"errors"
	"testing"
)

var testFens = []string{
	InitialPositionFen,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
	"r4rk1/1pp1qppp/p1np1n2/2b1p1B1/2B1P1b1/P1NP1N2/1PP1QPPP/R4RK1 w - - 17 10",
	"8/8/8/8/8/5k2/8/4K3 b - - 99 120",
}

func TestPackRoundTrip(t *testing.T) {
	for i, fen := range testFens {
		var p, err = NewPositionFromFEN(fen)
		if err != nil {
			t.Fatal(i, fen, err)
		}
		pb, err := p.Pack()
		if err != nil {
			t.Fatal(i, fen, err)
		}
		q, err := pb.Unpack()
		if err != nil {
			t.Fatal(i, fen, err)
		}
		if q.String() != p.String() {
			t.Error(i, p.String(), q.String())
		}
		if q.Key() != p.Key() {
			t.Error(i, "key mismatch", fen)
		}
	}
}

func TestUnpackCorrupt(t *testing.T) {
	var p, _ = NewPositionFromFEN(InitialPositionFen)
	var pb, _ = p.Pack()

	var noKing = pb
	// first occupied square is a1 (white rook), turn it into a white king: two kings
	noKing[8] = noKing[8]&0xf0 | King
	if _, err := noKing.Unpack(); !errors.Is(err, ErrIllegalPosition) {
		t.Error("two kings accepted", err)
	}

	var badCode = pb
	badCode[8] = badCode[8]&0xf0 | 7
	if _, err := badCode.Unpack(); !errors.Is(err, ErrIllegalPosition) {
		t.Error("bad piece code accepted", err)
	}

	var reserved = pb
	reserved[24] |= 0x80
	if _, err := reserved.Unpack(); !errors.Is(err, ErrIllegalPosition) {
		t.Error("reserved bits accepted", err)
	}

	var zero PackedBoard
	if _, err := zero.Unpack(); err == nil {
		t.Error("empty board accepted")
	}
}

func TestNewPositionFromFENErrors(t *testing.T) {
	var tests = []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1",
		"rnbqkbnr/pppppppp/9/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",
		"4k3/8/8/8/8/8/8/4K3 w K - 0 1",
		"4k3/8/8/8/8/8/8/4K2r b - - 0 1",
	}
	for i, fen := range tests {
		if _, err := NewPositionFromFEN(fen); err == nil {
			t.Error(i, fen, "accepted")
		}
	}
}

func TestGameStatus(t *testing.T) {
	var tests = []struct {
		fen      string
		terminal bool
		result   int
	}{
		{InitialPositionFen, false, 0},
		{"rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", true, -1},
		{"7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", true, 0},
		{"7k/8/6K1/8/8/8/8/R7 w - - 100 80", true, 0},
	}
	for i, test := range tests {
		var p, err = NewPositionFromFEN(test.fen)
		if err != nil {
			t.Fatal(i, err)
		}
		var terminal, result = NewGame(p).Status()
		if terminal != test.terminal || result != test.result {
			t.Error(i, test, terminal, result)
		}
	}
}

func TestGameRepetition(t *testing.T) {
	var p, _ = NewPositionFromFEN(InitialPositionFen)
	var game = NewGame(p)
	for i := 0; i < 2; i++ {
		for _, s := range []string{"g1f3", "g8f6", "f3g1", "f6g8"} {
			var m, err = ParseMove(s)
			if err != nil {
				t.Fatal(err)
			}
			if !game.Position().IsLegal(m) {
				t.Fatal("illegal", s)
			}
			game.Push(m)
		}
		if i == 0 && game.IsDraw() {
			t.Error("draw after first cycle")
		}
	}
	if game.RepetitionCount() != 3 || !game.IsDraw() {
		t.Error("threefold not detected", game.RepetitionCount())
	}
	game.Pop()
	if game.Ply() != 7 || game.IsDraw() {
		t.Error("pop", game.Ply())
	}
}

func TestInsufficientMaterial(t *testing.T) {
	var tests = []struct {
		fen          string
		white, black bool
	}{
		{"4k3/8/8/8/8/8/8/4K3 w - - 0 1", true, true},
		{"4k3/8/8/8/8/8/8/2B1K3 w - - 0 1", true, true},
		{"4k3/8/8/8/8/8/8/1NB1K3 w - - 0 1", false, true},
		{"4k3/4p3/8/8/8/8/8/4K3 w - - 0 1", true, false},
		{"4k3/8/8/8/8/8/8/R3K3 w - - 0 1", false, true},
	}
	for i, test := range tests {
		var p, err = NewPositionFromFEN(test.fen)
		if err != nil {
			t.Fatal(i, err)
		}
		if p.HasInsufficientMaterial(SideWhite, 1) != test.white ||
			p.HasInsufficientMaterial(SideBlack, 1) != test.black {
			t.Error(i, test)
		}
	}
}

func TestMoveHelpers(t *testing.T) {
	var p, _ = NewPositionFromFEN("rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3")
	var ep, _ = ParseMove("e5f6")
	if !p.IsLegal(ep) || p.CapturedPiece(ep) != Pawn || !p.IsCaptureOrPromotion(ep) {
		t.Error("en passant")
	}
	var kingMove, _ = ParseMove("e1e2")
	if !p.IsLegal(kingMove) || !p.IsKingMove(kingMove) || p.IsCaptureOrPromotion(kingMove) {
		t.Error("king move")
	}
	if p.IsLegal(MoveEmpty) {
		t.Error("empty move legal")
	}
}
