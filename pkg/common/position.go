package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

var ErrIllegalPosition = errors.New("illegal position")

const (
	WhiteKingSide = 1 << iota
	WhiteQueenSide
	BlackKingSide
	BlackQueenSide
)

type Bitboards = dragontoothmg.Bitboards

// Position is a value type: copying it copies the whole board.
type Position struct {
	board dragontoothmg.Board
}

func NewPositionFromFEN(fen string) (Position, error) {
	var tokens = strings.Fields(fen)
	if len(tokens) < 4 {
		return Position{}, fmt.Errorf("parse fen failed %v", fen)
	}
	for len(tokens) < 6 {
		if len(tokens) == 4 {
			tokens = append(tokens, "0")
		} else {
			tokens = append(tokens, "1")
		}
	}
	if err := checkPlacement(tokens[0]); err != nil {
		return Position{}, fmt.Errorf("parse fen failed %v: %w", fen, err)
	}
	if tokens[1] != "w" && tokens[1] != "b" {
		return Position{}, fmt.Errorf("parse fen failed %v: bad side", fen)
	}
	var p Position
	if err := parseBoard(&p.board, strings.Join(tokens[:6], " ")); err != nil {
		return Position{}, err
	}
	if err := p.validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

// dragontoothmg panics on malformed input.
func parseBoard(b *dragontoothmg.Board, fen string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v: %v", ErrIllegalPosition, fen, r)
		}
	}()
	*b = dragontoothmg.ParseFen(fen)
	return nil
}

func checkPlacement(s string) error {
	var ranks = strings.Split(s, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("%w: bad rank count", ErrIllegalPosition)
	}
	for _, rank := range ranks {
		var n = 0
		for _, ch := range rank {
			if ch >= '1' && ch <= '8' {
				n += int(ch - '0')
			} else if strings.ContainsRune("pnbrqkPNBRQK", ch) {
				n++
			} else {
				return fmt.Errorf("%w: bad piece %q", ErrIllegalPosition, ch)
			}
		}
		if n != 8 {
			return fmt.Errorf("%w: bad rank %v", ErrIllegalPosition, rank)
		}
	}
	return nil
}

const (
	rank1Mask uint64 = 0xff
	rank8Mask uint64 = 0xff << 56
)

func (p *Position) validate() error {
	var b = &p.board
	if PopCount(b.White.Kings) != 1 || PopCount(b.Black.Kings) != 1 {
		return fmt.Errorf("%w: king count", ErrIllegalPosition)
	}
	if (b.White.Pawns|b.Black.Pawns)&(rank1Mask|rank8Mask) != 0 {
		return fmt.Errorf("%w: pawn on back rank", ErrIllegalPosition)
	}
	var opp = *b
	opp.Wtomove = !opp.Wtomove
	if opp.OurKingInCheck() {
		return fmt.Errorf("%w: side not to move is in check", ErrIllegalPosition)
	}
	var cr = p.CastleRights()
	if cr&(WhiteKingSide|WhiteQueenSide) != 0 && b.White.Kings != 1<<4 {
		return fmt.Errorf("%w: white castling without king", ErrIllegalPosition)
	}
	if cr&(BlackKingSide|BlackQueenSide) != 0 && b.Black.Kings != 1<<60 {
		return fmt.Errorf("%w: black castling without king", ErrIllegalPosition)
	}
	if (cr&WhiteKingSide != 0 && b.White.Rooks&(1<<7) == 0) ||
		(cr&WhiteQueenSide != 0 && b.White.Rooks&1 == 0) ||
		(cr&BlackKingSide != 0 && b.Black.Rooks&(1<<63) == 0) ||
		(cr&BlackQueenSide != 0 && b.Black.Rooks&(1<<56) == 0) {
		return fmt.Errorf("%w: castling without rook", ErrIllegalPosition)
	}
	if ep := p.EpSquare(); ep != SquareNone {
		if (b.Wtomove && Rank(ep) != Rank6) || (!b.Wtomove && Rank(ep) != Rank3) {
			return fmt.Errorf("%w: en passant square %v", ErrIllegalPosition, SquareName(ep))
		}
	}
	return nil
}

func (p *Position) Key() uint64 {
	return p.board.Hash()
}

func (p *Position) WhiteMove() bool {
	return p.board.Wtomove
}

func (p *Position) Rule50() int {
	return int(p.board.Halfmoveclock)
}

func (p *Position) FullMove() int {
	return int(p.board.Fullmoveno)
}

func (p *Position) IsCheck() bool {
	return p.board.OurKingInCheck()
}

func (p *Position) Pieces(side bool) Bitboards {
	if side {
		return p.board.White
	}
	return p.board.Black
}

func (p *Position) AllPieces() uint64 {
	return p.board.White.All | p.board.Black.All
}

func (p *Position) PieceOn(sq int) (pieceType int, side bool) {
	var bb = uint64(1) << uint(sq)
	if p.board.White.All&bb != 0 {
		return pieceTypeOn(&p.board.White, bb), SideWhite
	}
	if p.board.Black.All&bb != 0 {
		return pieceTypeOn(&p.board.Black, bb), SideBlack
	}
	return Empty, false
}

func pieceTypeOn(b *Bitboards, bb uint64) int {
	switch {
	case b.Pawns&bb != 0:
		return Pawn
	case b.Knights&bb != 0:
		return Knight
	case b.Bishops&bb != 0:
		return Bishop
	case b.Rooks&bb != 0:
		return Rook
	case b.Queens&bb != 0:
		return Queen
	case b.Kings&bb != 0:
		return King
	}
	return Empty
}

// LegalMoves appends the legal moves to buffer.
func (p *Position) LegalMoves(buffer []Move) []Move {
	var ml = p.board.GenerateLegalMoves()
	var result = buffer[:0]
	for _, m := range ml {
		result = append(result, Move(m))
	}
	return result
}

func (p *Position) HasLegalMove() bool {
	return len(p.board.GenerateLegalMoves()) != 0
}

func (p *Position) IsLegal(move Move) bool {
	if move == MoveEmpty {
		return false
	}
	for _, m := range p.board.GenerateLegalMoves() {
		if Move(m) == move {
			return true
		}
	}
	return false
}

// MakeMove does not check legality: move must come from LegalMoves.
func (p *Position) MakeMove(move Move, child *Position) {
	*child = *p
	child.board.Apply(dragontoothmg.Move(move))
}

func (p *Position) MakeLegalMove(move Move, child *Position) bool {
	if !p.IsLegal(move) {
		return false
	}
	p.MakeMove(move, child)
	return true
}

func (p *Position) MovingPiece(move Move) int {
	var pt, _ = p.PieceOn(move.From())
	return pt
}

func (p *Position) CapturedPiece(move Move) int {
	var pt, _ = p.PieceOn(move.To())
	if pt == Empty && p.MovingPiece(move) == Pawn && File(move.From()) != File(move.To()) {
		return Pawn
	}
	return pt
}

func (p *Position) IsCaptureOrPromotion(move Move) bool {
	return p.CapturedPiece(move) != Empty || move.Promotion() != Empty
}

func (p *Position) IsKingMove(move Move) bool {
	return p.MovingPiece(move) == King
}

// HasInsufficientMaterial reports that side has no pawns, rooks or queens
// and at most maxMinors knights and bishops.
func (p *Position) HasInsufficientMaterial(side bool, maxMinors int) bool {
	var b = p.Pieces(side)
	return (b.Pawns|b.Rooks|b.Queens) == 0 &&
		PopCount(b.Knights|b.Bishops) <= maxMinors
}

func (p *Position) fenFields() []string {
	return strings.Fields(p.board.ToFen())
}

func (p *Position) CastleRights() int {
	var fields = p.fenFields()
	if len(fields) < 3 {
		return 0
	}
	var cr = 0
	for _, ch := range fields[2] {
		switch ch {
		case 'K':
			cr |= WhiteKingSide
		case 'Q':
			cr |= WhiteQueenSide
		case 'k':
			cr |= BlackKingSide
		case 'q':
			cr |= BlackQueenSide
		}
	}
	return cr
}

func (p *Position) EpSquare() int {
	var fields = p.fenFields()
	if len(fields) < 4 {
		return SquareNone
	}
	return ParseSquare(fields[3])
}

func (p *Position) String() string {
	return p.board.ToFen()
}
