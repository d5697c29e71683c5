package common

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const PackedBoardSize = 32

// PackedBoard layout:
//   - 0..7   occupancy, little endian, bit i = square i (a1 = 0)
//   - 8..23  4-bit piece codes of occupied squares in ascending order, low nibble first;
//     code = piece type (Pawn..King) | 8 for black
//   - 24     bit0 black to move, bits1-4 castling KQkq
//   - 25     en passant square, 64 = none
//   - 26     halfmove clock
//   - 27..28 fullmove number
//   - 29..31 zero
type PackedBoard [PackedBoardSize]byte

const (
	packFlagBlackToMove = 1
	packFlagReserved    = 0xe0
	packNoEp            = 64
	maxPackedPieces     = 32
)

func (p *Position) Pack() (PackedBoard, error) {
	var pb PackedBoard
	var occ = p.AllPieces()
	if PopCount(occ) > maxPackedPieces {
		return pb, fmt.Errorf("%w: too many pieces", ErrIllegalPosition)
	}
	binary.LittleEndian.PutUint64(pb[0:], occ)
	var i = 0
	for x := occ; x != 0; x &= x - 1 {
		var sq = FirstOne(x)
		var pt, side = p.PieceOn(sq)
		var code = byte(pt)
		if !side {
			code |= 8
		}
		if i%2 == 0 {
			pb[8+i/2] |= code
		} else {
			pb[8+i/2] |= code << 4
		}
		i++
	}
	var flags byte
	if !p.WhiteMove() {
		flags |= packFlagBlackToMove
	}
	flags |= byte(p.CastleRights()) << 1
	pb[24] = flags
	var ep = p.EpSquare()
	if ep == SquareNone {
		pb[25] = packNoEp
	} else {
		pb[25] = byte(ep)
	}
	pb[26] = byte(Min(p.Rule50(), 255))
	binary.LittleEndian.PutUint16(pb[27:], uint16(Min(p.FullMove(), 0xffff)))
	return pb, nil
}

const pieceChars = " PNBRQK"

// Unpack rebuilds the position. Corrupt or incompatible data gives an error
// wrapping ErrIllegalPosition.
func (pb *PackedBoard) Unpack() (Position, error) {
	var occ = binary.LittleEndian.Uint64(pb[0:])
	if PopCount(occ) > maxPackedPieces {
		return Position{}, fmt.Errorf("%w: too many pieces", ErrIllegalPosition)
	}
	var flags = pb[24]
	if flags&packFlagReserved != 0 || pb[29] != 0 || pb[30] != 0 || pb[31] != 0 {
		return Position{}, fmt.Errorf("%w: reserved bits set", ErrIllegalPosition)
	}

	var board [64]byte
	var i = 0
	for x := occ; x != 0; x &= x - 1 {
		var code = pb[8+i/2]
		if i%2 == 0 {
			code &= 0xf
		} else {
			code >>= 4
		}
		var pt = int(code & 7)
		if pt < Pawn || pt > King {
			return Position{}, fmt.Errorf("%w: bad piece code %v", ErrIllegalPosition, code)
		}
		var ch = pieceChars[pt]
		if code&8 != 0 {
			ch += 'a' - 'A'
		}
		board[FirstOne(x)] = ch
		i++
	}

	var sb strings.Builder
	for rank := Rank8; rank >= Rank1; rank-- {
		var empty = 0
		for file := FileA; file <= FileH; file++ {
			var ch = board[MakeSquare(file, rank)]
			if ch == 0 {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(ch)
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > Rank1 {
			sb.WriteByte('/')
		}
	}

	if flags&packFlagBlackToMove != 0 {
		sb.WriteString(" b ")
	} else {
		sb.WriteString(" w ")
	}
	var castling = ""
	for j, ch := range "KQkq" {
		if flags&(2<<uint(j)) != 0 {
			castling += string(ch)
		}
	}
	if castling == "" {
		castling = "-"
	}
	sb.WriteString(castling)
	sb.WriteByte(' ')

	var ep = int(pb[25])
	if ep == packNoEp {
		sb.WriteByte('-')
	} else if ep < 64 {
		sb.WriteString(SquareName(ep))
	} else {
		return Position{}, fmt.Errorf("%w: bad en passant %v", ErrIllegalPosition, ep)
	}
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(int(pb[26])))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(Max(1, int(binary.LittleEndian.Uint16(pb[27:])))))

	return NewPositionFromFEN(sb.String())
}
