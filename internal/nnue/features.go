package nnue

import (
	"fmt"
	"strings"

	"github.com/ChizhovVadim/CounterLearn/pkg/common"
)

type FeatureSet int

const (
	// FeatureP768 indexes pieces by white-relative square.
	FeatureP768 FeatureSet = iota
	// FeatureP768Stm mirrors the board for black to move, so "our" pieces come first.
	FeatureP768Stm
	FeatureP768Castling
	FeatureP768StmCastling
)

var featureSetNames = [...]string{"p768", "p768stm", "p768+castling", "p768stm+castling"}

func (fs FeatureSet) String() string {
	if fs >= 0 && int(fs) < len(featureSetNames) {
		return featureSetNames[fs]
	}
	return fmt.Sprintf("FeatureSet(%d)", int(fs))
}

func ParseFeatureSet(s string) (FeatureSet, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range featureSetNames {
		if name == s {
			return FeatureSet(i), nil
		}
	}
	return FeatureP768, fmt.Errorf("unknown feature set %q", s)
}

func (fs FeatureSet) stm() bool {
	return fs == FeatureP768Stm || fs == FeatureP768StmCastling
}

func (fs FeatureSet) castling() bool {
	return fs == FeatureP768Castling || fs == FeatureP768StmCastling
}

// Size is the number of network inputs.
func (fs FeatureSet) Size() int {
	if fs.castling() {
		return 768 + 4
	}
	return 768
}

type FeatureInfo struct {
	Index int16
	Value int16
}

// AppendFeatures appends the active inputs of pos to buf.
func (fs FeatureSet) AppendFeatures(buf []FeatureInfo, pos *common.Position) []FeatureInfo {
	var flip = fs.stm() && !pos.WhiteMove()
	for x := pos.AllPieces(); x != 0; x &= x - 1 {
		var sq = common.FirstOne(x)
		var pt, white = pos.PieceOn(sq)
		if flip {
			sq = common.FlipSquare(sq)
			white = !white
		}
		var piece12 = pt - common.Pawn
		if !white {
			piece12 += 6
		}
		buf = append(buf, FeatureInfo{
			Index: int16(sq ^ piece12<<6),
			Value: 1,
		})
	}
	if fs.castling() {
		var cr = pos.CastleRights()
		var rights = [4]int{common.WhiteKingSide, common.WhiteQueenSide, common.BlackKingSide, common.BlackQueenSide}
		if flip {
			rights = [4]int{common.BlackKingSide, common.BlackQueenSide, common.WhiteKingSide, common.WhiteQueenSide}
		}
		for i, right := range rights {
			if cr&right != 0 {
				buf = append(buf, FeatureInfo{Index: int16(768 + i), Value: 1})
			}
		}
	}
	return buf
}
