package gensfen

import (
	"errors"
	"math"

	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
)

type Config struct {
	Threads int
	Hash    int
	Seed    int64

	DepthMin int
	DepthMax int
	Nodes    int
	LoopMax  uint64

	EvalLimit   int
	KnownWin    int
	ResignPlies int

	RandomMoveMinPly    int
	RandomMoveMaxPly    int
	RandomMoveCount     int
	RandomMoveLikeApery int
	RandomMultiPV       int
	RandomMultiPVDiff   int
	RandomMultiPVDepth  int

	WriteMinPly int
	WriteMaxPly int

	OutputFileName string
	SaveEvery      uint64
	RandomFileName bool
	Format         sfen.Format
	HashBits       int

	WriteDrawGames                   bool
	DetectDrawByLowScore             bool
	DetectDrawByInsufficientMaterial bool
	DrawAdjPly                       int
	DrawAdjCount                     int
	DrawAdjScore                     int
	MaxMinorPieces                   int
}

func DefaultConfig() Config {
	return Config{
		Threads:  1,
		Hash:     16,
		DepthMin: 3,
		DepthMax: 3,
		LoopMax:  8_000_000_000,

		EvalLimit:   3000,
		KnownWin:    10000,
		ResignPlies: 4,

		RandomMoveMinPly:   1,
		RandomMoveMaxPly:   24,
		RandomMoveCount:    5,
		RandomMultiPVDiff:  32000,
		RandomMultiPVDepth: 3,

		WriteMinPly:    16,
		WriteMaxPly:    400,
		OutputFileName: "generated_kifu",
		SaveEvery:      math.MaxUint64,
		Format:         sfen.FormatBinpack,
		HashBits:       24,

		WriteDrawGames:                   true,
		DetectDrawByLowScore:             true,
		DetectDrawByInsufficientMaterial: true,
		DrawAdjPly:                       80,
		DrawAdjCount:                     8,
		DrawAdjScore:                     0,
		MaxMinorPieces:                   1,
	}
}

func (cfg *Config) Validate() error {
	if cfg.Threads < 1 {
		return errors.New("threads must be positive")
	}
	if cfg.DepthMin < 1 && cfg.Nodes <= 0 {
		return errors.New("depth or nodes must be set")
	}
	if cfg.DepthMax < cfg.DepthMin {
		return errors.New("depth2 is less than depth")
	}
	if cfg.SaveEvery == 0 {
		return errors.New("save_every must be positive")
	}
	if cfg.WriteMaxPly <= 0 {
		return errors.New("write_maxply must be positive")
	}
	if cfg.HashBits < 1 || cfg.HashBits > 32 {
		return errors.New("hash bits out of range")
	}
	return nil
}
