package learn

import (
	"errors"
	"math"

	"github.com/ChizhovVadim/CounterLearn/internal/ml"
	"github.com/ChizhovVadim/CounterLearn/internal/nnue"
)

type Config struct {
	Threads int
	Seed    int64

	Files []string
	Loop  int

	// SaveDir receives checkpoints: <SaveDir>/<tag>/nn.bin.
	SaveDir    string
	NetFile    string
	FeatureSet nnue.FeatureSet
	Hidden     int

	MiniBatchSize      uint64
	LearningRate       float64
	EvalSaveInterval   uint64
	LossOutputInterval uint64
	SaveOnlyOnce       bool

	UseDrawInTraining       bool
	UseDrawInValidation     bool
	SkipDuplicatedPositions bool
	EvalLimit               int
	ReductionGamePly        int

	WinningProbabilityCoefficient float64
	UseWDL                        bool
	Lambda                        float64
	Lambda2                       float64
	LambdaLimit                   float64

	SrcScoreMin  float64
	SrcScoreMax  float64
	DestScoreMin float64
	DestScoreMax float64

	NewbobDecay     float64
	NewbobNumTrials int
	AutoLRDrop      uint64

	ValidationSetFile string
	MSESize           int
	ReadSize          int
	ThreadBufferSize  int
	NoShuffle         bool
	HashBits          int
}

func DefaultConfig() Config {
	return Config{
		Threads:    1,
		Loop:       1,
		SaveDir:    "evalsave",
		FeatureSet: nnue.FeatureP768Stm,
		Hidden:     nnue.DefaultHidden,

		MiniBatchSize:      1_000_000,
		LearningRate:       ml.DefaultLearningRate,
		EvalSaveInterval:   1_000_000_000,
		LossOutputInterval: 0,

		UseDrawInTraining:       true,
		UseDrawInValidation:     true,
		SkipDuplicatedPositions: true,
		EvalLimit:               32000,
		ReductionGamePly:        1,

		WinningProbabilityCoefficient: math.Ln10 / 400,
		Lambda:                        1,
		Lambda2:                       1,
		LambdaLimit:                   32000,

		SrcScoreMin:  0,
		SrcScoreMax:  1,
		DestScoreMin: 0,
		DestScoreMax: 1,

		NewbobDecay:     0.5,
		NewbobNumTrials: 4,

		MSESize:          2000,
		ReadSize:         10_000_000,
		ThreadBufferSize: 10_000,
		HashBits:         24,
	}
}

// Validate fills derived defaults and rejects unusable values.
func (cfg *Config) Validate() error {
	if cfg.Threads < 1 {
		return errors.New("threads must be positive")
	}
	if len(cfg.Files) == 0 {
		return errors.New("no training files")
	}
	if cfg.MiniBatchSize == 0 {
		return errors.New("batchsize must be positive")
	}
	if cfg.ThreadBufferSize < 1 || cfg.ReadSize < cfg.ThreadBufferSize {
		return errors.New("read_size must be at least thread_buffer_size")
	}
	if cfg.SrcScoreMax == cfg.SrcScoreMin {
		return errors.New("empty source score range")
	}
	if cfg.NewbobDecay <= 0 || cfg.NewbobDecay > 1 {
		return errors.New("newbob_decay out of range")
	}
	if cfg.Loop < 1 {
		cfg.Loop = 1
	}
	cfg.ReductionGamePly = max(cfg.ReductionGamePly, 1)
	if cfg.LossOutputInterval == 0 {
		cfg.LossOutputInterval = cfg.MiniBatchSize
	}
	if cfg.EvalSaveInterval == 0 {
		cfg.EvalSaveInterval = cfg.MiniBatchSize
	}
	return nil
}

func (cfg *Config) newbobEnabled() bool {
	return cfg.NewbobDecay != 1
}
