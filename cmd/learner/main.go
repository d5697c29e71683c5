package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ChizhovVadim/CounterLearn/internal/gensfen"
	"github.com/ChizhovVadim/CounterLearn/internal/learn"
	"github.com/ChizhovVadim/CounterLearn/internal/logx"
	"github.com/ChizhovVadim/CounterLearn/internal/nnue"
	"github.com/ChizhovVadim/CounterLearn/internal/quality"
	"github.com/ChizhovVadim/CounterLearn/internal/sfen"
	"github.com/ChizhovVadim/CounterLearn/internal/shuffle"
	"github.com/ChizhovVadim/CounterLearn/pkg/engine"
	eval "github.com/ChizhovVadim/CounterLearn/pkg/eval/material"
)

var logger = logx.NewLogger(os.Stderr)

func main() {
	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Msg("interrupted")
			return
		}
		logger.Fatal().Err(err).Msg("learner failed")
	}
}

func run(ctx context.Context, args []string) error {
	var cli = NewCli(args)
	var params = cli.Params()

	cli.AddCommand("gensfen", func() error {
		var cfg = gensfenConfig(params)
		var evalName = params.GetString("eval", "")
		var netPath = mapPath(params.GetString("net", ""))
		if err := params.Err(); err != nil {
			return err
		}
		evalBuilder, err := newEvalBuilder(evalName, netPath)
		if err != nil {
			return err
		}
		return gensfen.Run(ctx, cfg, evalBuilder, logger)
	})
	cli.AddCommand("learn", func() error {
		var cfg, err = learnConfig(params)
		if err != nil {
			return err
		}
		return learn.Run(ctx, cfg, logger)
	})
	cli.AddCommand("shuffle", func() error {
		var s, err = shuffleSettings(params)
		if err != nil {
			return err
		}
		var tmpDir = mapPath(params.GetString("tmpdir", "tmp"))
		var bufferSize = params.GetInt("buffer_size", 20_000_000)
		if err := params.Err(); err != nil {
			return err
		}
		return shuffle.Chunked(ctx, s.inputs, s.output, s.format, tmpDir, bufferSize, s.rnd, logger)
	})
	cli.AddCommand("shuffleq", func() error {
		var s, err = shuffleSettings(params)
		if err != nil {
			return err
		}
		return shuffle.Quick(ctx, s.inputs, s.output, s.format, s.rnd, logger)
	})
	cli.AddCommand("shufflem", func() error {
		var s, err = shuffleSettings(params)
		if err != nil {
			return err
		}
		return shuffle.InMemory(ctx, s.inputs, s.output, s.format, s.rnd, logger)
	})
	cli.AddCommand("convert_plain", func() error {
		var input = mapPath(params.GetString("input", ""))
		var output = mapPath(params.GetString("output", "shuffled_sfen.txt"))
		var n, skipped, err = sfen.ConvertToPlain(input, output)
		if err != nil {
			return err
		}
		logger.Info().Str("output", output).Int("records", n).Int("skipped", skipped).Msg("convert_plain done")
		return nil
	})
	cli.AddCommand("convert_bin", func() error {
		var input = mapPath(params.GetString("input", ""))
		var output = mapPath(params.GetString("output", "shuffled_sfen.bin"))
		format, err := sfen.ParseFormat(params.GetString("sfen_format", "bin"))
		if err != nil {
			return err
		}
		n, skipped, err := sfen.ConvertFromPlain(input, output, format)
		if err != nil {
			return err
		}
		logger.Info().Str("output", output).Int("records", n).Int("skipped", skipped).Msg("convert_bin done")
		return nil
	})
	cli.AddCommand("quality", func() error {
		var input = mapPath(params.GetString("input", ""))
		var limit = params.GetInt("limit", 0)
		var evaluator, err = loadEvaluator(params)
		if err != nil {
			return err
		}
		_, err = quality.Run(ctx, input, evaluator, limit, logger)
		return err
	})
	return cli.Execute()
}

func gensfenConfig(params *CommandArgs) gensfen.Config {
	var cfg = gensfen.DefaultConfig()
	cfg.Threads = params.GetInt("threads", runtime.NumCPU())
	cfg.Hash = params.GetInt("hash", cfg.Hash)
	cfg.Seed = params.GetInt64("seed", cfg.Seed)

	cfg.DepthMin = params.GetInt("depth", cfg.DepthMin)
	cfg.DepthMax = params.GetInt("depth2", cfg.DepthMin)
	cfg.Nodes = params.GetInt("nodes", cfg.Nodes)
	cfg.LoopMax = params.GetUint64("loop", cfg.LoopMax)
	cfg.EvalLimit = params.GetInt("eval_limit", cfg.EvalLimit)

	cfg.RandomMoveMinPly = params.GetInt("random_move_minply", cfg.RandomMoveMinPly)
	cfg.RandomMoveMaxPly = params.GetInt("random_move_maxply", cfg.RandomMoveMaxPly)
	cfg.RandomMoveCount = params.GetInt("random_move_count", cfg.RandomMoveCount)
	cfg.RandomMoveLikeApery = params.GetInt("random_move_like_apery", cfg.RandomMoveLikeApery)
	cfg.RandomMultiPV = params.GetInt("random_multi_pv", cfg.RandomMultiPV)
	cfg.RandomMultiPVDiff = params.GetInt("random_multi_pv_diff", cfg.RandomMultiPVDiff)
	cfg.RandomMultiPVDepth = params.GetInt("random_multi_pv_depth", 0)

	cfg.WriteMinPly = params.GetInt("write_minply", cfg.WriteMinPly)
	cfg.WriteMaxPly = params.GetInt("write_maxply", cfg.WriteMaxPly)

	cfg.OutputFileName = mapPath(params.GetString("output_file_name", cfg.OutputFileName))
	cfg.SaveEvery = params.GetUint64("save_every", cfg.SaveEvery)
	cfg.RandomFileName = params.GetBool("random_file_name", cfg.RandomFileName)
	if format, err := sfen.ParseFormat(params.GetString("sfen_format", cfg.Format.String())); err != nil {
		params.fail("sfen_format", params.GetString("sfen_format", ""), err)
	} else {
		cfg.Format = format
	}

	cfg.WriteDrawGames = params.GetBool("write_out_draw_game_in_training_data_generation", cfg.WriteDrawGames)
	cfg.DetectDrawByLowScore = params.GetBool("detect_draw_by_consecutive_low_score", cfg.DetectDrawByLowScore)
	cfg.DetectDrawByInsufficientMaterial = params.GetBool("detect_draw_by_insufficient_mating_material", cfg.DetectDrawByInsufficientMaterial)
	return cfg
}

func newEvalBuilder(evalName, netPath string) (func(worker int) (engine.Evaluator, error), error) {
	if evalName == "" {
		evalName = "material"
		if netPath != "" {
			evalName = "nnue"
		}
	}
	switch evalName {
	case "material":
		return func(worker int) (engine.Evaluator, error) {
			return eval.NewEvaluationService(), nil
		}, nil
	case "nnue":
		if netPath == "" {
			return nil, fmt.Errorf("eval nnue requires -net")
		}
		var network, err = nnue.Load(netPath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", netPath).Str("features", network.FeatureSet.String()).Msg("network loaded")
		return func(worker int) (engine.Evaluator, error) {
			return network.ThreadEvaluator(worker), nil
		}, nil
	}
	return nil, fmt.Errorf("unknown eval %q", evalName)
}

func learnConfig(params *CommandArgs) (learn.Config, error) {
	var cfg = learn.DefaultConfig()
	cfg.Threads = params.GetInt("threads", runtime.NumCPU())
	cfg.Seed = params.GetInt64("seed", cfg.Seed)
	cfg.Loop = params.GetInt("loop", cfg.Loop)

	cfg.SaveDir = mapPath(params.GetString("savedir", cfg.SaveDir))
	cfg.NetFile = mapPath(params.GetString("net", ""))
	cfg.Hidden = params.GetInt("hidden", cfg.Hidden)
	featureSet, err := nnue.ParseFeatureSet(params.GetString("features", cfg.FeatureSet.String()))
	if err != nil {
		return cfg, err
	}
	cfg.FeatureSet = featureSet

	cfg.MiniBatchSize = params.GetUint64("batchsize", cfg.MiniBatchSize)
	cfg.LearningRate = params.GetFloat("lr", cfg.LearningRate)
	cfg.EvalSaveInterval = params.GetUint64("eval_save_interval", cfg.EvalSaveInterval)
	cfg.LossOutputInterval = params.GetUint64("loss_output_interval", cfg.LossOutputInterval)
	cfg.SaveOnlyOnce = params.GetBool("save_only_once", cfg.SaveOnlyOnce)

	cfg.UseDrawInTraining = params.GetBool("use_draw_games_in_training", cfg.UseDrawInTraining)
	cfg.UseDrawInValidation = params.GetBool("use_draw_games_in_validation", cfg.UseDrawInValidation)
	cfg.SkipDuplicatedPositions = params.GetBool("skip_duplicated_positions_in_training", cfg.SkipDuplicatedPositions)
	cfg.EvalLimit = params.GetInt("eval_limit", cfg.EvalLimit)
	cfg.ReductionGamePly = params.GetInt("reduction_gameply", cfg.ReductionGamePly)

	cfg.WinningProbabilityCoefficient = params.GetFloat("winning_probability_coefficient", cfg.WinningProbabilityCoefficient)
	cfg.UseWDL = params.GetBool("use_wdl", cfg.UseWDL)
	cfg.Lambda = params.GetFloat("lambda", cfg.Lambda)
	cfg.Lambda2 = params.GetFloat("lambda2", cfg.Lambda2)
	cfg.LambdaLimit = params.GetFloat("lambda_limit", cfg.LambdaLimit)

	cfg.SrcScoreMin = params.GetFloat("src_score_min_value", cfg.SrcScoreMin)
	cfg.SrcScoreMax = params.GetFloat("src_score_max_value", cfg.SrcScoreMax)
	cfg.DestScoreMin = params.GetFloat("dest_score_min_value", cfg.DestScoreMin)
	cfg.DestScoreMax = params.GetFloat("dest_score_max_value", cfg.DestScoreMax)

	cfg.NewbobDecay = params.GetFloat("newbob_decay", cfg.NewbobDecay)
	cfg.NewbobNumTrials = params.GetInt("newbob_num_trials", cfg.NewbobNumTrials)
	cfg.AutoLRDrop = params.GetUint64("auto_lr_drop", cfg.AutoLRDrop)

	cfg.ValidationSetFile = mapPath(params.GetString("validation_set_file_name", ""))
	cfg.MSESize = params.GetInt("mse_size", cfg.MSESize)
	cfg.ReadSize = params.GetInt("read_size", cfg.ReadSize)
	cfg.ThreadBufferSize = params.GetInt("thread_buffer_size", cfg.ThreadBufferSize)
	cfg.NoShuffle = params.GetBool("no_shuffle", cfg.NoShuffle)

	files, err := inputFiles(params)
	if err != nil {
		return cfg, err
	}
	cfg.Files = files
	return cfg, params.Err()
}

type shuffleParams struct {
	inputs []string
	output string
	format sfen.Format
	rnd    *rand.Rand
}

func shuffleSettings(params *CommandArgs) (shuffleParams, error) {
	var inputs, err = inputFiles(params)
	if err != nil {
		return shuffleParams{}, err
	}
	format, err := sfen.ParseFormat(params.GetString("sfen_format", "bin"))
	if err != nil {
		return shuffleParams{}, err
	}
	var s = shuffleParams{
		inputs: inputs,
		output: mapPath(params.GetString("output_file_name", "shuffled_sfen.bin")),
		format: format,
		rnd:    rand.New(rand.NewSource(params.GetInt64("seed", 0))),
	}
	return s, params.Err()
}

// inputFiles lists -files (comma separated) and every regular file of -targetdir, relative to -basedir.
func inputFiles(params *CommandArgs) ([]string, error) {
	var baseDir = mapPath(params.GetString("basedir", ""))
	var targetDir = params.GetString("targetdir", "")
	var names []string
	if files := params.GetString("files", ""); files != "" {
		names = append(names, strings.Split(files, ",")...)
	}
	if targetDir != "" {
		var entries, err = os.ReadDir(filepath.Join(baseDir, targetDir))
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				names = append(names, filepath.Join(targetDir, entry.Name()))
			}
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no input files, use -files or -targetdir")
	}
	var result = make([]string, 0, len(names))
	for _, name := range names {
		result = append(result, filepath.Join(baseDir, mapPath(name)))
	}
	return result, nil
}

func loadEvaluator(params *CommandArgs) (engine.Evaluator, error) {
	var netPath = mapPath(params.GetString("net", ""))
	if netPath == "" {
		return eval.NewEvaluationService(), nil
	}
	var network, err = nnue.Load(netPath)
	if err != nil {
		return nil, err
	}
	return network.ThreadEvaluator(0), nil
}

func mapPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		curUser, err := user.Current()
		if err != nil {
			return path
		}
		return filepath.Join(curUser.HomeDir, strings.TrimPrefix(path, "~/"))
	}
	return path
}
