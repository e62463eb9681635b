package main

import (
	"flag"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"noisydqn/cartpole"
	"noisydqn/game"
	"noisydqn/qlearning"
	"noisydqn/stats"
	"noisydqn/train"
	"noisydqn/ui"
)

// options raccoglie i flag della riga di comando.
type options struct {
	env          string
	algo         string
	grid         int
	memory       int
	warmup       int
	evalEpisodes int
	saveEvery    int
	noise        string
	loss         string
	optimizer    string
	lr           float64
	hidden       string
	dataDir      string
	load         string
	train        train.Config
}

func parseFlags() options {
	cfg := train.DefaultConfig()
	var o options

	flag.StringVar(&o.env, "env", "snake", "Environment: snake or cartpole")
	flag.StringVar(&o.algo, "algo", "dqn", "Training algorithm: dqn or ppo")
	flag.IntVar(&o.grid, "grid", 10, "Snake grid size")
	flag.IntVar(&cfg.NFrames, "frames", cfg.NFrames, "Total training frames")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Minibatch size")
	flag.IntVar(&o.memory, "memory", 100000, "Replay memory capacity")
	flag.IntVar(&o.warmup, "warmup", 1000, "Random transitions stored before training")
	flag.Float64Var(&cfg.DiscountFactor, "gamma", cfg.DiscountFactor, "Discount factor")
	flag.IntVar(&cfg.SyncEvery, "sync", cfg.SyncEvery, "Target network sync interval (frames)")
	flag.IntVar(&cfg.AdaptEvery, "adapt", cfg.AdaptEvery, "Adaptive noise interval (frames)")
	flag.IntVar(&cfg.EvalEvery, "eval-every", cfg.EvalEvery, "Frames between evaluations")
	flag.IntVar(&o.evalEpisodes, "eval-episodes", 5, "Greedy episodes per evaluation")
	flag.StringVar(&o.noise, "noise", "off", "Exploration noise: off, learned or adaptive")
	flag.StringVar(&o.loss, "loss", "huber", "Loss: huber or mse")
	flag.StringVar(&o.optimizer, "optimizer", "adam", "Optimizer: adam, rmsprop or sgd")
	flag.Float64Var(&o.lr, "lr", 1e-4, "Learning rate")
	flag.StringVar(&o.hidden, "hidden", "64,64", "Hidden layer sizes")
	flag.Float64Var(&cfg.EpsilonStart, "eps-start", cfg.EpsilonStart, "Initial epsilon (noise off)")
	flag.Float64Var(&cfg.EpsilonEnd, "eps-end", cfg.EpsilonEnd, "Final epsilon (noise off)")
	flag.IntVar(&cfg.EpsilonFrames, "eps-frames", cfg.EpsilonFrames, "Epsilon decay frames")
	seed := flag.Uint64("seed", cfg.Seed, "Random seed")
	flag.StringVar(&o.dataDir, "data", "data", "Data directory")
	flag.StringVar(&o.load, "load", "", "Weights file to start from")
	flag.IntVar(&o.saveEvery, "save-every", 50, "Episodes between checkpoints")
	flag.Parse()

	cfg.Seed = *seed
	o.train = cfg
	return o
}

func parseHidden(s string) ([]int, error) {
	var sizes []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n <= 0 {
			return nil, errors.Errorf("invalid hidden layer size %q", field)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

func newEnvironment(o options) (train.Environment, int, int, error) {
	switch o.env {
	case "snake":
		g, err := game.NewGame(o.grid, o.grid, o.train.Seed)
		if err != nil {
			return nil, 0, 0, err
		}
		return g, game.NumFeatures, game.NumActions, nil
	case "cartpole":
		return cartpole.NewEnv(o.train.Seed), cartpole.NumFeatures, 2, nil
	default:
		return nil, 0, 0, errors.Errorf("unknown environment %q", o.env)
	}
}

func main() {
	o := parseFlags()
	if err := run(o); err != nil {
		log.Fatal(err)
	}
}

func run(o options) error {
	noise, err := qlearning.ParseNoiseMode(o.noise)
	if err != nil {
		return err
	}
	o.train.Noise = noise
	loss, err := qlearning.ParseCriterion(o.loss)
	if err != nil {
		return err
	}
	hidden, err := parseHidden(o.hidden)
	if err != nil {
		return err
	}

	env, inputs, outputs, err := newEnvironment(o)
	if err != nil {
		return err
	}

	netCfg := qlearning.DefaultConfig(inputs, outputs, o.train.BatchSize)
	netCfg.Hidden = hidden
	netCfg.Noise = noise
	netCfg.Loss = loss
	netCfg.Seed = o.train.Seed
	model, err := qlearning.NewNetwork(netCfg)
	if err != nil {
		return errors.Wrap(err, "model")
	}
	if o.load != "" {
		if err := model.LoadWeights(o.load); err != nil {
			return err
		}
		log.Printf("Loaded weights from %s", o.load)
	}
	netCfg.Seed = o.train.Seed + 1
	target, err := qlearning.NewNetwork(netCfg)
	if err != nil {
		return errors.Wrap(err, "target model")
	}
	if err := target.LoadStateDict(model.StateDict()); err != nil {
		return err
	}

	solver, err := qlearning.NewSolver(o.optimizer, o.lr)
	if err != nil {
		return err
	}
	opt := qlearning.NewOptimizer(model, solver)

	memory, err := qlearning.NewReplayMemory(o.memory, o.train.Seed+2)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	runDir := filepath.Join(o.dataDir, "runs", runID)
	weightsFile := filepath.Join(runDir, "weights.gob")
	historyFile := filepath.Join(runDir, stats.FileName)
	plotFile := filepath.Join(runDir, stats.PlotFileName)
	history := stats.NewHistory(stats.GroupSize)
	log.Printf("Run %s: env=%s algo=%s noise=%s frames=%d", runID, o.env, o.algo, noise, o.train.NFrames)

	r, err := train.NewRun(o.train, memory, ui.NewBar(o.train.NFrames, nil))
	if err != nil {
		return err
	}

	if o.algo == "ppo" {
		return train.TrainPPO(env, model, opt, qlearning.MSE, qlearning.MSE, r)
	}
	if o.algo != "dqn" {
		return errors.Errorf("unknown algorithm %q", o.algo)
	}

	warmup := o.warmup
	if warmup < o.train.BatchSize {
		warmup = o.train.BatchSize
	}
	if err := train.Warmup(env, memory, warmup, rand.New(rand.NewSource(o.train.Seed+3))); err != nil {
		return err
	}

	start := time.Now()
	var lastEval float64
	for episode := 1; !r.Done(); episode++ {
		episodeStart := time.Now()
		startFrame := r.CurrentFrame
		lossSum := r.Losses.Sum
		if err := train.TrainDQN(env, model, target, opt, r); err != nil {
			return err
		}

		if r.TestTime {
			lastEval, err = train.Evaluate(env, model, o.evalEpisodes, 0)
			if err != nil {
				return err
			}
			r.TestTime = false
			r.EvalStart = r.CurrentFrame
			log.Printf("Frame %d: eval return %.3f", r.CurrentFrame, lastEval)
		}

		frames := r.CurrentFrame - startFrame
		history.Add(stats.Episode{
			StartTime:  episodeStart,
			EndTime:    time.Now(),
			StartFrame: startFrame,
			EndFrame:   r.CurrentFrame,
			Return:     r.Returns.Val,
			MeanLoss:   (r.Losses.Sum - lossSum) / float64(frames),
			EvalReturn: lastEval,
		})

		if o.saveEvery > 0 && episode%o.saveEvery == 0 {
			if err := checkpoint(model, history, weightsFile, historyFile); err != nil {
				return err
			}
			log.Println(ui.Summary(history, time.Since(start)))
		}
	}

	if err := checkpoint(model, history, weightsFile, historyFile); err != nil {
		return err
	}
	if err := history.SavePlot(plotFile); err != nil {
		log.Printf("Plot not saved: %v", err)
	}
	log.Println(ui.Summary(history, time.Since(start)))
	return nil
}

func checkpoint(model *qlearning.Network, history *stats.History, weightsFile, historyFile string) error {
	if err := model.SaveWeights(weightsFile); err != nil {
		return err
	}
	return history.SaveToFile(historyFile)
}
