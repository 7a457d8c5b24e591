package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imishinist/mlflow-observer/internal/config"
	"github.com/imishinist/mlflow-observer/internal/learner"
	"github.com/imishinist/mlflow-observer/internal/mlflow"
	"github.com/imishinist/mlflow-observer/internal/models"
	"github.com/imishinist/mlflow-observer/internal/observer"
	"github.com/imishinist/mlflow-observer/internal/offline"
	"github.com/imishinist/mlflow-observer/internal/parser"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a classifier with the observer attached",
	Long: `Train a softmax classifier on a labelled dataset file (JSON/YAML) and log
losses, metrics and sample predictions after every epoch.
With the mlflow backend the run given by MLFLOW_RUN_ID is used; it must have
been started beforehand. The offline backend starts its own run under --run-dir.`,
	Example: `  # Log to an MLflow run started with "run start"
  mlflow-observer train --data digits.yaml --epochs 10 --save-model

  # Train without a tracking server
  mlflow-observer train --backend offline --data digits.json --monitor accuracy`,
	RunE: train,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("data", "", "Dataset file with train and valid items (required)")
	trainCmd.Flags().Int("epochs", 5, "Number of epochs")
	trainCmd.Flags().Float64("lr", 0.1, "Learning rate")
	trainCmd.Flags().String("run-id", "", "MLflow run to log to (overrides MLFLOW_RUN_ID)")
	trainCmd.Flags().String("run-name", "", "Run name for the offline backend")
	trainCmd.Flags().String("metrics-file", "", "Write observer counters in Prometheus text format to this file")
	trainCmd.MarkFlagRequired("data")

	// Observer flags
	trainCmd.Flags().String("monitor", "", "Metric that decides the best model")
	trainCmd.Flags().String("mode", "", "Comparison mode: auto, min or max")
	trainCmd.Flags().Bool("save-model", false, "Save the best model and restore it when training ends")
	trainCmd.Flags().String("data-type", "", "Prediction samples to log: images or none")
	trainCmd.Flags().Int("predictions", 0, "Number of random validation samples to predict each epoch")
	trainCmd.Flags().String("log", "", "Model detail to log: none, gradients, parameters or all")
	trainCmd.Flags().Int64("seed", 0, "Random seed (0 picks one from the clock)")
	trainCmd.Flags().String("samples-file", "", "Explicit prediction samples (JSON/YAML)")
	viper.BindPFlag("run_id", trainCmd.Flags().Lookup("run-id"))
	viper.BindPFlag("observer.monitor", trainCmd.Flags().Lookup("monitor"))
	viper.BindPFlag("observer.mode", trainCmd.Flags().Lookup("mode"))
	viper.BindPFlag("observer.save_model", trainCmd.Flags().Lookup("save-model"))
	viper.BindPFlag("observer.data_type", trainCmd.Flags().Lookup("data-type"))
	viper.BindPFlag("observer.predictions", trainCmd.Flags().Lookup("predictions"))
	viper.BindPFlag("observer.log", trainCmd.Flags().Lookup("log"))
	viper.BindPFlag("observer.seed", trainCmd.Flags().Lookup("seed"))
	viper.BindPFlag("observer.samples_file", trainCmd.Flags().Lookup("samples-file"))
}

// trackingBackend is an observer.Backend plus what train does after fitting.
type trackingBackend interface {
	observer.Backend
	finish(ctx context.Context, trainErr error, bestModel string) error
}

type mlflowBackend struct {
	*mlflow.Backend
}

func (b mlflowBackend) finish(ctx context.Context, trainErr error, bestModel string) error {
	if trainErr != nil || bestModel == "" {
		return nil
	}
	if err := b.UploadFile(ctx, observer.BestModelFile); err != nil {
		return fmt.Errorf("failed to upload best model: %w", err)
	}
	return nil
}

type offlineBackend struct {
	*offline.Backend
}

func (b offlineBackend) finish(ctx context.Context, trainErr error, bestModel string) error {
	status := models.RunStatusFinished
	if trainErr != nil {
		status = models.RunStatusFailed
	}
	return b.Finish(status)
}

func train(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		return err
	}

	dataPath, _ := cmd.Flags().GetString("data")
	epochs, _ := cmd.Flags().GetInt("epochs")
	lr, _ := cmd.Flags().GetFloat64("lr")
	runName, _ := cmd.Flags().GetString("run-name")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	seed := cfg.Observer.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dataset, err := parser.LoadDataset(dataPath)
	if err != nil {
		return err
	}
	session, err := learner.NewSession(dataset.Train, dataset.Valid, float32(lr), seed)
	if err != nil {
		return err
	}

	backend, err := openBackend(ctx, cfg, runName)
	if err != nil {
		return err
	}

	obsCfg, err := observerConfig(cfg.Observer)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	obs, err := observer.New(session, backend, obsCfg,
		observer.WithLogger(log.Logger),
		observer.WithRand(rand.New(rand.NewSource(seed))),
		observer.WithStats(observer.NewStats(reg)),
	)
	if err != nil {
		return err
	}

	run, _ := backend.ActiveRun()
	log.Info().
		Str("run_id", run.RunID).
		Int("epochs", epochs).
		Int("train", len(dataset.Train)).
		Int("valid", len(dataset.Valid)).
		Str("mode", string(obs.Mode())).
		Msg("training started")

	trainErr := learner.Fit(ctx, session, epochs, obs)

	bestModel := ""
	if _, err := os.Stat(obs.ModelPath()); err == nil {
		bestModel = obs.ModelPath()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := backend.finish(ctx, trainErr, bestModel); err != nil {
		return err
	}
	if trainErr != nil {
		return trainErr
	}

	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}

	fmt.Printf("Run ID: %s\n", run.RunID)
	fmt.Printf("Run directory: %s\n", run.Dir)
	if bestModel != "" {
		fmt.Printf("Best %s: %v (%s)\n", obsCfg.Monitor, obs.Best(), filepath.Base(bestModel))
	}
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, runName string) (trackingBackend, error) {
	switch cfg.Backend {
	case config.BackendOffline:
		b, err := offline.Start(cfg.RunDir, runName, log.Logger)
		if err != nil {
			return nil, err
		}
		return offlineBackend{b}, nil
	default:
		client, err := mlflow.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create MLflow client: %w", err)
		}
		b, err := mlflow.NewBackend(ctx, client, cfg.RunID, cfg.RunDir, log.Logger)
		if err != nil {
			return nil, err
		}
		return mlflowBackend{b}, nil
	}
}

func observerConfig(s config.ObserverSettings) (observer.Config, error) {
	g, err := models.ParseGranularity(s.Log)
	if err != nil {
		return observer.Config{}, err
	}

	cfg := observer.Config{
		Monitor:     s.Monitor,
		Mode:        observer.Mode(s.Mode),
		SaveModel:   s.SaveModel,
		DataType:    observer.DataType(s.DataType),
		Predictions: s.Predictions,
		Log:         g,
	}
	if s.SamplesFile != "" {
		cfg.Samples, err = parser.LoadSamples(s.SamplesFile)
		if err != nil {
			return observer.Config{}, err
		}
	}
	return cfg, nil
}
