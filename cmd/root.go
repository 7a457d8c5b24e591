package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imishinist/mlflow-observer/internal/config"
	"github.com/imishinist/mlflow-observer/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "mlflow-observer",
	Short: "Track training runs in MLflow",
	Long: `A command line tool that trains models with an observer attached.
The observer logs losses, metrics, sample predictions and the best model to an
MLflow tracking server or to a local offline run directory.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("tracking-uri", "", "MLflow tracking URI (overrides MLFLOW_TRACKING_URI)")
	rootCmd.PersistentFlags().String("experiment-id", "", "Experiment ID (overrides MLFLOW_EXPERIMENT_ID)")
	rootCmd.PersistentFlags().String("run-dir", "", "Local directory for run files (overrides MLFLOW_RUN_DIR)")
	rootCmd.PersistentFlags().String("backend", "", "Tracking backend: mlflow or offline (overrides MLFLOW_BACKEND)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console or json")
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file searched upwards from the working directory")
	viper.BindPFlag("tracking_uri", rootCmd.PersistentFlags().Lookup("tracking-uri"))
	viper.BindPFlag("experiment_id", rootCmd.PersistentFlags().Lookup("experiment-id"))
	viper.BindPFlag("run_dir", rootCmd.PersistentFlags().Lookup("run-dir"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	envFile, _ := rootCmd.PersistentFlags().GetString("env-file")
	if envFile != "" {
		checkError(config.LoadDotEnv(envFile))
	}

	// Environment variables; observer.monitor is read from MLFLOW_OBSERVER_MONITOR
	viper.SetEnvPrefix("MLFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Also bind Databricks environment variables
	viper.BindEnv("databricks_host", "DATABRICKS_HOST")
	viper.BindEnv("databricks_token", "DATABRICKS_TOKEN")

	config.SetDefaults(viper.GetViper())

	logging.Global(viper.GetString("log_level"), viper.GetString("log_format"), os.Stderr)
	log.Debug().Str("backend", viper.GetString("backend")).Msg("configuration loaded")
}

func checkError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
