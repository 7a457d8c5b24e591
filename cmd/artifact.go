package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imishinist/mlflow-observer/internal/config"
	"github.com/imishinist/mlflow-observer/internal/mlflow"
	"github.com/imishinist/mlflow-observer/internal/observer"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Log files to MLflow runs",
}

var logArtifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Log artifact to MLflow run",
	Long: `Log a file as an artifact to an MLflow run.
The file will be uploaded with its original filename unless --artifact-path is specified.
With --best-model the best model saved by "train" for the run is uploaded.`,
	Example: `  # Upload a file with its original name
  mlflow-observer log artifact --run-id <run-id> --file model.pkl

  # Upload a file with a custom artifact path
  mlflow-observer log artifact --run-id <run-id> --file model.pkl --artifact-path models/final_model.pkl

  # Upload the best model of the current run
  mlflow-observer log artifact --best-model`,
	RunE: logArtifact,
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logArtifactCmd)

	logArtifactCmd.Flags().String("run-id", "", "Run ID to upload artifacts to (defaults to MLFLOW_RUN_ID)")
	logArtifactCmd.Flags().StringSlice("file", []string{}, "File path to upload (can be specified multiple times)")
	logArtifactCmd.Flags().String("artifact-path", "", "Custom artifact path (only valid when uploading a single file)")
	logArtifactCmd.Flags().Bool("best-model", false, "Upload "+observer.BestModelFile+" from the run directory")
}

func logArtifact(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	client, err := mlflow.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MLflow client: %w", err)
	}

	runID, _ := cmd.Flags().GetString("run-id")
	files, _ := cmd.Flags().GetStringSlice("file")
	artifactPath, _ := cmd.Flags().GetString("artifact-path")
	bestModel, _ := cmd.Flags().GetBool("best-model")

	if runID == "" {
		runID = cfg.RunID
	}
	if runID == "" {
		return fmt.Errorf("run ID must be specified via --run-id flag or MLFLOW_RUN_ID environment variable")
	}

	if bestModel {
		files = append(files, filepath.Join(cfg.RunDir, runID, "files", observer.BestModelFile))
	}

	if len(files) == 0 {
		return fmt.Errorf("at least one file must be specified")
	}

	if len(files) > 1 && artifactPath != "" {
		return fmt.Errorf("--artifact-path can only be used when uploading a single file")
	}

	ctx := context.Background()
	successCount := 0

	for _, filePath := range files {
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "File not found: %s\n", filePath)
			continue
		}

		targetPath := artifactPath
		if targetPath == "" {
			targetPath = filepath.Base(filePath)
		}

		if err := client.UploadArtifact(ctx, runID, filePath, targetPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to upload %s: %v\n", filePath, err)
			continue
		}
		successCount++
		fmt.Printf("Uploaded %s as %s\n", filePath, targetPath)
	}

	if successCount == 0 {
		return fmt.Errorf("failed to upload any artifacts")
	}

	if len(files) > 1 {
		fmt.Printf("Successfully uploaded %d/%d artifacts\n", successCount, len(files))
	}

	return nil
}
