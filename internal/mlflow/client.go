package mlflow

import (
	"fmt"
	"net/http"

	"github.com/databricks/databricks-sdk-go"

	"github.com/imishinist/mlflow-observer/internal/config"
)

type Client struct {
	client *databricks.WorkspaceClient
	config *config.Config
	http   *http.Client
}

func NewClient(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var databricksConfig *databricks.Config

	if cfg.IsDatabricks() {
		databricksConfig = &databricks.Config{}

		// Handle different Databricks URI formats
		if cfg.TrackingURI == "databricks" {
			if cfg.DatabricksHost != "" {
				databricksConfig.Host = cfg.DatabricksHost
			}
		} else if profile := cfg.GetDatabricksProfile(); profile != "" {
			databricksConfig.Profile = profile
		} else {
			databricksConfig.Host = cfg.TrackingURI
		}

		// Token overrides profile
		if cfg.DatabricksToken != "" {
			databricksConfig.Token = cfg.DatabricksToken
		}

		if databricksConfig.Host == "" && databricksConfig.Profile == "" {
			return nil, fmt.Errorf("Databricks host or profile is required when using Databricks MLflow. Set DATABRICKS_HOST environment variable, use a full Databricks URL as tracking URI, or specify a profile with databricks://{profile}")
		}
	} else {
		// Regular MLflow server configuration
		databricksConfig = &databricks.Config{
			Host: cfg.TrackingURI,
			// A plain MLflow server ignores the token but the SDK requires one.
			Token: "dummy-token-for-regular-mlflow",
		}
	}

	client, err := databricks.NewWorkspaceClient(databricksConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create MLflow client: %w", err)
	}

	return &Client{
		client: client,
		config: cfg,
		http:   &http.Client{},
	}, nil
}
