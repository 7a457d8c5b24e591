package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Databricks domain suffixes for URL detection
var databricksDomains = []string{
	".cloud.databricks.com",
	".azuredatabricks.net",
	".gcp.databricks.com",
}

// Tracking backends
const (
	BackendMLflow  = "mlflow"
	BackendOffline = "offline"
)

var validate = validator.New()

type Config struct {
	TrackingURI     string
	ExperimentID    string
	RunID           string
	RunDir          string `validate:"required"`
	Backend         string `validate:"oneof=mlflow offline"`
	DatabricksHost  string
	DatabricksToken string
	LogLevel        string
	LogFormat       string `validate:"omitempty,oneof=console json"`

	Observer ObserverSettings
}

// ObserverSettings configures the training observer.
type ObserverSettings struct {
	Monitor     string `validate:"required"`
	Mode        string `validate:"oneof=auto min max"`
	SaveModel   bool
	DataType    string `validate:"oneof=images none"`
	Predictions int    `validate:"gte=0"`
	Log         string `validate:"oneof=none gradients parameters all"`
	Seed        int64
	SamplesFile string
}

func New() *Config {
	return &Config{
		TrackingURI:     viper.GetString("tracking_uri"),
		ExperimentID:    viper.GetString("experiment_id"),
		RunID:           viper.GetString("run_id"),
		RunDir:          viper.GetString("run_dir"),
		Backend:         viper.GetString("backend"),
		DatabricksHost:  viper.GetString("databricks_host"),
		DatabricksToken: viper.GetString("databricks_token"),
		LogLevel:        viper.GetString("log_level"),
		LogFormat:       viper.GetString("log_format"),
		Observer: ObserverSettings{
			Monitor:     viper.GetString("observer.monitor"),
			Mode:        viper.GetString("observer.mode"),
			SaveModel:   viper.GetBool("observer.save_model"),
			DataType:    viper.GetString("observer.data_type"),
			Predictions: viper.GetInt("observer.predictions"),
			Log:         viper.GetString("observer.log"),
			Seed:        viper.GetInt64("observer.seed"),
			SamplesFile: viper.GetString("observer.samples_file"),
		},
	}
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tracking_uri", "http://localhost:5000")
	v.SetDefault("run_dir", "mlruns-local")
	v.SetDefault("backend", BackendMLflow)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("observer.monitor", "valid_loss")
	v.SetDefault("observer.mode", "auto")
	v.SetDefault("observer.save_model", false)
	v.SetDefault("observer.data_type", "images")
	v.SetDefault("observer.predictions", 32)
	v.SetDefault("observer.log", "none")
}

func (c *Config) Validate() error {
	if c.Backend == BackendMLflow && c.TrackingURI == "" {
		return fmt.Errorf("tracking URI is required")
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// IsDatabricks checks if the tracking URI points to Databricks
func (c *Config) IsDatabricks() bool {
	if c.TrackingURI == "databricks" {
		return true
	}

	// Check for databricks:// protocol
	if strings.HasPrefix(c.TrackingURI, "databricks://") {
		return true
	}

	// Check for Databricks URLs
	if strings.HasPrefix(c.TrackingURI, "https://") {
		host := c.extractHostFromURL(c.TrackingURI)
		return c.isDatabricksHost(host)
	}

	return false
}

// extractHostFromURL extracts the hostname from a URL
func (c *Config) extractHostFromURL(url string) string {
	host := strings.TrimPrefix(url, "https://")
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// isDatabricksHost checks if a hostname belongs to Databricks
func (c *Config) isDatabricksHost(host string) bool {
	for _, domain := range databricksDomains {
		if strings.HasSuffix(host, domain) {
			return true
		}
	}
	return false
}

// GetDatabricksProfile extracts the profile name from databricks://{profile} URI
func (c *Config) GetDatabricksProfile() string {
	if !strings.HasPrefix(c.TrackingURI, "databricks://") {
		return ""
	}

	profile := strings.TrimPrefix(c.TrackingURI, "databricks://")
	if idx := strings.Index(profile, "/"); idx != -1 {
		profile = profile[:idx]
	}
	return profile
}
