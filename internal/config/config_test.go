package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		TrackingURI: "http://localhost:5000",
		RunDir:      "mlruns-local",
		Backend:     BackendMLflow,
		LogFormat:   "console",
		Observer: ObserverSettings{
			Monitor:     "valid_loss",
			Mode:        "auto",
			DataType:    "images",
			Predictions: 32,
			Log:         "none",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "missing tracking uri", modify: func(c *Config) { c.TrackingURI = "" }, wantErr: true},
		{name: "offline without tracking uri", modify: func(c *Config) {
			c.Backend = BackendOffline
			c.TrackingURI = ""
		}},
		{name: "unknown backend", modify: func(c *Config) { c.Backend = "wandb" }, wantErr: true},
		{name: "missing run dir", modify: func(c *Config) { c.RunDir = "" }, wantErr: true},
		{name: "bad log format", modify: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "bad mode", modify: func(c *Config) { c.Observer.Mode = "up" }, wantErr: true},
		{name: "missing monitor", modify: func(c *Config) { c.Observer.Monitor = "" }, wantErr: true},
		{name: "negative predictions", modify: func(c *Config) { c.Observer.Predictions = -1 }, wantErr: true},
		{name: "bad data type", modify: func(c *Config) { c.Observer.DataType = "audio" }, wantErr: true},
		{name: "bad granularity", modify: func(c *Config) { c.Observer.Log = "weights" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	assert.Equal(t, "valid_loss", v.GetString("observer.monitor"))
	assert.Equal(t, "auto", v.GetString("observer.mode"))
	assert.Equal(t, 32, v.GetInt("observer.predictions"))
	assert.Equal(t, BackendMLflow, v.GetString("backend"))
}

func TestNew_DefaultsAreValid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults(viper.GetViper())

	c := New()
	require.NoError(t, c.Validate())
	assert.Equal(t, "mlruns-local", c.RunDir)
	assert.False(t, c.Observer.SaveModel)
}

func TestIsDatabricks(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{uri: "databricks", want: true},
		{uri: "databricks://dev", want: true},
		{uri: "https://adb-123.4.azuredatabricks.net", want: true},
		{uri: "https://dbc-1.cloud.databricks.com/ml", want: true},
		{uri: "https://mlflow.example.com", want: false},
		{uri: "http://localhost:5000", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			c := &Config{TrackingURI: tt.uri}
			assert.Equal(t, tt.want, c.IsDatabricks())
		})
	}
}

func TestGetDatabricksProfile(t *testing.T) {
	assert.Equal(t, "dev", (&Config{TrackingURI: "databricks://dev"}).GetDatabricksProfile())
	assert.Equal(t, "dev", (&Config{TrackingURI: "databricks://dev/extra"}).GetDatabricksProfile())
	assert.Equal(t, "", (&Config{TrackingURI: "databricks"}).GetDatabricksProfile())
}
