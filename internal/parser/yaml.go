package parser

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/imishinist/mlflow-observer/internal/learner"
)

func ParseYAMLDataset(reader io.Reader) (*DatasetFile, error) {
	var data DatasetFile
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML dataset: %w", err)
	}

	if err := data.check(); err != nil {
		return nil, err
	}

	return &data, nil
}

func ParseYAMLSamples(reader io.Reader) ([]learner.Item, error) {
	var data SamplesFile
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML samples: %w", err)
	}

	if err := checkItems("samples", data.Samples, -1); err != nil {
		return nil, err
	}

	return data.Samples, nil
}
