package parser

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/imishinist/mlflow-observer/internal/learner"
)

// DatasetFile is the on-disk form of a labelled dataset. Valid may be empty.
type DatasetFile struct {
	Train []learner.Item `json:"train" yaml:"train"`
	Valid []learner.Item `json:"valid" yaml:"valid"`
}

// SamplesFile lists explicit prediction samples.
type SamplesFile struct {
	Samples []learner.Item `json:"samples" yaml:"samples"`
}

func ParseJSONDataset(reader io.Reader) (*DatasetFile, error) {
	var data DatasetFile
	decoder := json.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON dataset: %w", err)
	}

	if err := data.check(); err != nil {
		return nil, err
	}

	return &data, nil
}

func ParseJSONSamples(reader io.Reader) ([]learner.Item, error) {
	var data SamplesFile
	decoder := json.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON samples: %w", err)
	}

	if err := checkItems("samples", data.Samples, -1); err != nil {
		return nil, err
	}

	return data.Samples, nil
}
