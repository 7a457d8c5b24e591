package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/imishinist/mlflow-observer/internal/learner"
)

// LoadDataset reads a .json, .yaml or .yml dataset file.
func LoadDataset(path string) (*DatasetFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return ParseJSONDataset(file)
	case ".yaml", ".yml":
		return ParseYAMLDataset(file)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .json, .yaml, .yml)", ext)
	}
}

// LoadSamples reads a .json, .yaml or .yml samples file.
func LoadSamples(path string) ([]learner.Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return ParseJSONSamples(file)
	case ".yaml", ".yml":
		return ParseYAMLSamples(file)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .json, .yaml, .yml)", ext)
	}
}

func (d *DatasetFile) check() error {
	if len(d.Train) == 0 {
		return fmt.Errorf("dataset has no training items")
	}
	width := len(d.Train[0].X.Data)
	if err := checkItems("train", d.Train, width); err != nil {
		return err
	}
	return checkItems("valid", d.Valid, width)
}

// checkItems verifies that every item has width values (any width if
// negative) and that the shape, when given, matches the data.
func checkItems(set string, items []learner.Item, width int) error {
	for i, it := range items {
		if width >= 0 && len(it.X.Data) != width {
			return fmt.Errorf("%s item %d has %d values, expected %d", set, i, len(it.X.Data), width)
		}
		if len(it.X.Shape) == 0 {
			continue
		}
		n := 1
		for _, d := range it.X.Shape {
			n *= d
		}
		if n != len(it.X.Data) {
			return fmt.Errorf("%s item %d: shape %v does not match %d values", set, i, it.X.Shape, len(it.X.Data))
		}
	}
	return nil
}
