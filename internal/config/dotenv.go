package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrFileNotFound = errors.New("file not found")

// SearchUpwardsForFile looks for filename in dir and its parents.
func SearchUpwardsForFile(dir, filename string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(err, "resolve start directory")
	}

	for {
		file := filepath.Join(dir, filename)
		if _, err := os.Stat(file); err == nil {
			return file, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.Wrap(ErrFileNotFound, filename)
		}
		dir = parent
	}
}

// LoadDotEnv loads the nearest .env-style file above the working directory
// into the process environment. Variables that are already set win. A missing
// file is not an error.
func LoadDotEnv(fileName string) error {
	wd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "get working directory")
	}

	file, err := SearchUpwardsForFile(wd, fileName)
	if errors.Is(err, ErrFileNotFound) {
		log.Debug().Str("file", fileName).Msg("no env file found")
		return nil
	}
	if err != nil {
		return err
	}

	if err := godotenv.Load(file); err != nil {
		return errors.Wrapf(err, "invalid env file %s", file)
	}

	log.Debug().Str("file", file).Msg("loaded environment variables")
	return nil
}
