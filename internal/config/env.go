package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// EnvAuthToken names the variable holding the store bearer token.
const EnvAuthToken = "TIMEWARP_AUTH_TOKEN"

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

// LoadEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing default file
// is not an error; a missing explicit file is.
func LoadEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv fills settings that the environment provides and s leaves empty.
func ApplyEnv(s *Settings) {
	if s.AuthToken == "" {
		s.AuthToken = os.Getenv(EnvAuthToken)
	}
}
