package config

import (
	"fmt"
	"slices"
	"strings"
)

// configVersions are the configVersion values this build reads.
var configVersions = []string{"1"}

func checkConfigVersion(v string) error {
	if slices.Contains(configVersions, v) {
		return nil
	}
	return fmt.Errorf("unsupported configVersion: %q (supported: %s)", v, strings.Join(configVersions, ", "))
}
