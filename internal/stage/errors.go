package stage

import (
	"errors"

	"github.com/flarebyte/timewarp/internal/config"
)

// RecError is a per-record error payload.
type RecError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

var errMissingSettings = errors.New("missing settings")

func settingsOf(meta *Meta) (*config.Settings, error) {
	if meta == nil || meta.Settings == nil {
		return nil, errMissingSettings
	}
	return meta.Settings, nil
}

func keepGoing(meta *Meta) bool {
	return meta != nil && meta.Settings != nil && meta.Settings.KeepGoing()
}
