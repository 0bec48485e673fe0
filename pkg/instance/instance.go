package instance

import (
	"os"

	"github.com/angelmondragon/sellerhub-backend/pkg/env"
)

const defaultID = "local"

// GetID identifies the running process in logs. It prefers an explicit
// SELLERHUB_INSTANCE_ID, then the platform dyno name, then the hostname.
func GetID() string {
	if id := env.First("SELLERHUB_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
