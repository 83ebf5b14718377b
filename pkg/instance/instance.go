package instance

import "github.com/angelmondragon/archivemint-backend/pkg/env"

// ID names the running process for logs. WORKER_ID wins over the platform's dyno name;
// without either the service kind is suffixed with -local.
func ID(kind string) string {
	if kind == "" {
		kind = "archivemint"
	}
	return env.First(kind+"-local", "WORKER_ID", "DYNO")
}
