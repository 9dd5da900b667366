package report

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// SetupSentry initializes the Sentry client. An empty DSN leaves reporting
// disabled; calls to ReportError are then no-ops.
func SetupSentry(dsn, env, version string) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     "bikestreets@" + version,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
