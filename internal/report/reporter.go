package report

import (
	"os"
	"runtime"

	"github.com/getsentry/sentry-go"
)

// ConfigureScope tags every event with the map viewer's environment,
// release and machine.
func ConfigureScope(env, version string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("env", env)
		scope.SetTag("release", version)
		scope.SetTag("platform", runtime.GOOS+"/"+runtime.GOARCH)
		scope.SetContext("machine", map[string]any{
			"hostname": hostname(),
			"cpus":     runtime.NumCPU(),
			"go":       runtime.Version(),
		})
	})
}

func hostname() string {
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "unknown"
}

// ReportError sends err at the first of levels, or sentry.LevelError.
func ReportError(err error, levels ...sentry.Level) {
	if err == nil {
		return
	}
	level := sentry.LevelError
	if len(levels) > 0 {
		level = levels[0]
	}
	ReportDetailed(err, Details{Level: level})
}

// Details attaches tags and context to one report, e.g. the asset file a
// decode error came from.
type Details struct {
	Tags  map[string]string
	Extra map[string]any
	Level sentry.Level
}

func ReportDetailed(err error, d Details) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(d.Tags)
		if len(d.Extra) > 0 {
			scope.SetContext("details", d.Extra)
		}
		if d.Level != "" {
			scope.SetLevel(d.Level)
		}
		sentry.CaptureException(err)
	})
}
