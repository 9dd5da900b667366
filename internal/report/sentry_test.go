package report_test

import (
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"

	"bikestreets/internal/report"
)

func TestSetupSentry(t *testing.T) {
	t.Run("Valid DSN", func(t *testing.T) {
		if err := report.SetupSentry("https://public@sentry.example.com/1", "testing", "0.0.0"); err != nil {
			t.Fatalf("SetupSentry failed: %v", err)
		}
		report.ConfigureScope("testing", "0.0.0")
		report.FlushSentry()
	})

	t.Run("Invalid DSN", func(t *testing.T) {
		if err := report.SetupSentry("not a dsn", "testing", "0.0.0"); err == nil {
			t.Fatal("expected error for invalid DSN")
		}
	})
}

func TestReportErrorNil(t *testing.T) {
	report.ReportError(nil)
	report.ReportDetailed(nil, report.Details{})
}

func TestReportErrorWithoutClient(t *testing.T) {
	if err := report.SetupSentry("", "testing", "0.0.0"); err != nil {
		t.Fatalf("SetupSentry with empty DSN failed: %v", err)
	}
	report.ReportError(errors.New("boom"), sentry.LevelWarning)
	report.ReportDetailed(errors.New("boom"), report.Details{
		Tags:  map[string]string{"file": "x.geojson"},
		Extra: map[string]any{"k": 1},
		Level: sentry.LevelError,
	})
}
