package reporter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/piwi3910/gpustatsd/pkg/gpustats"
)

// LogSink writes each pulled batch to the log. It is the default sink and
// keeps the daemon useful when no metrics backend is wired up.
type LogSink struct {
	Logger zerolog.Logger
}

// Report logs one line per global record.
func (s *LogSink) Report(_ context.Context, batchID string, records []gpustats.GlobalRecord) error {
	for _, rec := range records {
		s.Logger.Info().
			Str("batch_id", batchID).
			Str("driver_package_name", rec.DriverPackageName).
			Str("driver_version_name", rec.DriverVersionName).
			Uint64("driver_version_code", rec.DriverVersionCode).
			Int64("gl_loading_count", rec.GLLoadingCount).
			Int64("gl_loading_failure_count", rec.GLLoadingFailureCount).
			Int64("vk_loading_count", rec.VKLoadingCount).
			Int64("vk_loading_failure_count", rec.VKLoadingFailureCount).
			Msg("Global driver stats")
	}
	return nil
}
