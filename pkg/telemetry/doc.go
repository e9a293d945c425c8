// Package telemetry provides observability instrumentation for gpustatsd.
//
// It wires structured logging (zerolog), operation tracing (OpenTelemetry)
// and Prometheus metrics into a single unit created at startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.New(cfg)
//	if err != nil {
//	    log.Fatal().Err(err).Msg("telemetry init failed")
//	}
//	defer tel.Shutdown(context.Background())
//
// Metrics implements the store's instrumentation interface, so a store
// built with it reports insert outcomes, drop reasons, pull sizes and
// table gauges without importing Prometheus itself.
package telemetry
