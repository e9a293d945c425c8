package gpustats

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxAppRecords is the app table capacity used when Options does not
// override it.
const DefaultMaxAppRecords = 100

// Dump argument flags.
const (
	FlagGlobal = "--global"
	FlagApp    = "--app"
	FlagClear  = "--clear"
)

// Options configures a Store.
type Options struct {
	// MaxAppRecords caps the number of distinct (app, version) entries in
	// the app table. Zero means DefaultMaxAppRecords.
	MaxAppRecords int

	// Logger receives store instrumentation. Dropped events are logged at
	// trace level only; they are policy, not errors.
	Logger zerolog.Logger

	// Metrics receives store counters. Nil means NopMetrics.
	Metrics Metrics

	// Tracer emits a span per public operation. Nil uses the global
	// tracer provider.
	Tracer trace.Tracer
}

// Store accumulates GPU driver loading statistics in two tables: global
// loading counters keyed by driver version code and per-app loading time
// samples keyed by (app package, version code).
//
// A single exclusive lock serializes every operation on both tables. All
// work under the lock is short and CPU-only. The store never returns
// errors: malformed input is dropped, never propagated, so recording
// telemetry can never break the caller.
type Store struct {
	mu      sync.Mutex
	global  map[uint64]*GlobalRecord
	apps    map[string]*AppRecord
	maxApps int

	logger  zerolog.Logger
	metrics Metrics
	tracer  trace.Tracer
}

// New creates an empty store.
func New(opts Options) *Store {
	maxApps := opts.MaxAppRecords
	if maxApps <= 0 {
		maxApps = DefaultMaxAppRecords
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("gpustats")
	}

	return &Store{
		global:  make(map[uint64]*GlobalRecord),
		apps:    make(map[string]*AppRecord),
		maxApps: maxApps,
		logger:  opts.Logger.With().Str("component", "gpustats").Logger(),
		metrics: metrics,
		tracer:  tracer,
	}
}

// SetMaxAppRecords adjusts the app table capacity at runtime. Lowering it
// below the current table size keeps existing entries; only new keys are
// refused until the table shrinks through a clear.
func (s *Store) SetMaxAppRecords(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxApps = n
}

// Insert records one driver loading occurrence. Events for unsupported
// driver variants are dropped without touching either table. New app table
// keys are dropped once the table is at capacity; existing keys still
// accumulate samples.
func (s *Store) Insert(ctx context.Context, args InsertArgs) {
	_, span := s.tracer.Start(ctx, "gpustats.insert",
		trace.WithAttributes(attribute.String("driver", string(args.Driver))))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Trace().
		Str("driver_package_name", args.DriverPackageName).
		Str("driver_version_name", args.DriverVersionName).
		Uint64("driver_version_code", args.DriverVersionCode).
		Int64("driver_build_time", args.DriverBuildTime).
		Str("app_package_name", args.AppPackageName).
		Str("driver", string(args.Driver)).
		Bool("is_driver_loaded", args.IsDriverLoaded).
		Int64("driver_loading_time", args.DriverLoadingTime).
		Msg("Received driver loading event")

	family, ok := args.Driver.Family()
	if !ok {
		s.logger.Trace().Str("driver", string(args.Driver)).Msg("Unsupported driver variant, event dropped")
		s.metrics.RecordRejected(RejectUnsupportedDriver)
		return
	}

	rec, exists := s.global[args.DriverVersionCode]
	if !exists {
		rec = &GlobalRecord{
			DriverPackageName: args.DriverPackageName,
			DriverVersionName: args.DriverVersionName,
			DriverVersionCode: args.DriverVersionCode,
			DriverBuildTime:   args.DriverBuildTime,
		}
		s.global[args.DriverVersionCode] = rec
	}
	rec.addLoadingCount(family, args.IsDriverLoaded)
	s.metrics.RecordInsert(string(family), args.IsDriverLoaded, args.DriverLoadingTime)

	key := appKey(args.AppPackageName, args.DriverVersionCode)
	app, exists := s.apps[key]
	if !exists {
		if len(s.apps) >= s.maxApps {
			s.logger.Trace().
				Str("app_package_name", args.AppPackageName).
				Int("max_app_records", s.maxApps).
				Msg("App table at capacity, sample dropped")
			s.metrics.RecordRejected(RejectAppTableFull)
			s.metrics.SetTableSizes(len(s.global), len(s.apps))
			return
		}
		app = &AppRecord{
			AppPackageName:    args.AppPackageName,
			DriverVersionCode: args.DriverVersionCode,
		}
		s.apps[key] = app
	}
	app.addLoadingTime(family, args.DriverLoadingTime)
	s.metrics.SetTableSizes(len(s.global), len(s.apps))
}

// Dump renders the selected tables as a diagnostic report, one record per
// line, global section before app section. Without a selector flag both
// sections are included. With FlagClear the selected tables (both when no
// selector is present) are reset after the report text is produced.
func (s *Store) Dump(ctx context.Context, args []string) string {
	_, span := s.tracer.Start(ctx, "gpustats.dump")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	argSet := make(map[string]struct{}, len(args))
	for _, a := range args {
		argSet[a] = struct{}{}
	}
	_, dumpGlobal := argSet[FlagGlobal]
	_, dumpApp := argSet[FlagApp]
	_, clearAfter := argSet[FlagClear]
	all := !dumpGlobal && !dumpApp

	var sb strings.Builder
	if all || dumpGlobal {
		s.dumpGlobalLocked(&sb)
		s.metrics.RecordDump(SectionGlobal)
	}
	if all || dumpApp {
		s.dumpAppLocked(&sb)
		s.metrics.RecordDump(SectionApp)
	}

	if clearAfter {
		s.clearLocked(all || dumpGlobal, all || dumpApp)
	}

	return sb.String()
}

// WriteDump writes the dump report to w. A nil destination is logged at
// error level and the operation does no work, including any clear the args
// request.
func (s *Store) WriteDump(ctx context.Context, w io.Writer, args []string) {
	if w == nil {
		s.logger.Error().Msg("Dump destination must not be nil")
		return
	}
	if _, err := io.WriteString(w, s.Dump(ctx, args)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write dump report")
	}
}

// dumpGlobalLocked appends the global table to sb sorted by version code.
func (s *Store) dumpGlobalLocked(sb *strings.Builder) {
	codes := make([]uint64, 0, len(s.global))
	for code := range s.global {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for _, code := range codes {
		sb.WriteString(s.global[code].String())
		sb.WriteString("\n")
	}
}

// dumpAppLocked appends the app table to sb sorted by composite key.
func (s *Store) dumpAppLocked(sb *strings.Builder) {
	keys := make([]string, 0, len(s.apps))
	for key := range s.apps {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString(s.apps[key].String())
		sb.WriteString("\n")
	}
}

// PullGlobalStats returns a copy of every global record, sorted by version
// code, and empties the global table. The app table is untouched. The
// caller owns cumulative aggregation across pulls.
func (s *Store) PullGlobalStats(ctx context.Context) []GlobalRecord {
	_, span := s.tracer.Start(ctx, "gpustats.pull_global_stats")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]GlobalRecord, 0, len(s.global))
	for _, rec := range s.global {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverVersionCode < out[j].DriverVersionCode })

	s.global = make(map[uint64]*GlobalRecord)
	s.metrics.RecordPull(len(out))
	s.metrics.SetTableSizes(0, len(s.apps))

	span.SetAttributes(attribute.Int("records", len(out)))
	return out
}

// Clear resets the selected tables.
func (s *Store) Clear(global, app bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(global, app)
}

func (s *Store) clearLocked(global, app bool) {
	if global {
		s.global = make(map[uint64]*GlobalRecord)
	}
	if app {
		s.apps = make(map[string]*AppRecord)
	}
	s.metrics.SetTableSizes(len(s.global), len(s.apps))
	s.logger.Debug().Bool("global", global).Bool("app", app).Msg("Tables cleared")
}

// Sizes returns the current number of records in each table.
func (s *Store) Sizes() (global, app int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.global), len(s.apps)
}
