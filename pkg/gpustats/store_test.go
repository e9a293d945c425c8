package gpustats

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// newTestStore creates a store with default capacity and silent telemetry.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(Options{})
}

// glEvent builds a baseline OpenGL loading event for tests.
func glEvent() InsertArgs {
	return InsertArgs{
		DriverPackageName: "com.vendor.gfx",
		DriverVersionName: "1.0",
		DriverVersionCode: 5,
		DriverBuildTime:   1000,
		AppPackageName:    "com.foo",
		Driver:            DriverGL,
		IsDriverLoaded:    true,
		DriverLoadingTime: 12,
	}
}

func TestInsertAggregatesCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := glEvent()
	store.Insert(ctx, first)

	second := glEvent()
	second.IsDriverLoaded = false
	second.DriverLoadingTime = 30
	store.Insert(ctx, second)

	stats := store.PullGlobalStats(ctx)
	if len(stats) != 1 {
		t.Fatalf("expected 1 global record, got %d", len(stats))
	}

	rec := stats[0]
	if rec.DriverVersionCode != 5 {
		t.Errorf("expected version code 5, got %d", rec.DriverVersionCode)
	}
	if rec.GLLoadingCount != 2 {
		t.Errorf("expected glLoadingCount 2, got %d", rec.GLLoadingCount)
	}
	if rec.GLLoadingFailureCount != 1 {
		t.Errorf("expected glLoadingFailureCount 1, got %d", rec.GLLoadingFailureCount)
	}
	if rec.VKLoadingCount != 0 || rec.VKLoadingFailureCount != 0 {
		t.Errorf("vulkan counters should be untouched, got %d/%d", rec.VKLoadingCount, rec.VKLoadingFailureCount)
	}

	dump := store.Dump(ctx, []string{FlagApp})
	if !strings.Contains(dump, "glDriverLoadingTime=[12,30]") {
		t.Errorf("expected app record with loading times [12,30], got %q", dump)
	}
}

func TestInsertIdentityFirstWriterWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Insert(ctx, glEvent())

	later := glEvent()
	later.DriverPackageName = "com.vendor.gfx.updated"
	later.DriverVersionName = "2.0"
	later.DriverBuildTime = 2000
	store.Insert(ctx, later)

	stats := store.PullGlobalStats(ctx)
	if len(stats) != 1 {
		t.Fatalf("expected 1 global record, got %d", len(stats))
	}
	if stats[0].DriverPackageName != "com.vendor.gfx" {
		t.Errorf("identity must not change after creation, got %q", stats[0].DriverPackageName)
	}
	if stats[0].DriverVersionName != "1.0" || stats[0].DriverBuildTime != 1000 {
		t.Errorf("identity must not change after creation, got %+v", stats[0])
	}
}

func TestInsertVulkanFamily(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, loaded := range []bool{true, false, false} {
		args := glEvent()
		args.Driver = DriverVulkanUpdated
		args.IsDriverLoaded = loaded
		store.Insert(ctx, args)
	}

	stats := store.PullGlobalStats(ctx)
	if len(stats) != 1 {
		t.Fatalf("expected 1 global record, got %d", len(stats))
	}
	if stats[0].VKLoadingCount != 3 || stats[0].VKLoadingFailureCount != 2 {
		t.Errorf("expected vk counters 3/2, got %d/%d", stats[0].VKLoadingCount, stats[0].VKLoadingFailureCount)
	}
	if stats[0].GLLoadingCount != 0 {
		t.Errorf("gl counters should be untouched, got %d", stats[0].GLLoadingCount)
	}
}

func TestInsertUnsupportedDriverIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	args := glEvent()
	args.Driver = Driver("angle")
	store.Insert(ctx, args)

	args.Driver = Driver("")
	store.Insert(ctx, args)

	global, app := store.Sizes()
	if global != 0 || app != 0 {
		t.Errorf("unsupported driver must leave both tables empty, got %d/%d", global, app)
	}
}

func TestGlobalTableOneRecordPerVersionCode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		args := glEvent()
		args.AppPackageName = fmt.Sprintf("com.app%d", i%7)
		store.Insert(ctx, args)
	}

	global, _ := store.Sizes()
	if global != 1 {
		t.Errorf("expected 1 global record for a single version code, got %d", global)
	}
}

func TestAppTableCapacity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// 101 distinct apps against the default capacity of 100.
	for i := 0; i <= DefaultMaxAppRecords; i++ {
		args := glEvent()
		args.AppPackageName = fmt.Sprintf("com.app%03d", i)
		store.Insert(ctx, args)
	}

	global, app := store.Sizes()
	if app != DefaultMaxAppRecords {
		t.Errorf("expected app table to cap at %d, got %d", DefaultMaxAppRecords, app)
	}
	if global != 1 {
		t.Errorf("global table must keep counting past app capacity, got %d records", global)
	}

	dump := store.Dump(ctx, []string{FlagApp})
	if strings.Contains(dump, "com.app100") {
		t.Errorf("the 101st app must be absent from the app table")
	}

	// Existing keys still accumulate at capacity.
	store.Insert(ctx, func() InsertArgs {
		args := glEvent()
		args.AppPackageName = "com.app000"
		args.DriverLoadingTime = 77
		return args
	}())

	dump = store.Dump(ctx, []string{FlagApp})
	if !strings.Contains(dump, "appPackageName=com.app000 driverVersionCode=5 glDriverLoadingTime=[12,77]") {
		t.Errorf("existing app keys must append at capacity, got %q", dump)
	}
}

func TestConfiguredCapacity(t *testing.T) {
	store := New(Options{MaxAppRecords: 2})
	ctx := context.Background()

	for _, app := range []string{"com.a", "com.b", "com.c"} {
		args := glEvent()
		args.AppPackageName = app
		store.Insert(ctx, args)
	}

	if _, app := store.Sizes(); app != 2 {
		t.Errorf("expected app table to cap at 2, got %d", app)
	}
}

func TestPullGlobalStatsDrainsGlobalOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for code := uint64(1); code <= 3; code++ {
		args := glEvent()
		args.DriverVersionCode = code
		store.Insert(ctx, args)
	}

	stats := store.PullGlobalStats(ctx)
	if len(stats) != 3 {
		t.Fatalf("expected 3 records, got %d", len(stats))
	}
	for i, rec := range stats {
		if rec.DriverVersionCode != uint64(i+1) {
			t.Errorf("expected records sorted by version code, got %d at index %d", rec.DriverVersionCode, i)
		}
	}

	global, app := store.Sizes()
	if global != 0 {
		t.Errorf("pull must empty the global table, got %d records", global)
	}
	if app != 3 {
		t.Errorf("pull must leave the app table untouched, got %d records", app)
	}

	if again := store.PullGlobalStats(ctx); len(again) != 0 {
		t.Errorf("second pull without insertions must be empty, got %d records", len(again))
	}
}

func TestDumpSections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	store.Insert(ctx, glEvent())

	all := store.Dump(ctx, nil)
	if !strings.Contains(all, "driverPackageName=") || !strings.Contains(all, "appPackageName=") {
		t.Errorf("default dump must include both sections, got %q", all)
	}
	if gIdx, aIdx := strings.Index(all, "driverPackageName="), strings.Index(all, "appPackageName="); gIdx > aIdx {
		t.Errorf("global section must precede app section, got %q", all)
	}

	global := store.Dump(ctx, []string{FlagGlobal})
	if !strings.Contains(global, "driverPackageName=") || strings.Contains(global, "appPackageName=") {
		t.Errorf("--global dump must include only the global section, got %q", global)
	}

	app := store.Dump(ctx, []string{FlagApp})
	if strings.Contains(app, "driverPackageName=") || !strings.Contains(app, "appPackageName=") {
		t.Errorf("--app dump must include only the app section, got %q", app)
	}
}

func TestDumpFlagsRepeatedAndUnordered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	store.Insert(ctx, glEvent())

	a := store.Dump(ctx, []string{FlagApp, FlagGlobal})
	b := store.Dump(ctx, []string{FlagGlobal, FlagApp, FlagGlobal})
	if a != b {
		t.Errorf("flag order and repeats must not change the report:\n%q\n%q", a, b)
	}
}

func TestDumpClearScopedToSelectedTable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	store.Insert(ctx, glEvent())

	report := store.Dump(ctx, []string{FlagApp, FlagClear})
	if !strings.Contains(report, "appPackageName=") || strings.Contains(report, "driverPackageName=") {
		t.Errorf("--app --clear must report the app section only, got %q", report)
	}

	global, app := store.Sizes()
	if app != 0 {
		t.Errorf("--app --clear must empty the app table, got %d records", app)
	}
	if global != 1 {
		t.Errorf("--app --clear must leave the global table intact, got %d records", global)
	}
}

func TestDumpClearWithoutSelectorResetsBoth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	store.Insert(ctx, glEvent())

	report := store.Dump(ctx, []string{FlagClear})
	if !strings.Contains(report, "driverPackageName=") || !strings.Contains(report, "appPackageName=") {
		t.Errorf("report must reflect pre-clear state, got %q", report)
	}

	global, app := store.Sizes()
	if global != 0 || app != 0 {
		t.Errorf("--clear without selector must reset both tables, got %d/%d", global, app)
	}
}

func TestWriteDumpNilDestination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	store.Insert(ctx, glEvent())

	// Must not panic and must not clear anything.
	store.WriteDump(ctx, nil, []string{FlagClear})

	if global, app := store.Sizes(); global != 1 || app != 1 {
		t.Errorf("nil destination must leave the store untouched, got %d/%d", global, app)
	}

	var sb strings.Builder
	store.WriteDump(ctx, &sb, []string{FlagGlobal})
	if !strings.Contains(sb.String(), "driverVersionCode=5") {
		t.Errorf("expected global record in written dump, got %q", sb.String())
	}
}

func TestClearScopes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	store.Insert(ctx, glEvent())

	store.Clear(true, false)
	if global, app := store.Sizes(); global != 0 || app != 1 {
		t.Errorf("global-scoped clear, got %d/%d", global, app)
	}

	store.Insert(ctx, glEvent())
	store.Clear(false, true)
	if global, app := store.Sizes(); global != 1 || app != 0 {
		t.Errorf("app-scoped clear, got %d/%d", global, app)
	}
}

func TestConcurrentInserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				args := glEvent()
				args.AppPackageName = fmt.Sprintf("com.worker%d", w)
				args.IsDriverLoaded = i%2 == 0
				store.Insert(ctx, args)
			}
		}(w)
	}
	wg.Wait()

	stats := store.PullGlobalStats(ctx)
	if len(stats) != 1 {
		t.Fatalf("expected 1 global record, got %d", len(stats))
	}
	if want := int64(workers * perWorker); stats[0].GLLoadingCount != want {
		t.Errorf("expected glLoadingCount %d, got %d", want, stats[0].GLLoadingCount)
	}
	if want := int64(workers * perWorker / 2); stats[0].GLLoadingFailureCount != want {
		t.Errorf("expected glLoadingFailureCount %d, got %d", want, stats[0].GLLoadingFailureCount)
	}
}

func TestGlobalRecordString(t *testing.T) {
	rec := GlobalRecord{
		DriverPackageName:     "com.vendor.gfx",
		DriverVersionName:     "1.0",
		DriverVersionCode:     5,
		DriverBuildTime:       1000,
		GLLoadingCount:        2,
		GLLoadingFailureCount: 1,
	}
	want := "driverPackageName=com.vendor.gfx driverVersionName=1.0 driverVersionCode=5 driverBuildTime=1000 glLoadingCount=2 glLoadingFailureCount=1 vkLoadingCount=0 vkLoadingFailureCount=0"
	if got := rec.String(); got != want {
		t.Errorf("unexpected global record line:\n got %q\nwant %q", got, want)
	}
}

func TestAppRecordString(t *testing.T) {
	rec := AppRecord{
		AppPackageName:    "com.foo",
		DriverVersionCode: 5,
		GLLoadingTimes:    []int64{12, 30},
	}
	want := "appPackageName=com.foo driverVersionCode=5 glDriverLoadingTime=[12,30] vkDriverLoadingTime=[]"
	if got := rec.String(); got != want {
		t.Errorf("unexpected app record line:\n got %q\nwant %q", got, want)
	}
}

func TestDriverFamily(t *testing.T) {
	supported := map[Driver]Family{
		DriverGL:            FamilyOpenGL,
		DriverGLUpdated:     FamilyOpenGL,
		DriverVulkan:        FamilyVulkan,
		DriverVulkanUpdated: FamilyVulkan,
	}
	for driver, want := range supported {
		family, ok := driver.Family()
		if !ok || family != want {
			t.Errorf("driver %q: expected family %q, got %q (ok=%v)", driver, want, family, ok)
		}
	}
	if _, ok := Driver("angle").Family(); ok {
		t.Errorf("angle must not resolve to a family")
	}
}
