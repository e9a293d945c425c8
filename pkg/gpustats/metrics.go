package gpustats

// Metrics receives store-level instrumentation. Implementations must be
// safe for concurrent use; all methods are called with the store lock held
// and must not block.
type Metrics interface {
	// RecordInsert is called for every accepted insertion.
	RecordInsert(family string, isDriverLoaded bool, loadingTime int64)

	// RecordRejected is called when an event is dropped before mutation.
	RecordRejected(reason string)

	// RecordDump is called once per dumped section.
	RecordDump(section string)

	// RecordPull is called after a pull with the number of records returned.
	RecordPull(records int)

	// SetTableSizes reports the current table sizes.
	SetTableSizes(global, app int)
}

// Drop reasons reported via Metrics.RecordRejected.
const (
	RejectUnsupportedDriver = "unsupported_driver"
	RejectAppTableFull      = "app_table_full"
)

// Dump sections reported via Metrics.RecordDump.
const (
	SectionGlobal = "global"
	SectionApp    = "app"
)

// NopMetrics is a Metrics implementation that discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordInsert(string, bool, int64) {}
func (NopMetrics) RecordRejected(string)           {}
func (NopMetrics) RecordDump(string)               {}
func (NopMetrics) RecordPull(int)                  {}
func (NopMetrics) SetTableSizes(int, int)          {}
