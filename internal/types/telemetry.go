package types

// Metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricCycleOutcome   = "CycleOutcome"
	MetricCycleDuration  = "CycleDuration"
	MetricChannelFailure = "ChannelFailure"

	// Dimension Keys
	DimDevice  = "Device"
	DimResult  = "Result"
	DimChannel = "Channel"

	// Metric Namespace
	MetricNamespace = "Airwatch"
)

// Channel names a per-cycle side-effect channel.
type Channel string

const (
	ChannelPersist Channel = "persist"
	ChannelNotify  Channel = "notify"
	ChannelUpload  Channel = "upload"
)

// CycleResult categorizes a finished cycle for metrics reporting.
type CycleResult string

const (
	CycleOK                CycleResult = "ok"
	CycleAcquisitionFailed CycleResult = "acquisition_failed"
)
