// Package memory keeps glimpse inside its memory budget.
//
// Decoding a RAW file allocates a full-resolution sensor buffer plus an RGB
// image of the same size, so a handful of concurrent workers can hold
// several hundred megabytes. Two pieces cooperate to keep that bounded:
//
//   - [ConfigureFromEnv] sets the Go soft memory limit from GOMEMLIMIT, or
//     from MEMORY_LIMIT scaled by MEMORY_RATIO (default 0.80).
//   - [Monitor] samples heap usage and, above the critical watermark, pauses
//     RAW workers in [Monitor.WaitIfPaused] until usage drops below the
//     high watermark again.
//
// Typical use:
//
//	memory.ConfigureFromEnv()
//	mon := memory.NewMonitor(memory.DefaultConfig())
//	mon.Start()
//	defer mon.Stop()
//
// When no limit is configured the monitor never pauses.
package memory
