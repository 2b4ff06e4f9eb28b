package workers

import (
	"math"
	"runtime"
	"strconv"
)

const (
	// DefaultRatio is the share of available parallelism used by default.
	DefaultRatio = 0.8

	// MinThreads is the floor applied to the computed default.
	MinThreads = 2

	// EnvOverride names the environment variable that forces the pool size.
	EnvOverride = "THUMBNAIL_WORKERS"
)

// Available returns the parallelism the process may use.
// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+.
func Available() int {
	return runtime.GOMAXPROCS(0)
}

// DefaultThreads returns round(cpus * 0.8) with a floor of MinThreads.
func DefaultThreads(cpus int) int {
	n := int(math.Round(float64(cpus) * DefaultRatio))
	if n < MinThreads {
		n = MinThreads
	}
	return n
}

// Recommended returns the default thread count for this machine.
func Recommended() int {
	return DefaultThreads(Available())
}

// ParseOverride returns the worker count named by a THUMBNAIL_WORKERS
// value. ok is false for an empty, non-numeric or non-positive value.
func ParseOverride(raw string) (count int, ok bool) {
	if raw == "" {
		return 0, false
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count <= 0 {
		return 0, false
	}
	return count, true
}

// Resolve picks the worker count: a positive override, then the user
// preference when it is positive, then the computed default.
func Resolve(override int, preference *int) int {
	if override > 0 {
		return override
	}
	if preference != nil && *preference > 0 {
		return *preference
	}
	return Recommended()
}
