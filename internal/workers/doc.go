/*
Package workers decides how many thumbnail workers a generation batch runs.

# Overview

The available parallelism is read from GOMAXPROCS rather than
runtime.NumCPU, so a container CPU limit is respected (Go 1.19+ derives
GOMAXPROCS from the cgroup quota).

The default pool size leaves some headroom for the UI and the store:

	workers.DefaultThreads(1)  // 2  (floor)
	workers.DefaultThreads(4)  // 3  (round(3.2))
	workers.DefaultThreads(8)  // 6  (round(6.4))
	workers.DefaultThreads(16) // 13 (round(12.8))

# Overrides

A user preference (see internal/config) takes precedence over the default,
and the THUMBNAIL_WORKERS environment variable takes precedence over both.
The variable is read once at startup; Resolve applies that order:

	override, _ := workers.ParseOverride(os.Getenv(workers.EnvOverride)) // 0 = unset
	n := workers.Resolve(override, prefs.ThumbnailThreads())            // *int, nil = auto
*/
package workers
