// Package scheduler generates the thumbnails of a folder in the background.
//
// A batch fans its files out over a bounded worker pool. Each finished
// file, successful or not, produces exactly one progress tick. Ticks are
// funneled to a single consumer goroutine, so OnProgress is never called
// concurrently and Completed increases by one per call until it reaches
// Total. The result list becomes visible only after the last tick.
//
// A failing file never stops the batch: decode, encode and I/O errors, as
// well as panics, become failed Results.
package scheduler
