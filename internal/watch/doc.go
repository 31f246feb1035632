// Package watch implements chime's change-detection core: two interchangeable
// watch strategies over the same filter and coalescing pipeline.
//
// StreamWatcher subscribes to native filesystem notifications, PollWatcher
// diffs periodic directory snapshots; both feed raw signals through an
// extension filter into a per-path debounce coalescer so the handler sees at
// most one event per path per quiet period, with a ceiling that bounds
// emission latency under sustained churn.
package watch
