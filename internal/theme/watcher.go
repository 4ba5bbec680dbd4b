package theme

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/harborgoods/storefront-web/internal/cryptoutil"
	"github.com/harborgoods/storefront-web/internal/log"
)

const (
	// DefaultPollInterval is how often the watcher checks SSM for a new
	// release.
	DefaultPollInterval = 30 * time.Second

	// maxBackoff caps exponential backoff on consecutive SSM errors.
	maxBackoff = 5 * time.Minute
)

// pollResult describes what happened during a single poll cycle.
type pollResult int

const (
	pollNoChange        pollResult = iota // SSM hash matches current
	pollSwapped                           // new release loaded and swapped
	pollSSMError                          // SSM fetch failed, back off
	pollLoadError                         // download/verify/extract failed
	pollValidationError                   // bundle loaded but failed checks
)

// BundleFetcher is what the watcher needs from a Loader. Extracted so
// tests can poll a fake without AWS.
type BundleFetcher interface {
	FetchRelease(ctx context.Context) (Release, error)
	LoadRelease(ctx context.Context, rel Release) (*Snapshot, error)
}

// WatcherMetrics is implemented by the metrics package to observe
// watcher behavior.
type WatcherMetrics interface {
	IncWatcherPolls()
	IncWatcherSwaps()
	IncWatcherError(errType string)
	ObserveBundleLoadDuration(seconds float64)
	SetWatcherLastSuccess(unixSeconds float64)
	SetWatcherStale(stale bool)
}

type WatcherOptions struct {
	Logger       log.Logger
	Loader       BundleFetcher
	Manager      *Manager
	PollInterval time.Duration

	// Validation configures checks run against new bundles before they
	// are swapped in. Nil uses DefaultValidationOptions().
	Validation *ValidationOptions

	// OnSwap is called synchronously on the poll goroutine after a
	// successful swap.
	OnSwap func(hash, version string)

	Metrics WatcherMetrics

	// StaleThreshold is how long since the last successful SSM poll
	// before the watcher reports staleness. Zero defaults to 30 minutes.
	StaleThreshold time.Duration
}

// Watcher polls SSM for release changes and hot-swaps theme bundles into
// the manager.
type Watcher struct {
	loader     BundleFetcher
	manager    *Manager
	logger     log.Logger
	interval   time.Duration
	validation ValidationOptions
	onSwap     func(hash, version string)
	metrics    WatcherMetrics

	currentHash string

	consecutiveErrs int

	staleThreshold time.Duration
	lastSuccessAt  time.Time
	staleLogged    bool

	pollCount int64
	swapCount int64
}

// NewWatcher creates a theme watcher. Call Run to start the poll loop.
func NewWatcher(opts *WatcherOptions) *Watcher {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	// seed from the manager so the first poll does not re-download what
	// startup already loaded
	currentHash := ""
	if snap, ok := opts.Manager.Get(); ok {
		currentHash = snap.Meta.SHA256
	}

	validation := DefaultValidationOptions()
	if opts.Validation != nil {
		validation = *opts.Validation
	}

	staleThreshold := opts.StaleThreshold
	if staleThreshold <= 0 {
		staleThreshold = 30 * time.Minute
	}

	return &Watcher{
		loader:         opts.Loader,
		manager:        opts.Manager,
		logger:         opts.Logger,
		interval:       interval,
		validation:     validation,
		onSwap:         opts.OnSwap,
		metrics:        opts.Metrics,
		currentHash:    currentHash,
		staleThreshold: staleThreshold,
		lastSuccessAt:  time.Now(),
	}
}

// Run starts the poll loop and blocks until ctx is cancelled.
// Intended to be launched as: go watcher.Run(ctx)
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info(ctx, "theme watcher starting",
		"poll_interval", w.interval.String(),
		"current_hash", truncHash(w.currentHash),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "theme watcher stopping",
				"reason", ctx.Err(),
				"polls", w.pollCount,
				"swaps", w.swapCount,
			)
			return ctx.Err()
		case <-ticker.C:
			result := w.checkOnce(ctx)

			if result == pollSSMError {
				w.consecutiveErrs++
				backoff := w.backoffDuration()
				w.logger.Warn(ctx, "theme watcher: backing off",
					"consecutive_errors", w.consecutiveErrs,
					"next_poll_in", backoff.String(),
				)
				ticker.Reset(backoff)
			} else if w.consecutiveErrs > 0 {
				w.logger.Info(ctx, "theme watcher: recovered, resuming normal interval",
					"had_consecutive_errors", w.consecutiveErrs,
				)
				w.consecutiveErrs = 0
				ticker.Reset(w.interval)
			}

			// staleness: emit once on the transition into stale state
			if result != pollSSMError {
				if w.staleLogged {
					w.logger.Info(ctx, "theme watcher: staleness recovered")
					w.staleLogged = false
					if w.metrics != nil {
						w.metrics.SetWatcherStale(false)
					}
				}
			} else if time.Since(w.lastSuccessAt) > w.staleThreshold {
				if !w.staleLogged {
					w.logger.Error(ctx, fmt.Errorf("last successful SSM poll was %s ago", time.Since(w.lastSuccessAt).Truncate(time.Second)),
						"theme watcher: theme is stale, unable to verify freshness",
					)
					w.staleLogged = true
					if w.metrics != nil {
						w.metrics.SetWatcherStale(true)
					}
				}
			}
		}
	}
}

// checkOnce performs a single poll-compare-swap cycle and reports what
// happened so Run can adjust timing.
func (w *Watcher) checkOnce(ctx context.Context) pollResult {
	w.pollCount++
	if w.metrics != nil {
		w.metrics.IncWatcherPolls()
	}

	rel, err := w.loader.FetchRelease(ctx)
	if err != nil {
		w.logger.Error(ctx, err, "theme watcher: SSM poll failed")
		if w.metrics != nil {
			w.metrics.IncWatcherError("ssm")
		}
		return pollSSMError
	}

	now := time.Now()
	w.lastSuccessAt = now
	if w.metrics != nil {
		w.metrics.SetWatcherLastSuccess(float64(now.Unix()))
	}

	// no change is the common path
	if cryptoutil.HashEqual(rel.Hash, w.currentHash) {
		return pollNoChange
	}

	w.logger.Info(ctx, "theme watcher: new release detected",
		"old_hash", truncHash(w.currentHash),
		"new_hash", truncHash(rel.Hash),
	)

	loadStart := time.Now()
	snap, err := w.loader.LoadRelease(ctx, rel)
	loadDur := time.Since(loadStart).Seconds()
	if w.metrics != nil {
		w.metrics.ObserveBundleLoadDuration(loadDur)
	}

	if err != nil {
		w.logger.Error(ctx, err, "theme watcher: failed to load bundle",
			"hash", truncHash(rel.Hash),
		)
		if w.metrics != nil {
			w.metrics.IncWatcherError("load")
		}
		return pollLoadError
	}

	if err := ValidateSnapshot(snap, w.validation); err != nil {
		w.logger.Error(ctx, err, "theme watcher: new bundle failed validation, keeping current theme",
			"rejected_hash", truncHash(rel.Hash),
			"current_hash", truncHash(w.currentHash),
		)
		if w.metrics != nil {
			w.metrics.IncWatcherError("validation")
		}
		return pollValidationError
	}

	oldHash := w.currentHash
	w.manager.Set(*snap)
	w.swapCount++

	version := w.manager.ThemeVersion()

	w.logger.Info(ctx, "theme watcher: bundle swapped",
		"old_hash", truncHash(oldHash),
		"new_hash", truncHash(rel.Hash),
		"version", version,
		"total_swaps", w.swapCount,
	)

	w.currentHash = rel.Hash

	if w.metrics != nil {
		w.metrics.IncWatcherSwaps()
	}

	if w.onSwap != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error(ctx, fmt.Errorf("OnSwap panic: %v", r),
						"theme watcher: OnSwap callback panicked, continuing",
						"hash", truncHash(rel.Hash),
					)
				}
			}()
			w.onSwap(rel.Hash, version)
		}()
	}

	return pollSwapped
}

// backoffDuration computes exponential backoff capped at maxBackoff.
// consecutiveErrs=1 means 2x interval, =2 means 4x, and so on.
func (w *Watcher) backoffDuration() time.Duration {
	mult := math.Pow(2, float64(w.consecutiveErrs))
	d := time.Duration(float64(w.interval) * mult)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// truncHash returns the first 12 characters of a hash for logging.
func truncHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
