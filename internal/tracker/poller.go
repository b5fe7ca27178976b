// File: internal/tracker/poller.go
package tracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/kaiascan"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/metrics"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/storage"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// Dispatcher delivers a rendered notification to a subscriber
type Dispatcher interface {
	Dispatch(ctx context.Context, subscriberID, address, txHash, message string) error
}

// Poller drives the periodic sweep over all tracked addresses
type Poller struct {
	// Dependencies
	storage    storage.Storage
	feed       kaiascan.Client
	dispatcher Dispatcher
	logger     *logrus.Logger

	// Configuration
	config *PollerConfig

	// State management
	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Statistics
	stats          PollerStats
	metricsManager *metrics.Manager
}

// PollerConfig holds sweep loop configuration
type PollerConfig struct {
	PollInterval  time.Duration `json:"poll_interval"`
	Concurrency   int           `json:"concurrency"`
	PageSize      int           `json:"page_size"`
	PanicBackoff  time.Duration `json:"panic_backoff"`
	CommitTimeout time.Duration `json:"commit_timeout"`
}

// PollerStats provides sweep statistics
type PollerStats struct {
	StartTime           time.Time     `json:"start_time"`
	Uptime              time.Duration `json:"uptime"`
	IsRunning           bool          `json:"is_running"`
	TotalSweeps         uint64        `json:"total_sweeps"`
	TotalAddressesSwept uint64        `json:"total_addresses_swept"`
	TotalDetected       uint64        `json:"total_detected"`
	TotalNotified       uint64        `json:"total_notified"`
	TotalFailures       uint64        `json:"total_failures"`
	LastSweepAt         *time.Time    `json:"last_sweep_at,omitempty"`
	LastSweepDuration   time.Duration `json:"last_sweep_duration"`
	LastError           *string       `json:"last_error,omitempty"`
	LastErrorTime       *time.Time    `json:"last_error_time,omitempty"`
}

// NewPoller creates a new tracking poller
func NewPoller(
	store storage.Storage,
	feed kaiascan.Client,
	dispatcher Dispatcher,
	cfg *PollerConfig,
	metricsManager *metrics.Manager,
) *Poller {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = 25
	}
	if cfg.PanicBackoff <= 0 {
		cfg.PanicBackoff = 5 * time.Second
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 10 * time.Second
	}

	return &Poller{
		storage:        store,
		feed:           feed,
		dispatcher:     dispatcher,
		logger:         utils.GetLogger(),
		config:         cfg,
		stopChan:       make(chan struct{}),
		metricsManager: metricsManager,
	}
}

// Start starts the sweep loop
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Poller already running", "")
	}

	p.running = true
	p.stopChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	p.stats.StartTime = time.Now()
	p.stats.IsRunning = true

	p.wg.Add(1)
	go p.sweepLoop(ctx)

	p.logger.WithFields(logrus.Fields{
		"poll_interval": p.config.PollInterval,
		"concurrency":   p.config.Concurrency,
		"page_size":     p.config.PageSize,
	}).Info("Tracking poller started")

	return nil
}

// Stop stops the sweep loop and waits for the current sweep to wind down.
// An in-flight transaction finishes its dispatch and checkpoint commit;
// everything not yet started is re-detected on the next run. The poller
// stays marked running until the drain completes, so a concurrent Start
// cannot race with a closing loop.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	p.logger.Info("Stopping tracking poller")

	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.stats.IsRunning = false
	p.mu.Unlock()

	p.logger.Info("Tracking poller stopped")
	return nil
}

// IsRunning returns whether the poller is running
func (p *Poller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// GetStats returns a snapshot of poller statistics
func (p *Poller) GetStats() PollerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := p.stats
	stats.Uptime = time.Since(p.stats.StartTime)
	return stats
}

// sweepLoop runs one sweep immediately, then one per tick until stopped
func (p *Poller) sweepLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.WithField("interval", p.config.PollInterval).Info("Starting sweep loop")

	p.safeSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Sweep loop stopped by context")
			return
		case <-p.stopChan:
			p.logger.Info("Sweep loop stopped by stop signal")
			return
		case <-ticker.C:
			p.safeSweep(ctx)
		}
	}
}

// safeSweep isolates the loop from a panicking sweep. The panic is logged
// and followed by a short backoff so a persistent fault cannot spin hot.
func (p *Poller) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("panic", r).Error("Sweep panicked, backing off")
			p.recordError(fmt.Errorf("sweep panic: %v", r))
			if p.metricsManager != nil {
				p.metricsManager.GetPrometheusMetrics().RecordSweepError()
			}
			select {
			case <-time.After(p.config.PanicBackoff):
			case <-p.stopChan:
			case <-ctx.Done():
			}
		}
	}()

	p.runSweep(ctx)
}

// runSweep processes every tracked address once. Address failures are
// isolated: one bad address never aborts the rest of the sweep.
func (p *Poller) runSweep(ctx context.Context) {
	start := time.Now()

	rows, err := p.storage.AllTrackedAddresses(ctx)
	if err != nil {
		p.logger.WithField("error", err.Error()).Error("Failed to snapshot tracked addresses")
		p.recordError(err)
		if p.metricsManager != nil {
			p.metricsManager.GetPrometheusMetrics().RecordSweepError()
		}
		return
	}

	var detected, notified, failures atomic.Uint64

	process := func(row *models.TrackedAddress) {
		res := p.processAddress(ctx, row)
		detected.Add(res.detected)
		notified.Add(res.notified)
		if res.failed {
			failures.Add(1)
		}
	}

	if p.config.Concurrency > 1 {
		g := new(errgroup.Group)
		g.SetLimit(p.config.Concurrency)
		for _, row := range rows {
			row := row
			g.Go(func() error {
				process(row)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, row := range rows {
			select {
			case <-p.stopChan:
				p.logger.Debug("Sweep interrupted by stop signal")
				return
			case <-ctx.Done():
				return
			default:
			}
			process(row)
		}
	}

	duration := time.Since(start)
	now := time.Now().UTC()

	p.mu.Lock()
	p.stats.TotalSweeps++
	p.stats.TotalAddressesSwept += uint64(len(rows))
	p.stats.TotalDetected += detected.Load()
	p.stats.TotalNotified += notified.Load()
	p.stats.TotalFailures += failures.Load()
	p.stats.LastSweepAt = &now
	p.stats.LastSweepDuration = duration
	p.mu.Unlock()

	if p.metricsManager != nil {
		p.metricsManager.GetPrometheusMetrics().RecordSweep(duration)
	}

	if err := p.storage.SetLastSweepTime(now); err != nil {
		p.logger.WithField("error", err.Error()).Warn("Failed to record sweep time")
	}

	p.logger.WithFields(logrus.Fields{
		"addresses": len(rows),
		"detected":  detected.Load(),
		"notified":  notified.Load(),
		"failures":  failures.Load(),
		"duration":  duration,
	}).Debug("Sweep completed")
}

type addressResult struct {
	detected uint64
	notified uint64
	failed   bool
}

// processAddress fetches one address's feed page, detects new transactions
// and handles them oldest first, committing the checkpoint after each one.
// A dispatch or commit failure stops the remaining transactions for this
// address; they are re-detected on the next sweep because the checkpoint
// has not moved past them.
func (p *Poller) processAddress(ctx context.Context, row *models.TrackedAddress) addressResult {
	var res addressResult

	select {
	case <-p.stopChan:
		return res
	default:
	}

	page, err := p.feed.TransactionHistory(ctx, row.Address, 1, p.config.PageSize)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"subscriber": row.SubscriberID,
			"address":    row.Address,
			"error":      err.Error(),
		}).Warn("Feed fetch failed, skipping address this sweep")
		p.recordError(err)
		if p.metricsManager != nil {
			p.metricsManager.GetPrometheusMetrics().RecordAddressFailure()
		}
		res.failed = true
		return res
	}

	newTxs := DetectNewTransactions(page, row.Checkpoint())
	if len(newTxs) == 0 {
		return res
	}

	res.detected = uint64(len(newTxs))
	if p.metricsManager != nil {
		p.metricsManager.GetPrometheusMetrics().RecordTransactionsDetected(len(newTxs))
	}

	for _, dt := range newTxs {
		select {
		case <-p.stopChan:
			return res
		default:
		}

		message := FormatTransaction(dt.Transaction, row.Label)

		if err := p.dispatcher.Dispatch(ctx, row.SubscriberID, row.Address, dt.Transaction.Hash, message); err != nil {
			p.logger.WithFields(logrus.Fields{
				"subscriber": row.SubscriberID,
				"address":    row.Address,
				"tx_hash":    dt.Transaction.Hash,
				"error":      err.Error(),
			}).Warn("Dispatch failed, transaction will be retried next sweep")
			p.recordError(err)
			if p.metricsManager != nil {
				p.metricsManager.GetPrometheusMetrics().RecordAddressFailure()
			}
			res.failed = true
			return res
		}
		res.notified++

		if err := p.commitCheckpoint(row, dt.Next); err != nil {
			p.logger.WithFields(logrus.Fields{
				"subscriber": row.SubscriberID,
				"address":    row.Address,
				"tx_hash":    dt.Transaction.Hash,
				"error":      err.Error(),
			}).Error("Checkpoint commit failed")
			p.recordError(err)
			res.failed = true
			return res
		}
	}

	return res
}

// commitCheckpoint advances one row's checkpoint on a fresh bounded context
// detached from sweep cancellation, so shutdown never abandons a
// dispatched-but-uncommitted transaction.
func (p *Poller) commitCheckpoint(row *models.TrackedAddress, next models.Checkpoint) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.CommitTimeout)
	defer cancel()

	if err := p.storage.AdvanceCheckpoint(ctx, row.SubscriberID, row.Address, next.Hash, next.Time); err != nil {
		if p.metricsManager != nil {
			p.metricsManager.GetPrometheusMetrics().RecordCheckpointFailure()
		}
		return err
	}

	if p.metricsManager != nil {
		p.metricsManager.GetPrometheusMetrics().RecordCheckpointAdvance()
	}
	return nil
}

func (p *Poller) recordError(err error) {
	now := time.Now()
	msg := err.Error()

	p.mu.Lock()
	p.stats.LastError = &msg
	p.stats.LastErrorTime = &now
	p.mu.Unlock()
}
