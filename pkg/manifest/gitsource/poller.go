package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PollerStats counts poller activity.
type PollerStats struct {
	Polls         int64  `json:"polls"`
	Reloads       int64  `json:"reloads"`
	FailedReloads int64  `json:"failed_reloads"`
	Skipped       int64  `json:"skipped"`
	LastGoodSHA   string `json:"last_good_sha"`
	RejectedSHA   string `json:"rejected_sha,omitempty"`
}

// Poller pulls a Repository on an interval and calls reload when a new
// commit changes the manifest file.
type Poller struct {
	repo     *Repository
	interval time.Duration
	reload   func() error
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stats   PollerStats
}

// NewPoller returns a poller. A nil logger uses slog.Default().
func NewPoller(repo *Repository, interval time.Duration, reload func() error, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{repo: repo, interval: interval, reload: reload, logger: logger}
}

// Run polls until ctx is cancelled. The repository must be cloned.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", p.interval)
	}
	head, err := p.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get initial commit: %w", err)
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("poller already running")
	}
	p.running = true
	p.stats.LastGoodSHA = head.SHA
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.logger.Info("manifest poller started",
		"repository", p.repo.URL(),
		"interval", p.interval,
		"commit", short(head.SHA),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("manifest poller stopped")
			return nil
		case <-ticker.C:
			if err := p.Check(ctx); err != nil {
				p.logger.Error("manifest poll failed", "error", err)
			}
		}
	}
}

// Check pulls once and reloads if the manifest changed. A failed reload
// is recorded and returned; the previous recipes stay active.
func (p *Poller) Check(ctx context.Context) error {
	p.mu.Lock()
	p.stats.Polls++
	p.mu.Unlock()

	result, err := p.repo.Pull(ctx)
	if err != nil {
		return err
	}
	if !result.HadChanges {
		return nil
	}

	if !result.ManifestChanged {
		p.mu.Lock()
		p.stats.Skipped++
		p.stats.LastGoodSHA = result.ToSHA
		p.mu.Unlock()
		p.logger.Debug("commit does not touch the manifest",
			"from_sha", short(result.FromSHA),
			"to_sha", short(result.ToSHA),
			"changed_files", len(result.ChangedFiles),
		)
		return nil
	}

	p.logger.Info("manifest changed upstream",
		"from_sha", short(result.FromSHA),
		"to_sha", short(result.ToSHA),
	)
	if err := p.reload(); err != nil {
		p.mu.Lock()
		p.stats.FailedReloads++
		p.stats.RejectedSHA = result.ToSHA
		p.mu.Unlock()
		return fmt.Errorf("manifest at %s rejected: %w", short(result.ToSHA), err)
	}

	p.mu.Lock()
	p.stats.Reloads++
	p.stats.LastGoodSHA = result.ToSHA
	p.stats.RejectedSHA = ""
	p.mu.Unlock()
	return nil
}

// Stats returns a snapshot of the counters.
func (p *Poller) Stats() PollerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
