package worker

import (
	"context"
	"log/slog"
	"time"

	"basicsos.app/automation/common/logger"
)

// Promoter moves delayed retries back into their stream once due.
type Promoter struct {
	promoter DuePromoter
	interval time.Duration
	now      func() time.Time

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewPromoter(p DuePromoter, interval time.Duration) *Promoter {
	return &Promoter{
		promoter:  p,
		interval:  interval,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (p *Promoter) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "automation.worker.promoter",
	})

	defer close(p.stoppedCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.promoteOnce(ctx)
		}
	}
}

func (p *Promoter) Stop() {
	close(p.stopCh)
	<-p.stoppedCh
}

func (p *Promoter) promoteOnce(ctx context.Context) {
	n, err := p.promoter.PromoteDue(ctx, p.now())
	if err != nil {
		slog.ErrorContext(ctx, "promoting delayed jobs failed", "error", err)
		return
	}
	if n > 0 {
		slog.DebugContext(ctx, "promoted delayed jobs", "count", n)
	}
}
