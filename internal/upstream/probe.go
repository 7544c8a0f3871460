package upstream

import (
	"context"
	"log"
	"sync"
	"time"

	"newsbee/internal/metrics"
	"newsbee/internal/news"
)

// ticker is an interface so we can swap out time.Ticker in tests.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type tickerFactory func(d time.Duration) ticker

type timeTicker struct {
	*time.Ticker
}

func (t *timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

type Status struct {
	Up        bool      `json:"up"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Prober checks that the news API answers a minimal category query.
type Prober struct {
	fetcher   news.Fetcher
	category  string
	maxProbes int
	logger    *log.Logger
	newTicker tickerFactory

	mu     sync.RWMutex
	status Status
}

func NewProber(fetcher news.Fetcher, category string, maxProbes int, logger *log.Logger) *Prober {
	if logger == nil {
		logger = log.Default()
	}

	return &Prober{
		fetcher:   fetcher,
		category:  category,
		maxProbes: maxProbes,
		logger:    logger,
		newTicker: func(d time.Duration) ticker {
			return &timeTicker{time.NewTicker(d)}
		},
	}
}

func (p *Prober) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Ready reports whether the last probe succeeded. Before the first probe it is false.
func (p *Prober) Ready() bool {
	return p.Status().Up
}

func (p *Prober) ProbeOnce(ctx context.Context) error {
	_, err := p.fetcher.FetchByTopic(ctx, p.category, 1, 1)

	st := Status{Up: err == nil, CheckedAt: time.Now().UTC()}
	if err != nil {
		st.Error = err.Error()
		metrics.UpstreamUp.Set(0)
	} else {
		metrics.UpstreamUp.Set(1)
	}

	p.mu.Lock()
	p.status = st
	p.mu.Unlock()

	return err
}

func (p *Prober) StartProbing(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		p.logger.Printf("prober not started - interval must be positive, got %v", interval)
		return
	}

	t := p.newTicker(interval)
	defer t.Stop()

	probeCount := 0

	p.logger.Printf("probing news api every %v...", interval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Println("prober stopping - context cancelled")
			return

		case <-t.C():
			if p.maxProbes > 0 && probeCount >= p.maxProbes {
				p.logger.Printf("prober stopping after %d probes (max reached)", probeCount)
				return
			}

			probeCount++

			probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := p.ProbeOnce(probeCtx); err != nil {
				p.logger.Printf("probe #%d failed: %v", probeCount, err)
			}
			cancel()
		}
	}
}
