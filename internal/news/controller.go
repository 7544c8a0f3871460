package news

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Fetcher is the remote news-query service.
type Fetcher interface {
	FetchByCountry(ctx context.Context, country string, page, pageSize int) (Page, error)
	FetchByTopic(ctx context.Context, topic string, page, pageSize int) (Page, error)
}

// Execute runs q against f.
func Execute(ctx context.Context, f Fetcher, q Query) (Page, error) {
	switch q.Kind {
	case KindCountry:
		return f.FetchByCountry(ctx, q.Value, q.Page, q.PageSize)
	case KindTopic:
		return f.FetchByTopic(ctx, q.Value, q.Page, q.PageSize)
	default:
		return Page{}, fmt.Errorf("unknown query kind %q", q.Kind)
	}
}

// Controller drives Transition and performs the fetches it asks for. The lock is
// not held while a fetch is in flight, so concurrent dispatches race the way
// Options describe.
type Controller struct {
	mu      sync.Mutex
	state   State
	opts    Options
	fetcher Fetcher
	logger  *log.Logger
}

func NewController(fetcher Fetcher, opts Options, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}

	return &Controller{
		state:   State{Status: StatusIdle, Page: 1},
		opts:    opts,
		fetcher: fetcher,
		logger:  logger,
	}
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dispatch applies ev and, if it issues a fetch, blocks until that fetch resolves.
// It returns the state after the fetch outcome has been applied.
func (c *Controller) Dispatch(ctx context.Context, ev Event) State {
	c.mu.Lock()
	next, req := Transition(c.state, ev, c.opts)
	c.state = next
	c.mu.Unlock()

	if req == nil {
		return next
	}

	page, err := Execute(ctx, c.fetcher, req.Query)

	var outcome Event
	if err != nil {
		c.logger.Printf("fetch #%d %s=%q page %d failed: %v", req.Seq, req.Query.Kind, req.Query.Value, req.Query.Page, err)
		outcome = FetchFailed{Seq: req.Seq, Err: err}
	} else {
		outcome = FetchSucceeded{Seq: req.Seq, Page: page}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state, _ = Transition(c.state, outcome, c.opts)
	return c.state
}
