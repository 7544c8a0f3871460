package tracking

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"newsbee/internal/history"
	"newsbee/internal/metrics"
	"newsbee/internal/news"
)

// Recorder persists fetch records. history.Repository satisfies it.
type Recorder interface {
	Insert(ctx context.Context, r *history.Record) error
}

// Fetcher wraps a news.Fetcher, counting every call in Prometheus and recording
// it when a Recorder is set. Recording failures are logged and never returned.
type Fetcher struct {
	next     news.Fetcher
	recorder Recorder
	logger   *log.Logger

	now   func() time.Time
	newID func() string
}

func NewFetcher(next news.Fetcher, recorder Recorder, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Default()
	}

	return &Fetcher{
		next:     next,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (f *Fetcher) FetchByCountry(ctx context.Context, country string, page, pageSize int) (news.Page, error) {
	q := news.Query{Kind: news.KindCountry, Value: country, Page: page, PageSize: pageSize}
	return f.observe(ctx, q, func() (news.Page, error) {
		return f.next.FetchByCountry(ctx, country, page, pageSize)
	})
}

func (f *Fetcher) FetchByTopic(ctx context.Context, topic string, page, pageSize int) (news.Page, error) {
	q := news.Query{Kind: news.KindTopic, Value: topic, Page: page, PageSize: pageSize}
	return f.observe(ctx, q, func() (news.Page, error) {
		return f.next.FetchByTopic(ctx, topic, page, pageSize)
	})
}

func (f *Fetcher) observe(ctx context.Context, q news.Query, call func() (news.Page, error)) (news.Page, error) {
	start := f.now()
	res, err := call()
	elapsed := f.now().Sub(start)

	kind := string(q.Kind)
	metrics.NewsFetchDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err != nil {
		metrics.NewsFetchesTotal.WithLabelValues(kind, "error").Inc()
	} else {
		metrics.NewsFetchesTotal.WithLabelValues(kind, "ok").Inc()
		metrics.NewsArticlesServed.WithLabelValues(kind).Add(float64(len(res.Articles)))
	}

	if f.recorder != nil {
		rec := &history.Record{
			ID:         f.newID(),
			Kind:       kind,
			Value:      q.Value,
			Page:       q.Page,
			PageSize:   q.PageSize,
			Total:      res.Total,
			Count:      len(res.Articles),
			DurationMs: elapsed.Milliseconds(),
			At:         start.UTC(),
		}
		if err != nil {
			rec.Error = err.Error()
		}

		// record even when the caller gave up on the fetch
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		if rerr := f.recorder.Insert(recCtx, rec); rerr != nil {
			f.logger.Printf("tracking: failed to record fetch %s: %v", rec.ID, rerr)
		}
		cancel()
	}

	return res, err
}
