package news

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchByCountry(ctx context.Context, country string, page, pageSize int) (Page, error) {
	args := m.Called(ctx, country, page, pageSize)
	return args.Get(0).(Page), args.Error(1)
}

func (m *mockFetcher) FetchByTopic(ctx context.Context, topic string, page, pageSize int) (Page, error) {
	args := m.Called(ctx, topic, page, pageSize)
	return args.Get(0).(Page), args.Error(1)
}

type ControllerSuite struct {
	suite.Suite

	fetcher *mockFetcher
	logBuf  *bytes.Buffer
	logger  *log.Logger

	ctrl *Controller
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.fetcher = &mockFetcher{}
	s.logBuf = &bytes.Buffer{}
	s.logger = log.New(s.logBuf, "", 0)
	s.ctrl = NewController(s.fetcher, Options{}, s.logger)
}

func pageOf(total int, urls ...string) Page {
	p := Page{Total: total}
	for _, u := range urls {
		p.Articles = append(p.Articles, Article{Title: "t " + u, URL: u})
	}
	return p
}

// TestMountThenSearch mount on a country feed, then search replaces it
func (s *ControllerSuite) TestMountThenSearch() {
	ctx := context.Background()
	base := Params{PageSize: 12, Country: "us", Category: "business"}

	s.fetcher.On("FetchByCountry", mock.Anything, "us", 1, 12).Return(pageOf(2, "a", "b"), nil).Once()
	s.fetcher.On("FetchByTopic", mock.Anything, "election", 1, 12).Return(pageOf(1, "c"), nil).Once()

	st := s.ctrl.Dispatch(ctx, Mount{Params: base})
	s.Equal("Top Headlines in US", st.Heading)
	s.Equal(StatusIdle, st.Status)
	s.Len(st.Articles, 2)

	withSearch := base
	withSearch.Search = "election"
	st = s.ctrl.Dispatch(ctx, ParamsChanged{Params: withSearch})
	s.Equal("Top Election Headlines", st.Heading)
	s.Equal(1, st.Page)
	s.Equal("c", st.Articles[0].URL)

	s.fetcher.AssertExpectations(s.T())
}

// TestNextPageFetchesOnce next increments the page and issues exactly one fetch
func (s *ControllerSuite) TestNextPageFetchesOnce() {
	ctx := context.Background()
	p := Params{PageSize: 12, Category: "sports"}

	s.fetcher.On("FetchByTopic", mock.Anything, "sports", 1, 12).Return(pageOf(30, "a"), nil).Once()
	s.fetcher.On("FetchByTopic", mock.Anything, "sports", 2, 12).Return(pageOf(30, "b"), nil).Once()

	s.ctrl.Dispatch(ctx, Mount{Params: p})
	st := s.ctrl.Dispatch(ctx, NextPage{})

	s.Equal(2, st.Page)
	s.Equal("b", st.Articles[0].URL)
	s.fetcher.AssertExpectations(s.T())
	s.fetcher.AssertNumberOfCalls(s.T(), "FetchByTopic", 2)
}

// TestPrevOnFirstPage is a no-op with no fetch
func (s *ControllerSuite) TestPrevOnFirstPage() {
	ctx := context.Background()
	s.fetcher.On("FetchByTopic", mock.Anything, "health", 1, 12).Return(pageOf(5, "a"), nil).Once()

	s.ctrl.Dispatch(ctx, Mount{Params: Params{PageSize: 12, Category: "health"}})
	st := s.ctrl.Dispatch(ctx, PrevPage{})

	s.Equal(1, st.Page)
	s.fetcher.AssertNumberOfCalls(s.T(), "FetchByTopic", 1)
}

// TestFailureIsSilentByDefault failed fetch leaves an empty idle page and logs
func (s *ControllerSuite) TestFailureIsSilentByDefault() {
	s.fetcher.On("FetchByCountry", mock.Anything, "za", 1, 12).
		Return(Page{}, errors.Join(ErrFetchFailed, errors.New("HTTP 502"))).Once()

	st := s.ctrl.Dispatch(context.Background(), Mount{Params: Params{PageSize: 12, Country: "za"}})

	s.Equal(StatusIdle, st.Status)
	s.Empty(st.Articles)
	s.Empty(st.Err)
	s.Contains(s.logBuf.String(), "failed")
}

// TestFailureStrict opt-in error state surfaces the failure
func (s *ControllerSuite) TestFailureStrict() {
	s.ctrl = NewController(s.fetcher, Options{StrictErrors: true}, s.logger)
	s.fetcher.On("FetchByCountry", mock.Anything, "za", 1, 12).Return(Page{}, errors.New("HTTP 502")).Once()

	st := s.ctrl.Dispatch(context.Background(), Mount{Params: Params{PageSize: 12, Country: "za"}})

	s.Equal(StatusError, st.Status)
	s.Equal("HTTP 502", st.Err)
}

// TestOverlappingFetchesKeepLatest a slow stale fetch must not overwrite a newer one
func (s *ControllerSuite) TestOverlappingFetchesKeepLatest() {
	s.ctrl = NewController(s.fetcher, Options{DiscardStale: true}, s.logger)
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})

	s.fetcher.On("FetchByCountry", mock.Anything, "us", 1, 12).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(pageOf(1, "stale"), nil).Once()
	s.fetcher.On("FetchByCountry", mock.Anything, "gb", 1, 12).Return(pageOf(1, "fresh"), nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.ctrl.Dispatch(ctx, Mount{Params: Params{PageSize: 12, Country: "us"}})
	}()

	<-started
	s.ctrl.Dispatch(ctx, ParamsChanged{Params: Params{PageSize: 12, Country: "gb"}})
	close(release)
	wg.Wait()

	st := s.ctrl.State()
	s.Equal("fresh", st.Articles[0].URL)
	s.Equal(StatusIdle, st.Status)
	s.fetcher.AssertExpectations(s.T())
}
