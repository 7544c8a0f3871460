package news

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// State is the full article list state. Articles is replaced wholesale on every
// applied fetch and never mutated in place.
type State struct {
	Status   Status
	Mounted  bool
	Params   Params
	Page     int
	Articles []Article
	Total    int
	Heading  string
	Title    string
	Err      string
	Seq      uint64 // sequence of the most recently issued fetch
}

func (s State) CanPrev() bool { return s.Page > 1 }

// CanNext only looks at the reported total; it does not compute a last page.
func (s State) CanNext() bool { return s.Total > 0 }

type Event interface {
	event()
}

// Mount activates the controller with its first configuration.
type Mount struct{ Params Params }

// ParamsChanged carries the latest configuration from navigation or routing.
type ParamsChanged struct{ Params Params }

type NextPage struct{}

type PrevPage struct{}

// Refresh re-issues the current query. Used to retry after a failure.
type Refresh struct{}

type FetchSucceeded struct {
	Seq  uint64
	Page Page
}

type FetchFailed struct {
	Seq uint64
	Err error
}

func (Mount) event()          {}
func (ParamsChanged) event()  {}
func (NextPage) event()       {}
func (PrevPage) event()       {}
func (Refresh) event()        {}
func (FetchSucceeded) event() {}
func (FetchFailed) event()    {}

// Request is the single fetch a transition asks the runtime to perform.
type Request struct {
	Seq   uint64
	Query Query
}

type Options struct {
	// StrictErrors moves failed fetches to StatusError and keeps the last good page.
	// When false a failure silently renders an empty page.
	StrictErrors bool
	// DiscardStale drops results whose sequence is older than the latest issued fetch.
	// When false whichever fetch resolves last wins.
	DiscardStale bool
}

// Transition applies ev to s. It returns the next state and, when a fetch must be
// issued, the request for it. At most one request is returned per event.
func Transition(s State, ev Event, opts Options) (State, *Request) {
	switch e := ev.(type) {
	case Mount:
		if s.Mounted {
			return Transition(s, ParamsChanged(e), opts)
		}
		s.Mounted = true
		s.Params = e.Params
		s.Page = 1
		return issue(s)

	case ParamsChanged:
		if !s.Mounted {
			return Transition(s, Mount(e), opts)
		}
		if s.Params.SameSelection(e.Params) {
			s.Params.PageSize = e.Params.PageSize
			return s, nil
		}
		// a selection change supersedes any pending page move
		s.Params = e.Params
		s.Page = 1
		return issue(s)

	case NextPage:
		if !s.Mounted || !s.CanNext() {
			return s, nil
		}
		s.Page++
		return issue(s)

	case PrevPage:
		if !s.Mounted || !s.CanPrev() {
			return s, nil
		}
		s.Page--
		return issue(s)

	case Refresh:
		if !s.Mounted {
			return s, nil
		}
		return issue(s)

	case FetchSucceeded:
		if opts.DiscardStale && e.Seq != s.Seq {
			return s, nil
		}
		s.Status = StatusIdle
		s.Articles = e.Page.Articles
		s.Total = e.Page.Total
		s.Err = ""
		return s, nil

	case FetchFailed:
		if opts.DiscardStale && e.Seq != s.Seq {
			return s, nil
		}
		if opts.StrictErrors {
			s.Status = StatusError
			if e.Err != nil {
				s.Err = e.Err.Error()
			} else {
				s.Err = ErrFetchFailed.Error()
			}
			return s, nil
		}
		s.Status = StatusIdle
		s.Articles = nil
		s.Total = 0
		s.Err = ""
		return s, nil
	}

	return s, nil
}

func issue(s State) (State, *Request) {
	if s.Page < 1 {
		s.Page = 1
	}
	s.Seq++
	s.Status = StatusLoading
	s.Heading = Heading(s.Params)
	s.Title = Title(s.Params)
	return s, &Request{Seq: s.Seq, Query: QueryFor(s.Params, s.Page)}
}
