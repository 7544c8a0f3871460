package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsbee/internal/metrics"
	"newsbee/internal/nav"
	"newsbee/internal/news"
)

const sessionCookie = "newsbee_session"

// session pairs a navigation bar with the controller it feeds. params is what
// navigation and routing last selected; the controller diffs it on dispatch.
type session struct {
	mu       sync.Mutex
	params   news.Params
	bar      *nav.Bar
	ctrl     *news.Controller
	lastSeen time.Time
}

func newSession(fetcher news.Fetcher, opts Options, s *Server) *session {
	sess := &session{
		params: news.Params{PageSize: opts.PageSize, Category: opts.DefaultCategory},
		ctrl:   news.NewController(fetcher, opts.Controller, s.logger),
	}
	sess.bar = nav.NewBar(
		func(code string) {
			sess.params.Country = code
			sess.params.Category = opts.DefaultCategory
			sess.params.Search = ""
		},
		func(term string) {
			sess.params.Search = term
		},
	)
	return sess
}

// update applies mutate under the session lock, then hands the resulting
// parameters to the controller. The lock is released before any fetch runs.
func (s *session) update(ctx context.Context, mutate func(*session) error) (news.State, error) {
	s.mu.Lock()
	if err := mutate(s); err != nil {
		s.mu.Unlock()
		return news.State{}, err
	}
	params := s.params
	s.mu.Unlock()

	return s.ctrl.Dispatch(ctx, news.ParamsChanged{Params: params}), nil
}

func (s *session) pendingSearch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bar.Pending()
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
	create   func() *session
}

func newSessionStore(ttl time.Duration, create func() *session) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
		create:   create,
	}
}

// get returns the caller's session, creating one and setting the cookie when the
// request carries no live session.
func (st *sessionStore) get(w http.ResponseWriter, r *http.Request) *session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := st.sessions[c.Value]; ok {
			sess.lastSeen = now
			return sess
		}
	}

	st.sweepLocked(now)

	id := uuid.NewString()
	sess := st.create()
	sess.lastSeen = now
	st.sessions[id] = sess
	metrics.ActiveSessions.Set(float64(len(st.sessions)))

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// peek returns the caller's session without creating one.
func (st *sessionStore) peek(r *http.Request) (*session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[c.Value]
	if ok {
		sess.lastSeen = st.now()
	}
	return sess, ok
}

func (st *sessionStore) sweepLocked(now time.Time) {
	if st.ttl <= 0 {
		return
	}
	for id, sess := range st.sessions {
		if now.Sub(sess.lastSeen) > st.ttl {
			delete(st.sessions, id)
		}
	}
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
