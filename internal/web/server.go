package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newsbee/internal/history"
	"newsbee/internal/metrics"
	"newsbee/internal/nav"
	"newsbee/internal/news"
	"newsbee/internal/upstream"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// DefaultImage is served when an article has no image of its own.
const DefaultImage = "/static/default_icon.svg"

const maxPageSize = 100

type Options struct {
	PageSize        int
	DefaultCategory string
	Controller      news.Options
	SessionTTL      time.Duration
}

type Readiness interface {
	Status() upstream.Status
}

type HistoryLister interface {
	Recent(ctx context.Context, limit int64) ([]history.Record, error)
}

type Server struct {
	fetcher  news.Fetcher
	opts     Options
	logger   *log.Logger
	tmpl     *template.Template
	sessions *sessionStore

	readiness Readiness
	history   HistoryLister
}

func NewServer(fetcher news.Fetcher, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.PageSize < 1 {
		opts.PageSize = 12
	}
	if opts.DefaultCategory == "" {
		opts.DefaultCategory = "general"
	}

	s := &Server{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
		tmpl:    template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
	s.sessions = newSessionStore(opts.SessionTTL, func() *session {
		return newSession(fetcher, opts, s)
	})
	return s
}

func (s *Server) SetReadiness(r Readiness) { s.readiness = r }

func (s *Server) SetHistory(h HistoryLister) { s.history = h }

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	static, _ := fs.Sub(staticFS, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/articles", s.handleArticlesAPI).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistoryAPI).Methods(http.MethodGet)

	r.HandleFunc("/page/next", s.handlePage(news.NextPage{})).Methods(http.MethodPost)
	r.HandleFunc("/page/prev", s.handlePage(news.PrevPage{})).Methods(http.MethodPost)
	r.HandleFunc("/page/refresh", s.handlePage(news.Refresh{})).Methods(http.MethodPost)

	r.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/country/{code}", s.handleCountry).Methods(http.MethodGet)
	r.HandleFunc("/{category}", s.handleCategory).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleCategory).Methods(http.MethodGet)

	return r
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	category, ok := mux.Vars(r)["category"]
	if !ok {
		category = s.opts.DefaultCategory
	}
	category = strings.ToLower(category)
	if !nav.KnownCategory(category) {
		http.NotFound(w, r)
		return
	}

	sess := s.sessions.get(w, r)
	st, _ := sess.update(r.Context(), func(sess *session) error {
		sess.params.Category = category
		sess.params.Country = ""
		sess.params.Search = ""
		return nil
	})
	s.render(w, r, sess, st)
}

func (s *Server) handleCountry(w http.ResponseWriter, r *http.Request) {
	code := strings.ToLower(mux.Vars(r)["code"])

	sess := s.sessions.get(w, r)
	st, err := sess.update(r.Context(), func(sess *session) error {
		return sess.bar.SelectCountry(code)
	})
	if errors.Is(err, nav.ErrUnknownCountry) {
		http.NotFound(w, r)
		return
	}
	s.render(w, r, sess, st)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")

	sess := s.sessions.get(w, r)
	st, _ := sess.update(r.Context(), func(sess *session) error {
		sess.bar.Type(term)
		sess.bar.Search()
		return nil
	})
	s.render(w, r, sess, st)
}

// handlePage dispatches a pagination event and redirects back to the list.
func (s *Server) handlePage(ev news.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		back := safeReturn(r.FormValue("return"))

		if sess, ok := s.sessions.peek(r); ok {
			sess.ctrl.Dispatch(r.Context(), ev)
		}
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

// safeReturn only allows local absolute paths.
func safeReturn(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}

type articleView struct {
	Title       string
	Description string
	Image       string
	URL         string
	PublishedAt string
	Source      string
}

type pageView struct {
	Title      string
	Heading    string
	Loading    bool
	Error      string
	Articles   []articleView
	Page       int
	CanPrev    bool
	CanNext    bool
	Return     string
	Search     string
	Countries  []nav.Link
	Categories []nav.Link
}

func viewArticles(in []news.Article) []articleView {
	out := make([]articleView, 0, len(in))
	for _, a := range in {
		out = append(out, articleView{
			Title:       a.Title,
			Description: a.Description,
			Image:       a.DisplayImage(DefaultImage),
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
			Source:      a.Source,
		})
	}
	return out
}

// render writes the session's list view. Handlers dispatch synchronously, so
// st is normally settled; it is still loading only when this request's fetch
// was superseded by a newer one on the same session that has not resolved yet.
func (s *Server) render(w http.ResponseWriter, r *http.Request, sess *session, st news.State) {
	v := pageView{
		Title:      st.Title,
		Heading:    "NewsBee - " + st.Heading,
		Loading:    st.Status == news.StatusLoading,
		Error:      st.Err,
		Page:       st.Page,
		CanPrev:    st.CanPrev(),
		CanNext:    st.CanNext(),
		Return:     r.URL.RequestURI(),
		Search:     sess.pendingSearch(),
		Countries:  nav.Countries,
		Categories: nav.Categories,
	}
	if !v.Loading {
		v.Articles = viewArticles(st.Articles)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", v); err != nil {
		s.logger.Printf("render failed: %v", err)
	}
}

type articlesResponse struct {
	Heading  string        `json:"heading"`
	Title    string        `json:"title"`
	Query    news.Query    `json:"query"`
	Articles []articleJSON `json:"articles"`
	Total    int           `json:"total"`
	HasPrev  bool          `json:"hasPrev"`
	HasNext  bool          `json:"hasNext"`
}

type articleJSON struct {
	news.Article
	DisplayImage string `json:"displayImage"`
}

// handleArticlesAPI answers one query without session state.
func (s *Server) handleArticlesAPI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := news.Params{
		PageSize: s.opts.PageSize,
		Country:  strings.ToLower(q.Get("country")),
		Category: strings.ToLower(q.Get("category")),
		Search:   q.Get("q"),
	}
	if params.Category == "" {
		params.Category = s.opts.DefaultCategory
	}
	if params.Country != "" && !nav.KnownCountry(params.Country) {
		writeError(w, http.StatusBadRequest, "unknown country "+strconv.Quote(params.Country))
		return
	}

	page, err := positiveInt(q.Get("page"), 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	if params.PageSize, err = positiveInt(q.Get("pageSize"), s.opts.PageSize); err != nil || params.PageSize > maxPageSize {
		writeError(w, http.StatusBadRequest, "invalid pageSize")
		return
	}

	query := news.QueryFor(params, page)
	res, err := news.Execute(r.Context(), s.fetcher, query)
	if err != nil {
		s.logger.Printf("api: fetch %s=%q failed: %v", query.Kind, query.Value, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	out := articlesResponse{
		Heading:  news.Heading(params),
		Title:    news.Title(params),
		Query:    query,
		Articles: make([]articleJSON, 0, len(res.Articles)),
		Total:    res.Total,
		HasPrev:  query.Page > 1,
		HasNext:  res.Total > 0,
	}
	for _, a := range res.Articles {
		out.Articles = append(out.Articles, articleJSON{Article: a, DisplayImage: a.DisplayImage(DefaultImage)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistoryAPI(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "fetch history is disabled")
		return
	}

	limit, err := positiveInt(r.URL.Query().Get("limit"), 20)
	if err != nil || limit > 500 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	recs, err := s.history.Recent(r.Context(), int64(limit))
	if err != nil {
		s.logger.Printf("api: history lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fetches": recs})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.readiness == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ready": true})
		return
	}
	st := s.readiness.Status()
	code := http.StatusOK
	if !st.Up {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"ready": st.Up, "upstream": st})
}

func positiveInt(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
