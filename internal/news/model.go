package news

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrFetchFailed marks any failure of the remote news service: transport error,
// non-2xx response, error payload or malformed JSON.
var ErrFetchFailed = errors.New("news fetch failed")

type Article struct {
	Title       string `json:"title" bson:"title"`
	Description string `json:"description,omitempty" bson:"description"`
	ImageURL    string `json:"imageUrl,omitempty" bson:"imageUrl"`
	URL         string `json:"url" bson:"url"`
	PublishedAt string `json:"publishedAt" bson:"publishedAt"`
	Source      string `json:"source,omitempty" bson:"source"`
	Author      string `json:"author,omitempty" bson:"author"`
}

// DisplayImage returns the article image, or fallback when the article has none.
func (a Article) DisplayImage(fallback string) string {
	if strings.TrimSpace(a.ImageURL) == "" {
		return fallback
	}
	return a.ImageURL
}

// Page is one result page as returned by the remote service. Order is preserved.
type Page struct {
	Articles []Article `json:"articles"`
	Total    int       `json:"total"`
}

type Kind string

const (
	KindCountry Kind = "country"
	KindTopic   Kind = "topic"
)

// Query is the resolved fetch intent for one request.
type Query struct {
	Kind     Kind   `json:"kind" bson:"kind"`
	Value    string `json:"value" bson:"value"`
	Page     int    `json:"page" bson:"page"`
	PageSize int    `json:"pageSize" bson:"pageSize"`
}

// Params is the controller configuration supplied by navigation and routing.
type Params struct {
	PageSize int
	Country  string
	Category string
	Search   string
}

// SameSelection reports whether p and o select the same feed. Page size is not part
// of the selection.
func (p Params) SameSelection(o Params) bool {
	return p.Country == o.Country && p.Category == o.Category && p.Search == o.Search
}

func isEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// QueryFor resolves which query to issue for p at the given page.
// Search beats country, country beats category.
func QueryFor(p Params, page int) Query {
	if page < 1 {
		page = 1
	}
	q := Query{Page: page, PageSize: p.PageSize}
	switch {
	case !isEmpty(p.Search):
		q.Kind, q.Value = KindTopic, p.Search
	case !isEmpty(p.Country):
		q.Kind, q.Value = KindCountry, p.Country
	default:
		q.Kind, q.Value = KindTopic, p.Category
	}
	return q
}

// Capitalize uppercases the first character and leaves the rest untouched.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Heading returns the list heading for p.
func Heading(p Params) string {
	switch {
	case !isEmpty(p.Search):
		return "Top " + Capitalize(p.Search) + " Headlines"
	case !isEmpty(p.Country):
		return "Top Headlines in " + strings.ToUpper(p.Country)
	default:
		return "Top " + Capitalize(p.Category) + " Headlines"
	}
}

// Title returns the document title for p.
func Title(p Params) string {
	switch {
	case !isEmpty(p.Search):
		return Capitalize(p.Search) + " - NewsBee"
	case !isEmpty(p.Country):
		return strings.ToUpper(p.Country) + " - NewsBee"
	default:
		return Capitalize(p.Category) + " - NewsBee"
	}
}
