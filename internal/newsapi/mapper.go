package newsapi

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsbee/internal/news"
)

func MapArticle(a APIArticle) news.Article {
	return news.Article{
		Title:       strings.TrimSpace(a.Title),
		Description: plainText(a.Description),
		ImageURL:    strings.TrimSpace(a.URLToImage),
		URL:         a.URL,
		PublishedAt: a.PublishedAt,
		Source:      a.Source.Name,
		Author:      a.Author,
	}
}

func MapResponse(r Response) news.Page {
	page := news.Page{
		Articles: make([]news.Article, 0, len(r.Articles)),
		Total:    r.TotalResults,
	}
	for _, a := range r.Articles {
		page.Articles = append(page.Articles, MapArticle(a))
	}
	return page
}

// plainText strips markup some publishers leave in descriptions, e.g.
// "<p>Markets fell&nbsp;today</p>" -> "Markets fell today"
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	// Fields also splits on U+00A0 left behind by &nbsp;
	return strings.Join(strings.Fields(doc.Text()), " ")
}
