package newsapi

// Response is the newsapi.org top-headlines payload. Error responses carry
// Status "error" with Code and Message and no articles.
type Response struct {
	Status       string       `json:"status"`
	Code         string       `json:"code,omitempty"`
	Message      string       `json:"message,omitempty"`
	TotalResults int          `json:"totalResults"`
	Articles     []APIArticle `json:"articles"`
}

type APIArticle struct {
	Source      APISource `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	URLToImage  string    `json:"urlToImage"`
	PublishedAt string    `json:"publishedAt"`
	Content     string    `json:"content"`
}

type APISource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
