package nav

import (
	"errors"
	"fmt"
)

var ErrUnknownCountry = errors.New("unknown country")

type Link struct {
	Code  string
	Label string
}

// Countries is the fixed set offered in the country dropdown.
var Countries = []Link{
	{"in", "India"},
	{"us", "United States"},
	{"gb", "United Kingdom"},
	{"ca", "Canada"},
	{"au", "Australia"},
	{"za", "South Africa"},
}

// Categories are the topic links shown in the bar.
var Categories = []Link{
	{"business", "Business"},
	{"entertainment", "Entertainment"},
	{"sports", "Sports"},
	{"technology", "Technology"},
	{"health", "Health"},
}

// KnownCategory reports whether c is a category the news API filters on natively.
func KnownCategory(c string) bool {
	switch c {
	case "business", "entertainment", "general", "health", "science", "sports", "technology":
		return true
	}
	return false
}

func KnownCountry(code string) bool {
	for _, c := range Countries {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Bar relays navigation intent upward. It keeps only the pending search text.
type Bar struct {
	pending string

	onCountry func(code string)
	onSearch  func(term string)
}

func NewBar(onCountry, onSearch func(string)) *Bar {
	return &Bar{onCountry: onCountry, onSearch: onSearch}
}

// Type replaces the pending search text, as on every keystroke.
func (b *Bar) Type(text string) {
	b.pending = text
}

func (b *Bar) Pending() string {
	return b.pending
}

// Search emits the pending text unvalidated. Empty means no search.
func (b *Bar) Search() {
	if b.onSearch != nil {
		b.onSearch(b.pending)
	}
}

// SelectCountry emits code when it belongs to Countries.
func (b *Bar) SelectCountry(code string) error {
	if !KnownCountry(code) {
		return fmt.Errorf("%w: %q", ErrUnknownCountry, code)
	}
	if b.onCountry != nil {
		b.onCountry(code)
	}
	return nil
}
