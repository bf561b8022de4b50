package wikipedia

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// plainText strips the highlight markup MediaWiki puts in search snippets.
func plainText(snippet string) string {
	if !strings.ContainsAny(snippet, "<&") {
		return snippet
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return html.UnescapeString(snippet)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
