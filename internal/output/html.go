package output

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// strippedTags are removed wholesale before conversion. Scripts and styles
// carry no readable content, and form controls render as noise in markdown.
const strippedTags = "script, style, link, meta, noscript, iframe, svg, form, input, button, select, textarea, canvas"

// keptAttrs whitelists the attributes that survive cleaning, per tag. Every
// other attribute is dropped.
var keptAttrs = map[string]map[string]bool{
	"a":   {"href": true, "title": true},
	"img": {"src": true, "alt": true, "title": true},
}

// CleanHTML strips unwanted elements and attributes, leaving an excerpt safe
// to hand to downstream converters.
func CleanHTML(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	doc.Find(strippedTags).Remove()

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		node := s.Nodes[0]
		allowed := keptAttrs[node.Data]
		var kept []html.Attribute
		for _, attr := range node.Attr {
			if allowed[attr.Key] {
				kept = append(kept, attr)
			}
		}
		node.Attr = kept
	})

	htmlStr, err := doc.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(htmlStr), nil
}
