// Package dom holds the goquery extraction helpers shared by the HTML-based
// strategies. Selectors are compiled with cascadia before use so a bad
// selector degrades to "no match" instead of a panic deep inside goquery.
package dom

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Link is an anchor with its visible text.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Image is an image source with its alt text.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Table is a flattened HTML table. Rows include header rows, matching the
// upstream record shape.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Parse builds a goquery document from a raw HTML payload.
func Parse(raw []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ValidateSelector reports whether every comma-separated alternative in the
// selector compiles.
func ValidateSelector(selector string) error {
	for _, part := range splitSelector(selector) {
		if _, err := cascadia.Parse(part); err != nil {
			return fmt.Errorf("invalid selector %q: %w", part, err)
		}
	}
	return nil
}

// FirstText evaluates comma-separated selector alternatives in order and
// returns the trimmed text of the first one that matches anything. Invalid
// alternatives are skipped.
func FirstText(doc *goquery.Document, selector string) string {
	for _, part := range splitSelector(selector) {
		m, err := cascadia.Compile(part)
		if err != nil {
			continue
		}
		sel := doc.FindMatcher(m)
		if sel.Length() > 0 {
			return strings.TrimSpace(sel.First().Text())
		}
	}
	return ""
}

// MetaContent returns the content attribute of <meta name=...>.
func MetaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(fmt.Sprintf("meta[name=%q]", name)).First().Attr("content")
	return strings.TrimSpace(content)
}

// Links collects every anchor that carries an href.
func Links(doc *goquery.Document) []Link {
	var links []Link
	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" {
			return
		}
		links = append(links, Link{
			Href: href,
			Text: strings.TrimSpace(sel.Text()),
		})
	})
	return links
}

// Images collects every image that carries a src.
func Images(doc *goquery.Document) []Image {
	var images []Image
	doc.Find("img[src]").Each(func(i int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if src == "" {
			return
		}
		alt, _ := sel.Attr("alt")
		images = append(images, Image{Src: src, Alt: alt})
	})
	return images
}

// Tables collects every table that has at least one row of cells.
func Tables(doc *goquery.Document) []Table {
	var tables []Table
	doc.Find("table").Each(func(i int, tbl *goquery.Selection) {
		var t Table
		tbl.Find("th").Each(func(i int, th *goquery.Selection) {
			t.Headers = append(t.Headers, strings.TrimSpace(th.Text()))
		})
		tbl.Find("tr").Each(func(i int, tr *goquery.Selection) {
			var row []string
			tr.Find("td, th").Each(func(i int, cell *goquery.Selection) {
				row = append(row, strings.TrimSpace(cell.Text()))
			})
			if len(row) > 0 {
				t.Rows = append(t.Rows, row)
			}
		})
		if len(t.Rows) > 0 {
			tables = append(tables, t)
		}
	})
	return tables
}

// Text returns the document's visible text with runs of whitespace collapsed
// to single spaces.
func Text(doc *goquery.Document) string {
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func splitSelector(selector string) []string {
	var parts []string
	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
