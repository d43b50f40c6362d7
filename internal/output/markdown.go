package output

import (
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"github.com/DONALDBZR/Crawly/internal/utils/urlutil"
	"github.com/DONALDBZR/Crawly/pkg/models"
)

// formatMarkdown renders a record as a readable document. Records carrying
// page HTML get the body converted to GitHub-flavored markdown; anything else
// falls back to a key/value listing.
func (f Formatter) formatMarkdown(record *models.NormalizedRecord) (string, error) {
	title, _ := record.Data["page_title"].(string)
	if title == "" {
		title = record.EntityType + " " + record.EntityID
	}

	var sb strings.Builder
	sb.WriteString("# " + title + "\n\n")
	fmt.Fprintf(&sb, "- Entity: %s %s\n", record.EntityType, record.EntityID)
	fmt.Fprintf(&sb, "- Scraped: %s\n", record.Timestamp.Format(time.RFC3339))

	contentHTML, _ := record.Data["content_html"].(string)
	if contentHTML == "" {
		sb.WriteString("\n## Data\n\n")
		sb.WriteString(dataListing(record.Data))
		return sb.String(), nil
	}

	if description, _ := record.Data["description"].(string); description != "" {
		sb.WriteString("\n> " + description + "\n")
	}

	body, err := f.htmlToMarkdown(contentHTML)
	if err != nil {
		return "", err
	}
	sb.WriteString("\n" + body + "\n")
	return sb.String(), nil
}

// htmlToMarkdown strips unsafe markup and converts what is left. Relative
// links resolve against the formatter's base URL when one is set.
func (f Formatter) htmlToMarkdown(contentHTML string) (string, error) {
	cleaned, err := CleanHTML(contentHTML)
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	if f.BaseURL != "" {
		converter.AddRules(md.Rule{
			Filter: []string{"a"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				href, exists := selec.Attr("href")
				if !exists {
					return nil
				}
				resolved := urlutil.Resolve(f.BaseURL, href)
				if title, hasTitle := selec.Attr("title"); hasTitle {
					str := fmt.Sprintf("[%s](%s %q)", selec.Text(), resolved, title)
					return &str
				}
				str := fmt.Sprintf("[%s](%s)", selec.Text(), resolved)
				return &str
			},
		})
	}

	return converter.ConvertString(cleaned)
}

func dataListing(data map[string]any) string {
	var sb strings.Builder
	for _, key := range sortedKeys(data) {
		value := data[key]
		if nested, ok := nestedMap(value); ok {
			fmt.Fprintf(&sb, "- %s:\n", key)
			for _, k := range sortedKeys(nested) {
				fmt.Fprintf(&sb, "  - %s: %v\n", k, nested[k])
			}
			continue
		}
		fmt.Fprintf(&sb, "- %s: %v\n", key, value)
	}
	return sb.String()
}
