package htmlpage

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"
)

// minArticleLength is the shortest extraction worth preferring over the
// selector-based content.
const minArticleLength = 50

// readableContent runs article extraction over the page. It reports false
// when the result is not worth using, so the caller keeps the selector-based
// extraction instead.
func readableContent(rawHTML, pageURL string) (readability.Article, bool) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("Readability skipped: invalid page URL")
		return readability.Article{}, false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("Readability extraction failed")
		return readability.Article{}, false
	}

	if len(strings.TrimSpace(article.TextContent)) < minArticleLength {
		log.Debug().
			Str("url", pageURL).
			Int("length", len(article.TextContent)).
			Msg("Readability extraction too short, keeping selector content")
		return readability.Article{}, false
	}

	return article, true
}
