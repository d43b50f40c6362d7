package htmlpage

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
)

// allowedByRobots checks the host's robots.txt before fetching. robots.txt
// is advisory: any failure to fetch or parse it counts as permission, only
// an explicit disallow blocks the scrape.
func (s *Strategy) allowedByRobots(ctx context.Context, page *url.URL) bool {
	robotsURL := page.Scheme + "://" + page.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return true
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", robotsURL).Msg("robots.txt unavailable, proceeding")
		return true
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		log.Debug().Err(err).Str("url", robotsURL).Msg("robots.txt unparseable, proceeding")
		return true
	}

	group := data.FindGroup(s.userAgent)
	if group == nil {
		return true
	}

	path := page.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}
