package social

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"trustclaw/logger"
	"trustclaw/models"
	"trustclaw/reader"
)

const minHeadlineLen = 10

// News scrapes headlines from news pages.
type News struct {
	http  *reader.Client
	urls  []string
	limit int
	now   func() time.Time
	log   *logger.Entry
}

func NewNews(hc *reader.Client, urls []string, limit int) *News {
	if limit <= 0 {
		limit = 10
	}
	return &News{
		http:  hc,
		urls:  urls,
		limit: limit,
		now:   time.Now,
		log:   logger.GetLogger().WithComponent("reader.news"),
	}
}

func (n *News) Name() string { return "news" }

// Posts returns up to limit headlines per page. Like Reddit.Posts it only
// fails when every page failed.
func (n *News) Posts(ctx context.Context) ([]models.SocialPost, error) {
	var (
		out  []models.SocialPost
		errs []error
	)
	for _, page := range n.urls {
		posts, err := n.page(ctx, page)
		if err != nil {
			n.log.WithError(err).WithField("url", page).Warn("news page fetch failed")
			errs = append(errs, err)
			continue
		}
		out = append(out, posts...)
	}
	if len(errs) > 0 && len(errs) == len(n.urls) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (n *News) page(ctx context.Context, page string) ([]models.SocialPost, error) {
	body, err := n.http.GetBody(ctx, page, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewParse("news", fmt.Errorf("parse %s: %w", page, err))
	}
	base, _ := url.Parse(page)
	host := page
	if base != nil && base.Host != "" {
		host = base.Host
	}

	now := n.now().UTC()
	seen := make(map[string]struct{})
	var out []models.SocialPost
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.Join(strings.Fields(s.Text()), " ")
		if len(title) <= minHeadlineLen {
			return true
		}
		if _, dup := seen[title]; dup {
			return true
		}
		seen[title] = struct{}{}

		out = append(out, models.SocialPost{
			ID:        "news:" + headlineID(host, title),
			Source:    host,
			Title:     title,
			URL:       headlineLink(s, base, page),
			CreatedAt: now,
		})
		return len(out) < n.limit
	})
	return out, nil
}

// headlineLink resolves the nearest link around a headline, falling back
// to the page itself.
func headlineLink(s *goquery.Selection, base *url.URL, page string) string {
	href, ok := s.Find("a").First().Attr("href")
	if !ok {
		href, ok = s.Closest("a").Attr("href")
	}
	if !ok || href == "" || base == nil {
		return page
	}
	ref, err := url.Parse(href)
	if err != nil {
		return page
	}
	return base.ResolveReference(ref).String()
}

func headlineID(host, title string) string {
	sum := sha1.Sum([]byte(host + "|" + strings.ToLower(title)))
	return hex.EncodeToString(sum[:8])
}
