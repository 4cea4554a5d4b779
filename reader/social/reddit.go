// Package social reads community chatter: subreddit listings and news
// headlines.
package social

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trustclaw/logger"
	"trustclaw/models"
	"trustclaw/reader"
)

const DefaultRedditURL = "https://www.reddit.com"

type listing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
}

// Reddit lists the newest posts of a fixed set of subreddits.
type Reddit struct {
	http       *reader.Client
	baseURL    string
	subreddits []string
	limit      int
	log        *logger.Entry
}

func NewReddit(hc *reader.Client, baseURL string, subreddits []string, limit int) *Reddit {
	if baseURL == "" {
		baseURL = DefaultRedditURL
	}
	if limit <= 0 {
		limit = 25
	}
	return &Reddit{
		http:       hc,
		baseURL:    strings.TrimRight(baseURL, "/"),
		subreddits: subreddits,
		limit:      limit,
		log:        logger.GetLogger().WithComponent("reader.reddit"),
	}
}

func (r *Reddit) Name() string { return "reddit" }

// Posts returns posts from every subreddit that answered. It fails only
// when all of them failed.
func (r *Reddit) Posts(ctx context.Context) ([]models.SocialPost, error) {
	var (
		out  []models.SocialPost
		errs []error
	)
	for _, sub := range r.subreddits {
		if ctx.Err() != nil {
			return out, models.NewTransient("reddit", ctx.Err())
		}
		posts, err := r.subreddit(ctx, sub)
		if err != nil {
			r.log.WithError(err).WithField("subreddit", sub).Warn("subreddit fetch failed")
			errs = append(errs, err)
			continue
		}
		out = append(out, posts...)
	}
	if len(errs) > 0 && len(errs) == len(r.subreddits) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (r *Reddit) subreddit(ctx context.Context, sub string) ([]models.SocialPost, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(r.limit))

	var l listing
	if err := r.http.GetJSON(ctx, r.baseURL+"/r/"+url.PathEscape(sub)+"/new/.json", q, &l); err != nil {
		return nil, fmt.Errorf("r/%s: %w", sub, err)
	}

	out := make([]models.SocialPost, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		p := child.Data
		if p.ID == "" || p.Title == "" {
			continue
		}
		subName := p.Subreddit
		if subName == "" {
			subName = sub
		}
		out = append(out, models.SocialPost{
			ID:        "reddit:" + p.ID,
			Source:    "r/" + subName,
			Title:     p.Title,
			Text:      truncate(p.SelfText, 500),
			Score:     p.Score,
			Comments:  p.NumComments,
			URL:       "https://www.reddit.com" + p.Permalink,
			CreatedAt: time.Unix(int64(p.CreatedUTC), 0).UTC(),
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
