package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/provider"
)

const (
	NewsDataBaseURL = "https://newsdata.io"
	NewsAPIBaseURL  = "https://newsapi.org"

	noDescription = "No description available"
	unknownSource = "Unknown"
)

// NewsData NewsData.io，免费档每天 200 次
type NewsData struct {
	BaseURL string
	APIKey  string
	Query   string
	client  *Client
	now     func() time.Time
}

func NewNewsData(client *Client, baseURL, apiKey string) *NewsData {
	if baseURL == "" {
		baseURL = NewsDataBaseURL
	}
	return &NewsData{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Query:   "crypto OR bitcoin OR ethereum OR cryptocurrency",
		client:  client,
		now:     time.Now,
	}
}

func (n *NewsData) Name() string { return "newsdata" }

type newsDataResponse struct {
	Status  string `json:"status"`
	Results []struct {
		ArticleID   string `json:"article_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		SourceID    string `json:"source_id"`
		PubDate     string `json:"pubDate"`
		Link        string `json:"link"`
		ImageURL    string `json:"image_url"`
	} `json:"results"`
}

func (n *NewsData) Fetch(ctx context.Context, _ provider.Params) ([]model.NewsArticle, error) {
	if n.APIKey == "" {
		return nil, provider.Unavailable("newsdata api key not configured")
	}
	q := url.Values{}
	q.Set("apikey", n.APIKey)
	q.Set("q", n.Query)
	q.Set("language", "en")
	q.Set("category", "business,technology")

	var body newsDataResponse
	if err := n.client.getJSON(ctx, n.BaseURL+"/api/1/news", q, nil, &body); err != nil {
		return nil, err
	}
	if body.Status != "success" {
		return nil, provider.Malformed(fmt.Errorf("status %q", body.Status))
	}

	now := n.now()
	out := make([]model.NewsArticle, 0, len(body.Results))
	for _, r := range body.Results {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		desc := firstNonEmpty(r.Description, r.Content, noDescription)
		out = append(out, model.NewsArticle{
			ID:          r.ArticleID,
			Title:       r.Title,
			Description: desc,
			Source:      firstNonEmpty(r.SourceID, unknownSource),
			PublishedAt: parseTime(r.PubDate, now),
			URL:         r.Link,
			ImageURL:    r.ImageURL,
		})
	}
	return UniqueIDs(out), nil
}

// NewsAPI newsapi.org /v2/everything
type NewsAPI struct {
	BaseURL  string
	APIKey   string
	Query    string
	PageSize int
	client   *Client
	now      func() time.Time
}

func NewNewsAPI(client *Client, baseURL, apiKey string) *NewsAPI {
	if baseURL == "" {
		baseURL = NewsAPIBaseURL
	}
	return &NewsAPI{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		Query:    `cryptocurrency OR "federal reserve" OR forex OR "stock market" OR trading OR bitcoin OR inflation`,
		PageSize: 20,
		client:   client,
		now:      time.Now,
	}
}

func (n *NewsAPI) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (n *NewsAPI) Fetch(ctx context.Context, _ provider.Params) ([]model.NewsArticle, error) {
	if n.APIKey == "" {
		return nil, provider.Unavailable("newsapi api key not configured")
	}
	q := url.Values{}
	q.Set("q", n.Query)
	q.Set("language", "en")
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", fmt.Sprint(n.PageSize))
	q.Set("apiKey", n.APIKey)

	var body newsAPIResponse
	if err := n.client.getJSON(ctx, n.BaseURL+"/v2/everything", q, nil, &body); err != nil {
		return nil, err
	}
	if body.Status != "ok" {
		return nil, provider.Malformed(fmt.Errorf("status %q: %s", body.Status, body.Message))
	}

	now := n.now()
	out := make([]model.NewsArticle, 0, len(body.Articles))
	for _, a := range body.Articles {
		if strings.TrimSpace(a.Title) == "" {
			continue
		}
		out = append(out, model.NewsArticle{
			Title:       a.Title,
			Description: firstNonEmpty(a.Description, noDescription),
			Source:      firstNonEmpty(a.Source.Name, unknownSource),
			PublishedAt: parseTime(a.PublishedAt, now),
			URL:         a.URL,
			ImageURL:    a.URLToImage,
		})
	}
	return UniqueIDs(out), nil
}

// UniqueIDs 空 id 或重复 id 换成 uuid，保证一批新闻里 id 唯一
func UniqueIDs(news []model.NewsArticle) []model.NewsArticle {
	seen := make(map[string]struct{}, len(news))
	for i := range news {
		if _, dup := seen[news[i].ID]; news[i].ID == "" || dup {
			news[i].ID = uuid.NewString()
		}
		seen[news[i].ID] = struct{}{}
	}
	return news
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", time.RFC1123Z}

func parseTime(s string, fallback time.Time) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
