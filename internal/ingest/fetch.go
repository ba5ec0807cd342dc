package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// FetchedContent is raw text plus provenance from one external source.
type FetchedContent struct {
	Text       string
	Title      string
	SourceID   string
	URL        string
	SourceType string
}

// Fetcher pulls content from one kind of external source.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (*FetchedContent, error)
}

// WebFetcher loads a URL and extracts readable text from its HTML.
type WebFetcher struct {
	Client *http.Client
}

func NewWebFetcher() *WebFetcher {
	return &WebFetcher{Client: &http.Client{Timeout: 15 * time.Second}}
}

func (f *WebFetcher) Fetch(ctx context.Context, url string) (*FetchedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", url, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = url
	}

	doc.Find("script, style, noscript, nav, header, footer").Remove()
	var sb strings.Builder
	doc.Find("p, h1, h2, h3, li, article").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	})
	body := sb.String()
	if strings.TrimSpace(body) == "" {
		body = strings.TrimSpace(doc.Find("body").Text())
	}

	return &FetchedContent{
		Text:       body,
		Title:      title,
		SourceID:   url,
		URL:        url,
		SourceType: "url",
	}, nil
}

// TranscriptFetcher retrieves video transcripts by video id through a
// transcript provider endpoint that returns plain text.
type TranscriptFetcher struct {
	Client  *http.Client
	BaseURL string
}

func NewTranscriptFetcher(baseURL string) *TranscriptFetcher {
	return &TranscriptFetcher{
		Client:  &http.Client{Timeout: 15 * time.Second},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (f *TranscriptFetcher) Fetch(ctx context.Context, videoID string) (*FetchedContent, error) {
	endpoint := fmt.Sprintf("%s/%s", f.BaseURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcript %s: %w", videoID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript %s: unexpected status %d", videoID, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	return &FetchedContent{
		Text:       string(body),
		Title:      fmt.Sprintf("Video: %s", videoID),
		SourceID:   videoID,
		URL:        fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
		SourceType: "video",
	}, nil
}

// FeedFetcher pulls every entry of an RSS/Atom feed as one text body.
type FeedFetcher struct {
	parser *gofeed.Parser
}

func NewFeedFetcher() *FeedFetcher {
	return &FeedFetcher{parser: gofeed.NewParser()}
}

func (f *FeedFetcher) Fetch(ctx context.Context, feedURL string) (*FetchedContent, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}

	var sb strings.Builder
	for _, item := range feed.Items {
		sb.WriteString(item.Title)
		sb.WriteString("\n")
		if item.Description != "" {
			sb.WriteString(item.Description)
			sb.WriteString("\n")
		}
		if item.Content != "" {
			sb.WriteString(item.Content)
			sb.WriteString("\n")
		}
	}

	title := feed.Title
	if title == "" {
		title = feedURL
	}
	return &FetchedContent{
		Text:       sb.String(),
		Title:      title,
		SourceID:   feedURL,
		URL:        feedURL,
		SourceType: "feed",
	}, nil
}
