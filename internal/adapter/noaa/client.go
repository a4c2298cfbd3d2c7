// Package noaa fetches Storm Events bulk CSV feeds from the NCEI public
// archive. All network retries, timeouts, and decompression live here, at
// the I/O boundary; nothing inside the pipeline core ever blocks on the
// network.
package noaa

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/couchcryptid/storm-damage-aggregator/internal/observability"
)

// FeedType identifies which of the three per-year archives a file belongs to.
type FeedType string

const (
	FeedDetails    FeedType = "details"
	FeedLocations  FeedType = "locations"
	FeedFatalities FeedType = "fatalities" // listed but never consumed
)

// FeedFile is one entry of the NCEI directory listing.
type FeedFile struct {
	Name string
	Type FeedType
}

// Client downloads feed files from the NCEI HTTP listing.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     *observability.Metrics
	maxAttempts int
}

// NewClient creates an NCEI archive client. baseURL must end with a slash.
func NewClient(baseURL string, timeout time.Duration, maxAttempts int, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
		metrics:     metrics,
		maxAttempts: maxAttempts,
	}
}

// ListFiles scrapes the directory index page and returns every StormEvents
// archive it advertises, classified by feed type.
func (c *Client) ListFiles(ctx context.Context) ([]FeedFile, error) {
	body, err := c.get(ctx, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer body.Close()

	names, err := parseListing(body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	files := make([]FeedFile, 0, len(names))
	for _, name := range names {
		files = append(files, FeedFile{Name: name, Type: classify(name)})
	}
	c.logger.Info("ncei listing fetched", "files", len(files))
	return files, nil
}

// Fetch downloads one archive, retrying transient failures with exponential
// backoff, and returns the gunzipped CSV bytes.
func (c *Client) Fetch(ctx context.Context, name string) ([]byte, error) {
	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		data, err := c.fetchOnce(ctx, name)
		if err == nil {
			c.metrics.FetchRequests.WithLabelValues("success").Inc()
			return data, nil
		}
		lastErr = err
		c.metrics.FetchRequests.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("feed download failed",
			"file", name, "attempt", attempt, "error", err)
		if attempt < c.maxAttempts {
			if !sleepWithContext(ctx, backoff) {
				break
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}
	}
	return nil, fmt.Errorf("fetch %s: %w", name, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, name string) ([]byte, error) {
	body, err := c.get(ctx, c.baseURL+name)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	gz, err := gzip.NewReader(body)
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// classify derives the feed type from an archive name like
// "StormEvents_details-ftp_v1.0_d2024_c20250317.csv.gz".
func classify(name string) FeedType {
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return ""
	}
	return FeedType(strings.SplitN(parts[1], "-", 2)[0])
}

// parseListing extracts archive names from the index page's file table:
// rows whose first cell starts with "StormEvents".
func parseListing(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	table := findElement(doc, "table")
	if table == nil {
		return nil, fmt.Errorf("no file table in listing page")
	}

	var names []string
	for _, tr := range findAll(table, "tr") {
		cells := findAll(tr, "td")
		if len(cells) < 2 {
			continue // header row
		}
		name := strings.TrimSpace(nodeText(cells[0]))
		if strings.HasPrefix(name, "StormEvents") {
			names = append(names, name)
		}
	}
	return names, nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
			continue
		}
		out = append(out, findAll(c, tag)...)
	}
	return out
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
