package noaa

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-damage-aggregator/internal/observability"
)

const (
	detailsFile   = "StormEvents_details-ftp_v1.0_d2024_c20250317.csv.gz"
	locationsFile = "StormEvents_locations-ftp_v1.0_d2024_c20250317.csv.gz"
	fatalFile     = "StormEvents_fatalities-ftp_v1.0_d2024_c20250317.csv.gz"
)

func listingHTML(names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><table><tr><th>Name</th><th>Last modified</th><th>Size</th></tr>")
	b.WriteString(`<tr><td><a href="..">Parent Directory</a></td></tr>`)
	for _, n := range names {
		fmt.Fprintf(&b, `<tr><td><a href=%q>%s</a></td><td>2025-03-17</td><td>1.2M</td></tr>`, n, n)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func gzipped(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second, 3, slog.Default(), observability.NewMetricsForTesting())
}

func TestListFiles(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingHTML(detailsFile, locationsFile, fatalFile))
	}))

	files, err := client.ListFiles(context.Background())
	require.NoError(t, err)

	require.Len(t, files, 3)
	assert.Equal(t, FeedFile{Name: detailsFile, Type: FeedDetails}, files[0])
	assert.Equal(t, FeedFile{Name: locationsFile, Type: FeedLocations}, files[1])
	assert.Equal(t, FeedFile{Name: fatalFile, Type: FeedFatalities}, files[2])
}

func TestListFiles_NoTable(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>maintenance page</body></html>")
	}))

	_, err := client.ListFiles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no file table")
}

func TestFetch_Gunzips(t *testing.T) {
	payload := gzipped(t, "EVENT_ID,LATITUDE,LONGITUDE\nE1,31.0,-98.4\n")
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+locationsFile, r.URL.Path)
		w.Write(payload)
	}))

	data, err := client.Fetch(context.Background(), locationsFile)
	require.NoError(t, err)
	assert.Equal(t, "EVENT_ID,LATITUDE,LONGITUDE\nE1,31.0,-98.4\n", string(data))
}

func TestFetch_RetriesTransientErrors(t *testing.T) {
	payload := gzipped(t, "ok")
	var calls atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(payload)
	}))

	data, err := client.Fetch(context.Background(), detailsFile)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int64(3), calls.Load())
}

func TestFetch_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Fetch(context.Background(), detailsFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int64(3), calls.Load())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		expected FeedType
	}{
		{detailsFile, FeedDetails},
		{locationsFile, FeedLocations},
		{fatalFile, FeedFatalities},
		{"README.txt", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, classify(tt.name), tt.name)
	}
}

func TestExtractor_EndToEnd(t *testing.T) {
	locations := gzipped(t, "EVENT_ID,LATITUDE,LONGITUDE\nE1,31.02,-98.44\n")
	details := gzipped(t, "EVENT_ID,EVENT_TYPE,DAMAGE_PROPERTY\nE1,Hail,2.5K\n")

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingHTML(detailsFile, locationsFile, fatalFile))
	})
	mux.HandleFunc("/"+locationsFile, func(w http.ResponseWriter, r *http.Request) { w.Write(locations) })
	mux.HandleFunc("/"+detailsFile, func(w http.ResponseWriter, r *http.Request) { w.Write(details) })

	ext := NewExtractor(newTestClient(t, mux), slog.Default())

	locs, err := ext.ExtractLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "E1", locs[0].EventID)

	dets, err := ext.ExtractDetails(context.Background())
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "2.5K", dets[0].DamageProperty)
}

func TestExtractor_EmptyListingFails(t *testing.T) {
	ext := NewExtractor(newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingHTML(fatalFile))
	})), slog.Default())

	_, err := ext.ExtractLocations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no locations files")
}
