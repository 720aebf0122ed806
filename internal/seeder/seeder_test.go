package seeder

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanContent(t *testing.T) {
	cp := NewContentProcessor()
	in := "<p>Hello   <b>world</b></p>\n\n\n\n  Second\tline  \n"
	assert.Equal(t, "Hello world\n\nSecond line", cp.CleanContent(in))
}

func TestSplitIntoChunks(t *testing.T) {
	cp := NewContentProcessor()

	assert.Nil(t, cp.SplitIntoChunks("   ", 100))
	assert.Equal(t, []string{"short"}, cp.SplitIntoChunks("short", 100))

	text := strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60)
	chunks := cp.SplitIntoChunks(text, 100)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 60), chunks[0])

	long := "First sentence here. Second sentence here. Third sentence here."
	chunks = cp.SplitIntoChunks(long, 45)
	require.Len(t, chunks, 2)
	assert.Equal(t, "First sentence here. Second sentence here.", chunks[0])
	assert.Equal(t, "Third sentence here.", chunks[1])

	for _, c := range cp.SplitIntoChunks(strings.Repeat("word ", 100), 30) {
		assert.LessOrEqual(t, len(c), 30)
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
products:
  - id: crm-01
    name: Acme CRM
    pricing: "฿2,500 / month"
    benefits: [Pipeline tracking, Email sync]
    target_audience: [SMEs]
    description: |
      A CRM for small teams.
`), 0o644))

	products, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Acme CRM", products[0].Name)
	assert.Equal(t, []string{"Pipeline tracking", "Email sync"}, products[0].Benefits)

	text := products[0].Text()
	assert.Contains(t, text, "Name: Acme CRM")
	assert.Contains(t, text, "Pricing: ฿2,500 / month")
	assert.Contains(t, text, "A CRM for small teams.")
	assert.JSONEq(t, `{"id":"crm-01","name":"Acme CRM","description":"A CRM for small teams.\n","benefits":["Pipeline tracking","Email sync"],"pain_points_solved":[],"pricing":"฿2,500 / month","target_audience":["SMEs"]}`, products[0].JSON())
}

func TestLoadCatalog_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"noname.yaml": "products:\n  - id: a\n",
		"noid.yaml":   "products:\n  - name: A\n",
		"dup.yaml":    "products:\n  - {id: a, name: A}\n  - {id: a, name: B}\n",
		"bad.yaml":    "products: [",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := LoadCatalog(path)
		assert.Error(t, err, name)
	}

	_, err := LoadCatalog(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

type fakeBatchEmbedder struct {
	failures int
	calls    int
}

func (f *fakeBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("rate limited")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type fakeChunkStore struct {
	existing map[string]bool
	stored   []models.LibraryChunk
}

func (f *fakeChunkStore) ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, h := range hashes {
		if f.existing[h] {
			out[h] = true
		}
	}
	return out, nil
}

func (f *fakeChunkStore) Upsert(ctx context.Context, chunks []models.LibraryChunk) (int64, error) {
	f.stored = append(f.stored, chunks...)
	return int64(len(chunks)), nil
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestIngest_EmbedsAndSkipsExisting(t *testing.T) {
	products := []Product{
		{ID: "a", Name: "Alpha", Pricing: "$1"},
		{ID: "b", Name: "Beta", Pricing: "$2"},
	}
	embedder := &fakeBatchEmbedder{failures: 1}
	store := &fakeChunkStore{existing: map[string]bool{}}

	in := NewIngestor(embedder, store, NewContentProcessor(), IngestConfig{BatchSize: 10, Retry: fastRetry()}, logrus.New())

	alpha := in.Chunks(products[0])
	require.Len(t, alpha, 1)
	store.existing[alpha[0].ContentHash] = true

	stats, err := in.Ingest(context.Background(), products)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, int64(1), stats.Written)
	assert.Equal(t, 2, embedder.calls, "one failure then success")

	require.Len(t, store.stored, 1)
	assert.Contains(t, store.stored[0].Content, "Name: Beta")
	assert.Len(t, store.stored[0].Embedding.Slice(), 2)
	assert.Contains(t, store.stored[0].JSONContent, `"id":"b"`)
}

func TestIngest_DryRunTouchesNothing(t *testing.T) {
	embedder := &fakeBatchEmbedder{}
	store := &fakeChunkStore{}
	in := NewIngestor(embedder, store, NewContentProcessor(), IngestConfig{DryRun: true}, logrus.New())

	stats, err := in.Ingest(context.Background(), []Product{{ID: "a", Name: "Alpha"}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 0, embedder.calls)
	assert.Empty(t, store.stored)
}

func TestIngest_GivesUpAfterRetries(t *testing.T) {
	embedder := &fakeBatchEmbedder{failures: 10}
	in := NewIngestor(embedder, &fakeChunkStore{}, NewContentProcessor(), IngestConfig{Retry: fastRetry()}, logrus.New())

	_, err := in.Ingest(context.Background(), []Product{{ID: "a", Name: "Alpha"}})
	assert.ErrorContains(t, err, "after 2 retries")
	assert.Equal(t, 3, embedder.calls)
}

func TestChunks_RepeatHeader(t *testing.T) {
	in := NewIngestor(nil, nil, NewContentProcessor(), IngestConfig{MaxChunkChars: 80}, logrus.New())
	p := Product{
		ID:          "x",
		Name:        "Long Product",
		Description: strings.Repeat("This is a sentence about the product. ", 10),
	}

	chunks := in.Chunks(p)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(c.Content, "Product ID: x\nName: Long Product"), c.Content)
	}
}

func TestScraper_ExtractsProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head>
			<title>Acme CRM | Shop</title>
			<meta name="description" content="The CRM for growing teams.">
		</head><body>
			<nav>Home</nav>
			<main>
				<h1>Acme CRM</h1>
				<span class="price">฿2,500</span>
				<p>Track every deal.</p>
				<ul class="features"><li>Pipeline view</li><li>Email sync</li></ul>
			</main>
		</body></html>`))
	}))
	defer server.Close()

	s := NewScraper(ScraperConfig{Parallelism: 1, Timeout: 5 * time.Second}, NewContentProcessor(), logrus.New())
	products, errs := s.Scrape([]string{server.URL + "/crm", server.URL + "/missing", "not a url"})

	require.Len(t, products, 1)
	assert.Len(t, errs, 2)

	p := products[0]
	assert.Equal(t, "Acme CRM", p.Name)
	assert.Equal(t, "฿2,500", p.Pricing)
	assert.Equal(t, []string{"Pipeline view", "Email sync"}, p.Benefits)
	assert.Contains(t, p.Description, "The CRM for growing teams.")
	assert.Contains(t, p.Description, "Track every deal.")
	assert.Len(t, p.ID, 12)
}
