package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
)

type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_source":{"id":3,"name":"Red Mug","description":"ceramic","price":"9.50","imageUrl":"/img/mug.png"}}]}}`)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"result":"not_found"}`)
	default:
		_, _ = io.WriteString(w, `{"result":"created"}`)
	}
}

func newIndex(t *testing.T) (*ESIndex, *fakeES) {
	t.Helper()
	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)
	return NewESIndex(client, "products"), fake
}

func TestESIndex_IndexProduct(t *testing.T) {
	idx, fake := newIndex(t)

	err := idx.IndexProduct(context.Background(), &models.Product{ID: 3, Name: "Red Mug", Price: decimal.RequireFromString("9.5")})
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	assert.Equal(t, "PUT /products/_doc/3", fake.requests[0])

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(fake.bodies[0]), &doc))
	assert.Equal(t, "Red Mug", doc["name"])
	assert.Equal(t, "9.50", doc["price"])
}

func TestESIndex_DeleteMissingIsNotAnError(t *testing.T) {
	idx, _ := newIndex(t)
	assert.NoError(t, idx.DeleteProduct(context.Background(), 42))
}

func TestESIndex_Search(t *testing.T) {
	idx, fake := newIndex(t)

	total, items, err := idx.Search(context.Background(), "mug", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, uint(3), items[0].ID)
	assert.Equal(t, "/img/mug.png", items[0].ImageURL)
	assert.True(t, decimal.RequireFromString("9.50").Equal(items[0].Price))

	assert.Contains(t, fake.bodies[0], `"multi_match"`)
	assert.Contains(t, fake.bodies[0], `"name^2"`)
}
