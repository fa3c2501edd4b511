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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeElasticsearch answers the handful of endpoints Client uses
type fakeElasticsearch struct {
	mu       sync.Mutex
	indices  map[string]bool
	docs     map[string]map[string]json.RawMessage
	searches []map[string]interface{}
	hits     []string
	mapping  int
}

func newFakeElasticsearch(t *testing.T) (*fakeElasticsearch, *httptest.Server) {
	fake := &fakeElasticsearch{
		indices: map[string]bool{},
		docs:    map[string]map[string]json.RawMessage{},
	}
	server := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeElasticsearch) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	body, _ := io.ReadAll(r.Body)

	switch {
	case r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"9.0.0","build_flavor":"default"},"tagline":"You Know, for Search"}`)

	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.indices[parts[0]] {
			w.WriteHeader(http.StatusNotFound)
		}

	case len(parts) == 1 && r.Method == http.MethodPut:
		f.indices[parts[0]] = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		delete(f.indices, parts[0])
		_, _ = io.WriteString(w, `{"acknowledged":true}`)

	case len(parts) == 2 && parts[1] == "_mapping":
		if !f.indices[parts[0]] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
			return
		}
		_, _ = io.WriteString(w, `{"`+parts[0]+`":{"mappings":{"_meta":{"version":`+itoa(f.mapping)+`}}}}`)

	case len(parts) == 2 && parts[1] == "_search":
		var query map[string]interface{}
		_ = json.Unmarshal(body, &query)
		f.searches = append(f.searches, query)
		hits := make([]map[string]interface{}, 0, len(f.hits))
		for _, id := range f.hits {
			hits = append(hits, map[string]interface{}{"_id": id, "_score": 1.0})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": map[string]interface{}{
				"total": map[string]interface{}{"value": len(f.hits), "relation": "eq"},
				"hits":  hits,
			},
		})

	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodPut:
		if f.docs[parts[0]] == nil {
			f.docs[parts[0]] = map[string]json.RawMessage{}
		}
		f.docs[parts[0]][parts[2]] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)

	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodDelete:
		if _, ok := f.docs[parts[0]][parts[2]]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
			return
		}
		delete(f.docs[parts[0]], parts[2])
		_, _ = io.WriteString(w, `{"result":"deleted"}`)

	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"unexpected_request","reason":"`+r.Method+` `+r.URL.Path+`"},"status":400}`)
	}
}

func (f *fakeElasticsearch) set(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func (f *fakeElasticsearch) doc(index, id string) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[index][id]
}

func itoa(n int) string {
	data, _ := json.Marshal(n)
	return string(data)
}

func newTestClient(t *testing.T) (*Client, *fakeElasticsearch) {
	fake, server := newFakeElasticsearch(t)
	client, err := NewClient(context.Background(), server.URL, nil)
	require.NoError(t, err)
	return client, fake
}

func TestClientIndexAndDeleteTweet(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	doc := TweetDoc{ID: "t1", UserID: "u1", Username: "alice", Content: "Sunrise over Bagan", Location: "Myanmar", CreatedAt: time.Now()}
	require.NoError(t, client.IndexTweet(ctx, doc))

	var stored TweetDoc
	require.NoError(t, json.Unmarshal(fake.doc(IndexTweets, "t1"), &stored))
	assert.Equal(t, "Sunrise over Bagan", stored.Content)
	assert.Equal(t, "alice", stored.Username)

	require.NoError(t, client.DeleteTweet(ctx, "t1"))
	assert.NoError(t, client.DeleteTweet(ctx, "t1"), "deleting a missing document is not an error")
}

func TestClientSearchReturnsIDsInOrder(t *testing.T) {
	client, fake := newTestClient(t)
	fake.set(func() { fake.hits = []string{"t3", "t1"} })

	hits, err := client.SearchTweets(context.Background(), "bagan", 10, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t1"}, hits.IDs)
	assert.Equal(t, 2, hits.Total)

	fake.set(func() {
		require.Len(t, fake.searches, 1)
		assert.EqualValues(t, 20, fake.searches[0]["from"])
		assert.EqualValues(t, 10, fake.searches[0]["size"])
	})
}

func TestClientInitializeAndVersion(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	outdated, err := client.CheckIndexVersion(ctx, IndexTweets)
	require.NoError(t, err)
	assert.True(t, outdated, "a missing index needs building")

	require.NoError(t, client.InitializeIndices(ctx))
	fake.set(func() {
		assert.True(t, fake.indices[IndexTweets])
		assert.True(t, fake.indices[IndexUsers])
		fake.mapping = IndexVersion - 1
	})
	rebuilt, err := client.RebuildOutdated(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{IndexTweets, IndexUsers}, rebuilt)

	fake.set(func() { fake.mapping = IndexVersion })
	outdated, err = client.CheckIndexVersion(ctx, IndexUsers)
	require.NoError(t, err)
	assert.False(t, outdated)
}

func TestClientErrorResponse(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.index(context.Background(), "other", "", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected_request")
}
