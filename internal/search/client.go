package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
)

// Index names
const (
	IndexTweets = "traveltweets-tweets"
	IndexUsers  = "traveltweets-users"
)

// Hits is one page of matching document IDs in ranking order
type Hits struct {
	IDs   []string `json:"ids"`
	Total int      `json:"total"`
}

// Client wraps the Elasticsearch client with the tweet and user indices
type Client struct {
	es *elasticsearch.Client
}

// NewClient connects to Elasticsearch at url and verifies the cluster answers
func NewClient(ctx context.Context, url string, transport http.RoundTripper) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := es.Info(es.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res, "connecting to Elasticsearch")
	}

	return &Client{es: es}, nil
}

// InitializeIndices creates the search indices if they do not exist
func (c *Client) InitializeIndices(ctx context.Context) error {
	if err := c.createIndex(ctx, IndexTweets, tweetsMapping()); err != nil {
		return fmt.Errorf("failed to create tweets index: %w", err)
	}
	if err := c.createIndex(ctx, IndexUsers, usersMapping()); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}
	return nil
}

func tweetsMapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"_meta": map[string]interface{}{"version": IndexVersion},
			"properties": map[string]interface{}{
				"id":            map[string]interface{}{"type": "keyword"},
				"user_id":       map[string]interface{}{"type": "keyword"},
				"username":      map[string]interface{}{"type": "keyword"},
				"content":       map[string]interface{}{"type": "text", "analyzer": "standard"},
				"location":      map[string]interface{}{"type": "text", "analyzer": "standard", "fields": keywordField()},
				"is_reply":      map[string]interface{}{"type": "boolean"},
				"like_count":    map[string]interface{}{"type": "integer"},
				"retweet_count": map[string]interface{}{"type": "integer"},
				"created_at":    map[string]interface{}{"type": "date"},
			},
		},
	}
}

func usersMapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"_meta": map[string]interface{}{"version": IndexVersion},
			"properties": map[string]interface{}{
				"id": map[string]interface{}{"type": "keyword"},
				"username": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
					"fields": map[string]interface{}{
						"keyword": map[string]interface{}{"type": "keyword"},
						"suggest": map[string]interface{}{"type": "completion", "analyzer": "simple"},
					},
				},
				"display_name":   map[string]interface{}{"type": "text", "analyzer": "standard"},
				"bio":            map[string]interface{}{"type": "text", "analyzer": "standard"},
				"location":       map[string]interface{}{"type": "text", "analyzer": "standard"},
				"follower_count": map[string]interface{}{"type": "integer"},
				"created_at":     map[string]interface{}{"type": "date"},
			},
		},
	}
}

func keywordField() map[string]interface{} {
	return map[string]interface{}{"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256}}
}

func (c *Client) createIndex(ctx context.Context, indexName string, mapping map[string]interface{}) error {
	res, err := c.es.Indices.Exists([]string{indexName}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(indexName,
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError(res, "creating index")
	}
	return nil
}

// IndexTweet writes or replaces a tweet document
func (c *Client) IndexTweet(ctx context.Context, doc TweetDoc) error {
	return c.index(ctx, IndexTweets, doc.ID, doc)
}

// IndexUser writes or replaces a user document
func (c *Client) IndexUser(ctx context.Context, doc UserDoc) error {
	return c.index(ctx, IndexUsers, doc.ID, doc)
}

// DeleteTweet removes a tweet document. A missing document is not an error.
func (c *Client) DeleteTweet(ctx context.Context, tweetID string) error {
	return c.delete(ctx, IndexTweets, tweetID)
}

func (c *Client) index(ctx context.Context, indexName, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := c.es.Index(indexName, bytes.NewReader(body),
		c.es.Index.WithDocumentID(id),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError(res, "indexing "+indexName)
	}
	return nil
}

func (c *Client) delete(ctx context.Context, indexName, id string) error {
	res, err := c.es.Delete(indexName, id, c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError(res, "deleting from "+indexName)
	}
	return nil
}

// SearchTweets matches content, location and author, ranking relevance
// with engagement and recency. Replies are included.
func (c *Client) SearchTweets(ctx context.Context, query string, limit, offset int) (*Hits, error) {
	base := map[string]interface{}{
		"multi_match": map[string]interface{}{
			"query":     query,
			"fields":    []string{"content^2", "location^1.5", "username"},
			"fuzziness": "AUTO",
		},
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"function_score": map[string]interface{}{
				"query": base,
				"functions": []map[string]interface{}{
					{
						"field_value_factor": map[string]interface{}{
							"field":    "like_count",
							"factor":   2.0,
							"modifier": "log1p",
						},
					},
					{
						"field_value_factor": map[string]interface{}{
							"field":    "retweet_count",
							"factor":   1.0,
							"modifier": "log1p",
						},
					},
					{
						"exp": map[string]interface{}{
							"created_at": map[string]interface{}{
								"origin": "now",
								"scale":  "14d",
								"decay":  0.5,
							},
						},
						"weight": 0.5,
					},
				},
				"score_mode": "sum",
				"boost_mode": "multiply",
			},
		},
		"_source": false,
		"from":    offset,
		"size":    limit,
		"sort": []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"created_at": map[string]interface{}{"order": "desc"}},
		},
	}

	return c.search(ctx, IndexTweets, body)
}

// SearchUsers matches username, display name, bio and home location
func (c *Client) SearchUsers(ctx context.Context, query string, limit, offset int) (*Hits, error) {
	match := func(field string, boost float64) map[string]interface{} {
		return map[string]interface{}{
			"match": map[string]interface{}{
				field: map[string]interface{}{
					"query":     query,
					"boost":     boost,
					"fuzziness": "AUTO",
				},
			},
		}
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					match("username", 2.0),
					match("display_name", 1.5),
					match("location", 1.0),
					match("bio", 0.5),
				},
				"minimum_should_match": 1,
			},
		},
		"_source": false,
		"from":    offset,
		"size":    limit,
		"sort": []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"follower_count": map[string]interface{}{"order": "desc"}},
		},
	}

	return c.search(ctx, IndexUsers, body)
}

func (c *Client) search(ctx context.Context, indexName string, query map[string]interface{}) (*Hits, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(indexName),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError(res, "searching "+indexName)
	}

	var searchResp struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := &Hits{IDs: make([]string, 0, len(searchResp.Hits.Hits)), Total: searchResp.Hits.Total.Value}
	for _, hit := range searchResp.Hits.Hits {
		hits.IDs = append(hits.IDs, hit.ID)
	}
	return hits, nil
}

// responseError turns an Elasticsearch error response into an error,
// including the server's reason when the body carries one.
func responseError(res *esapi.Response, action string) error {
	var errResp struct {
		Error json.RawMessage `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err := json.Unmarshal(data, &errResp); err != nil || len(errResp.Error) == 0 {
		return fmt.Errorf("error %s: [%s]", action, res.Status())
	}
	return fmt.Errorf("error %s: [%s] %s", action, res.Status(), errResp.Error)
}
