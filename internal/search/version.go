package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// IndexVersion tracks the mapping version stored in each index's mapping
// _meta. Increment it whenever the index mappings change; migrate --reindex
// rebuilds outdated indices.
// v1: initial, v2: location keyword subfield and is_reply
const IndexVersion = 2

// CheckIndexVersion reports whether indexName is missing or was created
// with an older mapping version.
func (c *Client) CheckIndexVersion(ctx context.Context, indexName string) (bool, error) {
	res, err := c.es.Indices.GetMapping(
		c.es.Indices.GetMapping.WithIndex(indexName),
		c.es.Indices.GetMapping.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to get index mapping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == http.StatusNotFound {
			return true, nil
		}
		return false, responseError(res, "getting index mapping")
	}

	var mappingResp map[string]struct {
		Mappings struct {
			Meta struct {
				Version int `json:"version"`
			} `json:"_meta"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mappingResp); err != nil {
		// Unreadable mappings are treated as outdated
		return true, nil
	}

	return mappingResp[indexName].Mappings.Meta.Version < IndexVersion, nil
}

// DeleteIndex deletes an index. A missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context, indexName string) error {
	res, err := c.es.Indices.Delete(
		[]string{indexName},
		c.es.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError(res, "deleting index")
	}
	return nil
}

// RebuildOutdated drops every index whose mapping version is behind
// IndexVersion and recreates the missing ones. It returns the indices it
// dropped; they are empty until reindexed.
func (c *Client) RebuildOutdated(ctx context.Context) ([]string, error) {
	var rebuilt []string
	for _, name := range []string{IndexTweets, IndexUsers} {
		outdated, err := c.CheckIndexVersion(ctx, name)
		if err != nil {
			return rebuilt, err
		}
		if !outdated {
			continue
		}
		if err := c.DeleteIndex(ctx, name); err != nil {
			return rebuilt, err
		}
		rebuilt = append(rebuilt, name)
	}
	if err := c.InitializeIndices(ctx); err != nil {
		return rebuilt, err
	}
	return rebuilt, nil
}
