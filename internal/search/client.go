// Package search queries the restaurant search index: a cuisine-keyed
// secondary index over the record store, reached over signed HTTP.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"dining-concierge/internal/config"
	"dining-concierge/internal/model"
)

// Client wraps the index connection for one named index.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New creates a search client. When an access key is configured, every
// request goes through the signing transport.
func New(cfg config.SearchConfig) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.Endpoint},
	}
	if cfg.AccessKey != "" {
		esCfg.Transport = NewSigningTransport(cfg.AccessKey, cfg.SecretKey, nil)
	}

	// elastic/go-elasticsearch/v8: NewClient builds the transport pool for
	// the configured endpoint.
	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("search: create client: %w", err)
	}
	return &Client{es: es, index: cfg.Index}, nil
}

// QueryByCuisine returns up to limit candidates whose Cuisine term matches
// exactly. Zero hits is a legitimate empty result; a non-2xx status or an
// unparsable body is a failure so the caller's retry policy can engage.
func (c *Client) QueryByCuisine(ctx context.Context, cuisine string, limit int) ([]model.Candidate, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"Cuisine": cuisine,
			},
		},
		"size": limit,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("search: marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: query %q: %w", cuisine, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search: index error: %s", res.String())
	}

	var result esResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	candidates := make([]model.Candidate, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var cand model.Candidate
		if err := json.Unmarshal(hit.Source, &cand); err != nil {
			continue
		}
		if cand.BusinessID == "" {
			continue
		}
		candidates = append(candidates, cand)
	}

	return candidates, nil
}

// IndexCandidate writes one {BusinessID, Cuisine} document, keyed by
// BusinessID so reseeding overwrites instead of duplicating. Used by the
// batch seeding path.
func (c *Client) IndexCandidate(ctx context.Context, cand model.Candidate) error {
	data, err := json.Marshal(cand)
	if err != nil {
		return fmt.Errorf("search: marshal candidate: %w", err)
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(data),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(cand.BusinessID),
	)
	if err != nil {
		return fmt.Errorf("search: index %s: %w", cand.BusinessID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("search: index %s: %s", cand.BusinessID, res.String())
	}
	return nil
}

// esResponse is the generic search response envelope.
type esResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
