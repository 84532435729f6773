package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// OpenSearchStore implements Store on an OpenSearch cluster with the k-NN
// plugin. Each collection maps to one index with a knn_vector field using
// the l2 space type. Per-document expiry is stored as an epoch-millis field
// and enforced lazily through query filters; expired documents may still
// physically exist until cleanup runs server-side.
type OpenSearchStore struct {
	client *opensearch.Client
}

// NewOpenSearchStore wraps an explicitly constructed client. The caller owns
// the client's lifecycle.
func NewOpenSearchStore(client *opensearch.Client) *OpenSearchStore {
	return &OpenSearchStore{client: client}
}

type osDocument struct {
	Embedding []float32         `json:"embedding"`
	Payload   map[string]string `json:"payload,omitempty"`
	ExpiresAt *int64            `json:"expires_at,omitempty"` // epoch millis
}

// EnsureCollection creates the index for a collection if it does not exist,
// with a knn_vector mapping of the given dimensionality. Safe to call on
// every startup.
func (s *OpenSearchStore) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	exists, err := opensearchapi.IndicesExistsRequest{Index: []string{collection}}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer exists.Body.Close()
	if exists.StatusCode == 200 {
		return nil
	}

	mapping := map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": dimensions,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "l2",
						"engine":     "lucene",
					},
				},
				"expires_at": map[string]any{"type": "date", "format": "epoch_millis"},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}

	res, err := opensearchapi.IndicesCreateRequest{Index: collection, Body: bytes.NewReader(body)}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to create collection %s: %s", collection, res.String())
	}
	return nil
}

func (s *OpenSearchStore) Upsert(ctx context.Context, collection string, doc Document) error {
	osDoc := osDocument{Embedding: doc.Embedding, Payload: doc.Payload}
	if doc.ExpiresAt != nil {
		millis := doc.ExpiresAt.UnixMilli()
		osDoc.ExpiresAt = &millis
	}
	body, err := json.Marshal(osDoc)
	if err != nil {
		return err
	}

	res, err := opensearchapi.IndexRequest{
		Index:      collection,
		DocumentID: doc.Key,
		Body:       bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("upsert %s/%s: %s", collection, doc.Key, res.String())
	}
	return nil
}

func (s *OpenSearchStore) Get(ctx context.Context, collection, key string) (*Document, error) {
	res, err := opensearchapi.GetRequest{Index: collection, DocumentID: key}.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return nil, ErrNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("get %s/%s: %s", collection, key, res.String())
	}

	var hit struct {
		Found  bool       `json:"found"`
		Source osDocument `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&hit); err != nil {
		return nil, fmt.Errorf("decode get response: %w", err)
	}
	if !hit.Found {
		return nil, ErrNotFound
	}

	doc := fromOSDocument(key, hit.Source)
	if doc.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *OpenSearchStore) BulkGet(ctx context.Context, collection string, keys []string) (map[string]*Document, error) {
	result := make(map[string]*Document, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	body, err := json.Marshal(map[string]any{"ids": keys})
	if err != nil {
		return nil, err
	}

	res, err := opensearchapi.MgetRequest{Index: collection, Body: bytes.NewReader(body)}.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("bulk get %s: %s", collection, res.String())
	}

	var mget struct {
		Docs []struct {
			ID     string     `json:"_id"`
			Found  bool       `json:"found"`
			Source osDocument `json:"_source"`
		} `json:"docs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mget); err != nil {
		return nil, fmt.Errorf("decode mget response: %w", err)
	}

	now := time.Now()
	for _, d := range mget.Docs {
		if !d.Found {
			continue
		}
		doc := fromOSDocument(d.ID, d.Source)
		if doc.Expired(now) {
			continue
		}
		result[d.ID] = doc
	}
	return result, nil
}

func (s *OpenSearchStore) Search(ctx context.Context, collection string, vec []float32, k int, filter Filter) ([]Match, error) {
	query := map[string]any{
		"size":    k,
		"_source": []string{"payload"},
		"query": map[string]any{
			"knn": map[string]any{
				"embedding": map[string]any{
					"vector": vec,
					"k":      k,
					"filter": knnFilter(filter),
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{collection},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", collection, res.String())
	}

	var search struct {
		Hits struct {
			Hits []struct {
				ID     string     `json:"_id"`
				Score  float64    `json:"_score"`
				Source osDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&search); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	matches := make([]Match, 0, len(search.Hits.Hits))
	for _, h := range search.Hits.Hits {
		matches = append(matches, Match{
			Key:      h.ID,
			Distance: l2ScoreToDistance(h.Score),
			Payload:  h.Source.Payload,
		})
	}
	return matches, nil
}

func (s *OpenSearchStore) Delete(ctx context.Context, collection, key string) error {
	res, err := opensearchapi.DeleteRequest{Index: collection, DocumentID: key}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("delete %s/%s: %s", collection, key, res.String())
	}
	return nil
}

// knnFilter builds the server-side filter clause: payload field equality
// plus exclusion of lazily-expired documents.
func knnFilter(filter Filter) map[string]any {
	must := []any{}
	for field, value := range filter {
		must = append(must, map[string]any{
			"term": map[string]any{"payload." + field + ".keyword": value},
		})
	}

	notExpired := map[string]any{
		"bool": map[string]any{
			"should": []any{
				map[string]any{"bool": map[string]any{
					"must_not": map[string]any{"exists": map[string]any{"field": "expires_at"}},
				}},
				map[string]any{"range": map[string]any{
					"expires_at": map[string]any{"gt": time.Now().UnixMilli()},
				}},
			},
		},
	}
	must = append(must, notExpired)

	return map[string]any{"bool": map[string]any{"must": must}}
}

// l2ScoreToDistance inverts OpenSearch's l2 scoring, score = 1/(1 + d^2),
// back into the raw Euclidean distance the index layer expects.
func l2ScoreToDistance(score float64) float64 {
	if score <= 0 {
		return math.MaxFloat64
	}
	d2 := 1/score - 1
	if d2 < 0 {
		return 0
	}
	return math.Sqrt(d2)
}

func fromOSDocument(key string, src osDocument) *Document {
	doc := &Document{Key: key, Embedding: src.Embedding, Payload: src.Payload}
	if src.ExpiresAt != nil {
		t := time.UnixMilli(*src.ExpiresAt)
		doc.ExpiresAt = &t
	}
	return doc
}
