package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog/log"

	"soc-log-pipeline/config"
	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/repository"
)

const incidentMapping = `{
  "mappings": {
    "properties": {
      "timestamp":       {"type": "date"},
      "analysis_status": {"type": "keyword"},
      "integrity_hash":  {"type": "keyword"},
      "risk_score":      {"type": "integer"},
      "data":            {"type": "text", "index": false},
      "ai_insights":     {"type": "text", "index": false}
    }
  }
}`

type elasticDocumentStore struct {
	client        *elasticsearch.Client
	incidentIndex string
	now           func() time.Time
}

// NewElasticDocumentStore connects with retries and makes sure the incident index exists.
func NewElasticDocumentStore(cfg *config.Config) (repository.DocumentStore, *elasticsearch.Client, error) {
	if len(cfg.Elasticsearch.Addresses) == 0 {
		log.Error().Msg("Elasticsearch addresses are not configured.")
		return nil, nil, errors.New("elasticsearch configuration missing")
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: time.Second * 10,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
	}
	esCfg := elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		Transport: transport,
	}

	var esClient *elasticsearch.Client
	var err error
	operation := func() error {
		esClient, err = elasticsearch.NewClient(esCfg)
		if err != nil {
			log.Warn().Err(err).Msg("Attempt failed: Error creating the Elasticsearch client")
			return backoff.Permanent(err)
		}

		res, errPing := esClient.Info(
			esClient.Info.WithContext(context.Background()),
		)
		if errPing != nil {
			log.Warn().Err(errPing).Msg("Attempt failed: Error during Elasticsearch Info() call (transport level)")
			return errPing
		}
		defer res.Body.Close()
		if res.IsError() {
			errMsg := fmt.Errorf("elasticsearch Info() returned error status: %s", res.Status())
			log.Warn().Err(errMsg).Msg("Attempt failed: Elasticsearch ping returned error status")
			return errMsg
		}
		log.Info().Msg("Elasticsearch client initialized and connection verified!")
		return nil
	}

	connectBackoff := backoff.NewExponentialBackOff()
	connectBackoff.InitialInterval = 2 * time.Second
	connectBackoff.MaxInterval = 15 * time.Second
	connectBackoff.MaxElapsedTime = 90 * time.Second

	log.Info().Msg("Attempting to connect to Elasticsearch with retries...")
	if err = backoff.Retry(operation, connectBackoff); err != nil {
		log.Error().Err(err).Msg("Failed to connect to Elasticsearch after multiple retries")
		return nil, nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}

	store := newElasticDocumentStore(esClient, cfg.Elasticsearch.IncidentIndex)

	setupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.ensureIndex(setupCtx, store.incidentIndex); err != nil {
		return nil, nil, err
	}
	return store, esClient, nil
}

func newElasticDocumentStore(client *elasticsearch.Client, incidentIndex string) *elasticDocumentStore {
	return &elasticDocumentStore{
		client:        client,
		incidentIndex: incidentIndex,
		now:           time.Now,
	}
}

func (s *elasticDocumentStore) ensureIndex(ctx context.Context, index string) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Info().Str("index", index).Msg("Incident index already exists.")
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: index,
		Body:  bytes.NewReader([]byte(incidentMapping)),
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create index %s returned %s: %s", index, res.Status(), body)
	}
	log.Info().Str("index", index).Msg("Created incident index.")
	return nil
}

func (s *elasticDocumentStore) indexFor(collection string) string {
	if collection == model.IncidentCollection {
		return s.incidentIndex
	}
	return collection
}

func (s *elasticDocumentStore) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	doc := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		doc[k] = v
	}
	doc[model.FieldTimestamp] = s.now().UTC()

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	res, err := esapi.IndexRequest{
		Index:   s.indexFor(collection),
		Body:    bytes.NewReader(body),
		Refresh: "true",
	}.Do(ctx, s.client)
	if err != nil {
		return "", fmt.Errorf("elasticsearch index request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return "", responseError("index", res)
	}

	var indexed struct {
		ID string `json:"_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&indexed); err != nil {
		return "", fmt.Errorf("failed to decode index response: %w", err)
	}
	log.Debug().Str("index", s.indexFor(collection)).Str("doc_id", indexed.ID).Msg("Document added")
	return indexed.ID, nil
}

func (s *elasticDocumentStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	body, err := json.Marshal(map[string]interface{}{"doc": fields})
	if err != nil {
		return fmt.Errorf("failed to marshal partial document: %w", err)
	}
	res, err := esapi.UpdateRequest{
		Index:      s.indexFor(collection),
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("elasticsearch update request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s/%s: %w", collection, id, repository.ErrDocumentNotFound)
	}
	if res.IsError() {
		return responseError("update", res)
	}
	return nil
}

func (s *elasticDocumentStore) Query(ctx context.Context, collection, orderBy string, limit int) ([]repository.Document, error) {
	return s.search(ctx, collection, nil, orderBy, limit)
}

func (s *elasticDocumentStore) QueryWhere(ctx context.Context, collection, field string, value interface{}, orderBy string, limit int) ([]repository.Document, error) {
	filter := map[string]interface{}{
		"term": map[string]interface{}{field: value},
	}
	return s.search(ctx, collection, filter, orderBy, limit)
}

func (s *elasticDocumentStore) search(ctx context.Context, collection string, filter map[string]interface{}, orderBy string, limit int) ([]repository.Document, error) {
	query := map[string]interface{}{
		"size": limit,
		"sort": []map[string]interface{}{
			{orderBy: map[string]string{"order": "desc"}},
		},
	}
	if filter != nil {
		query["query"] = filter
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search body: %w", err)
	}
	res, err := esapi.SearchRequest{
		Index: []string{s.indexFor(collection)},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		log.Error().Err(err).Msg("Error executing Elasticsearch search")
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string                 `json:"_id"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	docs := make([]repository.Document, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, repository.Document{ID: hit.ID, Fields: normalize(hit.Source)})
	}
	log.Debug().Int("returned_hits", len(docs)).Msg("Elasticsearch search successful")
	return docs, nil
}

// normalize converts JSON-decoded values back to the types the pipeline wrote.
func normalize(src map[string]interface{}) map[string]interface{} {
	for k, v := range src {
		switch val := v.(type) {
		case float64:
			if val == float64(int(val)) {
				src[k] = int(val)
			}
		case string:
			if k == model.FieldTimestamp {
				if ts, err := time.Parse(time.RFC3339Nano, val); err == nil {
					src[k] = ts
				}
			}
		}
	}
	return src
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	log.Error().Str("op", op).Str("status", res.Status()).Bytes("response_body", body).Msg("Elasticsearch returned error status")
	return fmt.Errorf("elasticsearch %s returned %s", op, res.Status())
}
