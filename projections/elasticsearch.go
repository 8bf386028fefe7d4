package projections

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"example.com/backstage/services/fleet/config"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/rs/zerolog/log"
)

// Index names before the configured prefix is applied
const (
	DeliveryHistoryIndex  = "delivery-history"
	ContainerHistoryIndex = "container-history"
	FleetEventsIndex      = "fleet-events"
)

var indices = []string{
	DeliveryHistoryIndex,
	ContainerHistoryIndex,
	FleetEventsIndex,
}

// Indexer stores one document under a stable id, replacing any previous
// version, so projecting an event twice is harmless
type Indexer interface {
	Index(ctx context.Context, index, id string, doc []byte) error
}

// NewElasticsearchClient creates a new Elasticsearch client
func NewElasticsearchClient(cfg config.ElasticConfig) (*elasticsearch.Client, error) {
	elasticCfg := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
		},
	}

	client, err := elasticsearch.NewClient(elasticCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating Elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("error connecting to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned error: %s", res.String())
	}

	log.Info().Msg("Successfully connected to Elasticsearch")
	return client, nil
}

// EnsureIndices creates any missing projection index
func EnsureIndices(ctx context.Context, client *elasticsearch.Client, cfg config.ElasticConfig) error {
	for _, index := range indices {
		name := config.FormatIndex(cfg, index)

		res, err := client.Indices.Exists([]string{name}, client.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("error checking if index %s exists: %w", name, err)
		}
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			continue
		}

		log.Info().Msgf("Creating index %s", name)
		res, err = client.Indices.Create(name, client.Indices.Create.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("error creating index %s: %w", name, err)
		}
		if res.IsError() {
			res.Body.Close()
			return fmt.Errorf("error creating index %s: %s", name, res.String())
		}
		res.Body.Close()
	}

	return nil
}

// ElasticIndexer writes documents with the Elasticsearch index API
type ElasticIndexer struct {
	client *elasticsearch.Client
}

func NewElasticIndexer(client *elasticsearch.Client) *ElasticIndexer {
	return &ElasticIndexer{client: client}
}

// Index implements Indexer
func (e *ElasticIndexer) Index(ctx context.Context, index, id string, doc []byte) error {
	res, err := e.client.Index(
		index,
		bytes.NewReader(doc),
		e.client.Index.WithDocumentID(id),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index document %s in %s: %w", id, index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to index document %s in %s: %s", id, index, res.String())
	}
	return nil
}
