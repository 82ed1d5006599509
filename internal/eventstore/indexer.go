package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/common/database"
	"github.com/riskwatch/riskwatch/internal/common/logger"
)

const (
	eventIndex = "riskwatch-events"
	alertIndex = "riskwatch-alerts"

	eventIndexMapping = `{
		"mappings": {
			"properties": {
				"user_id": {"type": "keyword"},
				"device_id": {"type": "keyword"},
				"event_type": {"type": "keyword"},
				"severity": {"type": "keyword"},
				"timestamp": {"type": "date"}
			}
		}
	}`

	alertIndexMapping = `{
		"mappings": {
			"properties": {
				"user_id": {"type": "keyword"},
				"severity": {"type": "keyword"},
				"category": {"type": "keyword"},
				"timestamp": {"type": "date"}
			}
		}
	}`
)

// IndexingStore wraps a Store and mirrors appended events and alerts into
// Elasticsearch for ad hoc investigation queries. Postgres remains the
// source of truth; indexing failures are logged and never fail the append.
type IndexingStore struct {
	Store
	es     *database.ElasticsearchClient
	logger *zap.Logger
}

// NewIndexingStore wraps inner with best-effort Elasticsearch mirroring.
func NewIndexingStore(inner Store, es *database.ElasticsearchClient, log *zap.Logger) *IndexingStore {
	return &IndexingStore{
		Store:  inner,
		es:     es,
		logger: logger.WithComponent(log, "event-indexer"),
	}
}

// EnsureIndices creates the search indices if they do not exist.
func (s *IndexingStore) EnsureIndices() error {
	if err := s.es.EnsureIndex(eventIndex, eventIndexMapping); err != nil {
		return err
	}
	return s.es.EnsureIndex(alertIndex, alertIndexMapping)
}

// AppendEvent stores the event, then mirrors it into the search index.
func (s *IndexingStore) AppendEvent(ctx context.Context, ev *SecurityEvent) error {
	if err := s.Store.AppendEvent(ctx, ev); err != nil {
		return err
	}
	s.index(eventIndex, ev.EventID, ev)
	return nil
}

// AppendAlert stores the alert, then mirrors it into the search index.
func (s *IndexingStore) AppendAlert(ctx context.Context, al *SecurityAlert) error {
	if err := s.Store.AppendAlert(ctx, al); err != nil {
		return err
	}
	s.index(alertIndex, al.AlertID, al)
	return nil
}

func (s *IndexingStore) index(index, docID string, doc interface{}) {
	body, err := json.Marshal(doc)
	if err != nil {
		s.logger.Warn("index marshal failed", zap.String("doc_id", docID), zap.Error(err))
		return
	}
	start := time.Now()
	if err := s.es.Index(index, docID, body); err != nil {
		s.logger.Warn("search index write failed",
			zap.String("index", index),
			zap.String("doc_id", docID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	}
}
