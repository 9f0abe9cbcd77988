// Package ingestion defines the request/response types and Kafka event schema
// of the document ingestion pipeline feeding the indexer.
package ingestion

import "time"

// IngestRequest is the JSON body accepted by POST /api/v1/index. Name is the
// caller's unique document identifier; results are reported by name.
type IngestRequest struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type IngestResponse struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	ShardID int    `json:"shard_id"`
}

// IngestEvent is the Kafka message consumed by the indexer.
type IngestEvent struct {
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	ShardID    int       `json:"shard_id"`
	IngestedAt time.Time `json:"ingested_at"`
}
