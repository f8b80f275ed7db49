package pgx

import (
	"context"

	"github.com/chroniclehq/chronicle/backend/pkg/model"
	"github.com/chroniclehq/chronicle/backend/pkg/store"

	"github.com/pgvector/pgvector-go"
)

const createEventSQL = `
INSERT INTO events (public_id, date_str, description, date, embedding)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;
`

// CreateEvent inserts a canonical event and returns it with its generated id.
// The insert is staged on the ambient transaction; the returned id is usable
// for association rows before anything commits.
func (s *Store) CreateEvent(ctx context.Context, event store.NewEvent) (*model.Event, error) {
	publicID, err := newPublicID()
	if err != nil {
		return nil, err
	}

	created := &model.Event{
		PublicID:    publicID,
		DateStr:     event.DateStr,
		Description: event.Description,
		Date:        event.Date,
		Embedding:   event.Embedding,
	}
	err = s.db.QueryRow(ctx, createEventSQL,
		publicID, event.DateStr, event.Description, event.Date, pgvector.NewVector(event.Embedding),
	).Scan(&created.ID)
	if err != nil {
		return nil, err
	}
	return created, nil
}

const findNearestEventsSQL = `
SELECT id, public_id, date_str, description, date, embedding <=> $1 AS distance
FROM events
WHERE embedding <=> $1 < $2
ORDER BY embedding <=> $1
LIMIT $3;
`

// FindNearestEvents returns up to limit events whose cosine distance to the
// query embedding is below maxDistance, closest first. The distance comes
// from the index scan and is treated as approximate by callers.
func (s *Store) FindNearestEvents(
	ctx context.Context,
	embedding []float32,
	limit int,
	maxDistance float64,
) ([]store.EventCandidate, error) {
	rows, err := s.db.Query(ctx, findNearestEventsSQL, pgvector.NewVector(embedding), maxDistance, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]store.EventCandidate, 0, limit)
	for rows.Next() {
		var c store.EventCandidate
		if err := rows.Scan(&c.Event.ID, &c.Event.PublicID, &c.Event.DateStr, &c.Event.Description, &c.Event.Date, &c.Distance); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const cosineSimilaritySQL = `
SELECT 1 - (embedding <=> $2) FROM events WHERE id = $1;
`

// CosineSimilarity recomputes the exact cosine similarity between a stored
// event's embedding and the query embedding. This is the authoritative value
// checked against acceptance thresholds.
func (s *Store) CosineSimilarity(ctx context.Context, eventID int64, embedding []float32) (float64, error) {
	var similarity float64
	err := s.db.QueryRow(ctx, cosineSimilaritySQL, eventID, pgvector.NewVector(embedding)).Scan(&similarity)
	if err != nil {
		if isNoRows(err) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return similarity, nil
}

const eventHasSourceDocumentSQL = `
SELECT EXISTS (
	SELECT 1
	FROM event_raw_events er
	JOIN raw_events r ON r.id = er.raw_event_id
	WHERE er.event_id = $1 AND r.source_document_id = $2
);
`

// EventHasSourceDocument reports whether any raw event from the given source
// document already backs the event. Drives the same-source acceptance
// threshold.
func (s *Store) EventHasSourceDocument(ctx context.Context, eventID, sourceDocumentID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, eventHasSourceDocumentSQL, eventID, sourceDocumentID).Scan(&exists)
	return exists, err
}
