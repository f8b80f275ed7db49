package pgx

import (
	"context"

	"github.com/chroniclehq/chronicle/backend/pkg/store"
)

// Association writers. Every link table has a unique constraint on its
// foreign-key pair and every insert is conflict-tolerant, so re-linking on a
// retried operation is a no-op rather than an error.

const linkChunk = 500

const linkEventRawEventSQL = `
INSERT INTO event_raw_events (event_id, raw_event_id)
VALUES ($1, $2)
ON CONFLICT (event_id, raw_event_id) DO NOTHING;
`

// LinkEventRawEvent attaches one raw event to its canonical event.
func (s *Store) LinkEventRawEvent(ctx context.Context, eventID, rawEventID int64) error {
	_, err := s.db.Exec(ctx, linkEventRawEventSQL, eventID, rawEventID)
	return err
}

const linkEventEntitiesSQL = `
INSERT INTO event_entities (event_id, entity_id)
SELECT $1, unnest($2::bigint[])
ON CONFLICT (event_id, entity_id) DO NOTHING;
`

// LinkEventEntities attaches entities to a canonical event in one batched
// write. Empty input is a no-op.
func (s *Store) LinkEventEntities(ctx context.Context, eventID int64, entityIDs []int64) error {
	ids := store.DedupeInt64s(entityIDs)
	return store.ChunkRange(len(ids), linkChunk, func(start, end int) error {
		_, err := s.db.Exec(ctx, linkEventEntitiesSQL, eventID, ids[start:end])
		return err
	})
}

const linkRawEventEntitiesSQL = `
INSERT INTO raw_event_entities (raw_event_id, entity_id)
SELECT $1, unnest($2::bigint[])
ON CONFLICT (raw_event_id, entity_id) DO NOTHING;
`

// LinkRawEventEntities attaches entities to the raw event they were mentioned
// in. Empty input is a no-op.
func (s *Store) LinkRawEventEntities(ctx context.Context, rawEventID int64, entityIDs []int64) error {
	ids := store.DedupeInt64s(entityIDs)
	return store.ChunkRange(len(ids), linkChunk, func(start, end int) error {
		_, err := s.db.Exec(ctx, linkRawEventEntitiesSQL, rawEventID, ids[start:end])
		return err
	})
}

const linkViewpointEventsSQL = `
INSERT INTO viewpoint_events (viewpoint_id, event_id)
SELECT $1, unnest($2::bigint[])
ON CONFLICT (viewpoint_id, event_id) DO NOTHING;
`

// LinkViewpointEvents attaches canonical events to a viewpoint timeline.
// Empty input is a no-op.
func (s *Store) LinkViewpointEvents(ctx context.Context, viewpointID int64, eventIDs []int64) error {
	ids := store.DedupeInt64s(eventIDs)
	return store.ChunkRange(len(ids), linkChunk, func(start, end int) error {
		_, err := s.db.Exec(ctx, linkViewpointEventsSQL, viewpointID, ids[start:end])
		return err
	})
}
