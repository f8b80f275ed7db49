package resolve

import (
	"context"

	"github.com/chroniclehq/chronicle/backend/pkg/ai"
	"github.com/chroniclehq/chronicle/backend/pkg/logger"
	"github.com/chroniclehq/chronicle/backend/pkg/model"
	"github.com/chroniclehq/chronicle/backend/pkg/store"
)

const (
	// candidateLimit caps how many approximate neighbors the index scan
	// returns per resolution.
	candidateLimit = 5

	// searchMaxDistance is the conservative index-scan cutoff, cosine
	// distance 0.20, i.e. similarity 0.80. Anything farther is never a
	// merge candidate under either threshold.
	searchMaxDistance = 0.20

	// sameSourceThreshold applies when the raw event's document already
	// backs the candidate. Re-extractions from one source vary little, so
	// they must be near-identical to merge.
	sameSourceThreshold = 0.95

	// crossSourceThreshold applies between independent sources, where
	// wording variance for the same occurrence is expected.
	crossSourceThreshold = 0.85
)

// CanonicalEventResolver decides, for each raw event, whether it restates a
// known canonical event or describes a new occurrence. It stages all writes on
// the storage it is bound to and never commits; the caller's transaction
// wrapper makes the resolve-and-link sequence atomic.
type CanonicalEventResolver struct {
	store    store.Storage
	embedder ai.EmbeddingClient
}

// NewCanonicalEventResolver binds a resolver to transaction-scoped storage and
// an embedding client.
func NewCanonicalEventResolver(st store.Storage, embedder ai.EmbeddingClient) *CanonicalEventResolver {
	return &CanonicalEventResolver{store: st, embedder: embedder}
}

// ResolveCanonicalEvent merges the raw event into the closest qualifying
// canonical event, or creates a new one, and links the raw event and its
// entities to the target. The returned event is the merge target; its id is
// valid inside the caller's transaction immediately.
func (r *CanonicalEventResolver) ResolveCanonicalEvent(
	ctx context.Context,
	raw model.RawEvent,
	entities []model.Entity,
) (*model.Event, error) {
	return r.ResolveWithEmbedding(ctx, raw, entities, r.embed(ctx, raw, entities))
}

// ResolveWithEmbedding is ResolveCanonicalEvent with the vector already
// computed, for callers that embed a whole document's raw events in one
// batched request.
func (r *CanonicalEventResolver) ResolveWithEmbedding(
	ctx context.Context,
	raw model.RawEvent,
	entities []model.Entity,
	embedding []float32,
) (*model.Event, error) {
	embedding = ai.FitVector(embedding, r.embedder.Dimension())

	target, err := r.findMatch(ctx, raw, embedding)
	if err != nil {
		return nil, err
	}

	if target == nil {
		target, err = r.store.CreateEvent(ctx, store.NewEvent{
			DateStr:     raw.DateStr,
			Description: raw.Description,
			Date:        raw.Date,
			Embedding:   embedding,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("created canonical event", "event_id", target.ID, "raw_event_id", raw.ID)
	} else {
		logger.Debug("merged into canonical event", "event_id", target.ID, "raw_event_id", raw.ID)
	}

	if err := r.store.LinkEventRawEvent(ctx, target.ID, raw.ID); err != nil {
		return nil, err
	}

	entityIDs := make([]int64, len(entities))
	for i, e := range entities {
		entityIDs[i] = e.ID
	}
	if err := r.store.LinkEventEntities(ctx, target.ID, entityIDs); err != nil {
		return nil, err
	}

	return target, nil
}

// embed computes the raw event's vector. A failed computation degrades to a
// zero vector so the event still gets stored; it just will not be found by
// future similarity searches.
func (r *CanonicalEventResolver) embed(ctx context.Context, raw model.RawEvent, entities []model.Entity) []float32 {
	text := BuildEmbeddingText(raw, entities)

	embedding, err := r.embedder.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		logger.Warn("embedding computation failed, storing zero vector", "raw_event_id", raw.ID, "error", err)
		return ai.ZeroVector(r.embedder.Dimension())
	}
	return ai.FitVector(embedding, r.embedder.Dimension())
}

// findMatch scans the candidate set in ascending-distance order and returns
// the first event whose exact similarity clears its contextual threshold, or
// nil when none qualifies. The index-reported distance only prunes; the
// recomputed similarity is the value the thresholds judge.
func (r *CanonicalEventResolver) findMatch(
	ctx context.Context,
	raw model.RawEvent,
	embedding []float32,
) (*model.Event, error) {
	candidates, err := r.store.FindNearestEvents(ctx, embedding, candidateLimit, searchMaxDistance)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		similarity, err := r.store.CosineSimilarity(ctx, candidate.Event.ID, embedding)
		if err != nil {
			return nil, err
		}

		if similarity >= r.acceptanceThreshold(ctx, candidate.Event.ID, raw.SourceDocumentID) {
			event := candidate.Event
			return &event, nil
		}
	}
	return nil, nil
}

// acceptanceThreshold picks the bar a candidate must clear. When the check for
// shared source documents fails, the cross-source threshold applies: an
// unknown context must never make merging easier than the conservative case.
func (r *CanonicalEventResolver) acceptanceThreshold(ctx context.Context, eventID, sourceDocumentID int64) float64 {
	sameSource, err := r.store.EventHasSourceDocument(ctx, eventID, sourceDocumentID)
	if err != nil {
		logger.Warn("same-source check failed, using cross-source threshold", "event_id", eventID, "error", err)
		return crossSourceThreshold
	}
	if sameSource {
		return sameSourceThreshold
	}
	return crossSourceThreshold
}
