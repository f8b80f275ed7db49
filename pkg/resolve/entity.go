package resolve

import (
	"context"

	"github.com/chroniclehq/chronicle/backend/internal/util"
	"github.com/chroniclehq/chronicle/backend/pkg/logger"
	"github.com/chroniclehq/chronicle/backend/pkg/model"
	"github.com/chroniclehq/chronicle/backend/pkg/store"
	"github.com/chroniclehq/chronicle/backend/pkg/wiki"
)

// extractLimit bounds the stored article extract on source documents.
const extractLimit = 500

// WikiLookup is what the entity resolver needs from the verification source:
// one (name, language) pair resolves to one article or fails.
type WikiLookup interface {
	Lookup(ctx context.Context, name, language string) (*wiki.LookupResult, error)
}

// EntityResolver turns free-text entity mentions into canonical entity rows.
// Local store hits are reused directly; misses go through the verification
// source one at a time and successes are created keyed by their Wikibase item.
// All writes run on the storage the resolver is bound to; the caller owns the
// transaction.
type EntityResolver struct {
	store store.Storage
	wiki  WikiLookup
}

// NewEntityResolver binds a resolver to transaction-scoped storage and a
// verification-source client.
func NewEntityResolver(st store.Storage, w WikiLookup) *EntityResolver {
	return &EntityResolver{store: st, wiki: w}
}

// verifiedLookup pairs a request index with its successful article lookup.
type verifiedLookup struct {
	index  int
	result *wiki.LookupResult
}

// ResolveEntities resolves a batch of mentions. The returned slice always has
// one element per request at the same index, whichever phase resolved it.
// Lookup failures are isolated to their index; storage failures during the
// create phase propagate so the enclosing transaction rolls back as a whole.
func (r *EntityResolver) ResolveEntities(
	ctx context.Context,
	requests []model.EntityRequest,
	sourceType string,
) ([]model.EntityResolution, error) {
	results := make([]model.EntityResolution, len(requests))
	for i, req := range requests {
		results[i] = model.EntityResolution{Request: req}
	}
	if len(requests) == 0 {
		return results, nil
	}

	unresolved := r.resolveLocal(ctx, requests, sourceType, results)
	if len(unresolved) == 0 {
		return results, nil
	}

	verified := r.lookupRemote(ctx, requests, unresolved, results)
	if len(verified) == 0 {
		return results, nil
	}

	if err := r.createOrMerge(ctx, requests, verified, sourceType, results); err != nil {
		return nil, err
	}
	return results, nil
}

// resolveLocal fills results for requests already known to the local store and
// returns the indices still unresolved. A failed batch lookup degrades to
// "nothing found locally" so the remote phase still runs.
func (r *EntityResolver) resolveLocal(
	ctx context.Context,
	requests []model.EntityRequest,
	sourceType string,
	results []model.EntityResolution,
) []int {
	keys := make([]store.TitleLanguage, len(requests))
	for i, req := range requests {
		keys[i] = store.TitleLanguage{
			Title:    util.NormalizeTitle(req.Name),
			Language: req.Language,
		}
	}

	known, err := r.store.GetEntitiesByTitleLanguage(ctx, sourceType, keys)
	if err != nil {
		logger.Warn("local entity lookup failed, falling through to remote", "error", err)
		known = map[store.TitleLanguage]model.Entity{}
	}

	unresolved := make([]int, 0, len(requests))
	for i, req := range requests {
		entity, ok := known[keys[i]]
		if !ok {
			unresolved = append(unresolved, i)
			continue
		}

		r.refineType(ctx, entity, req.TypeHint)
		results[i] = model.EntityResolution{
			Request:  req,
			EntityID: entity.ID,
			Verified: entity.Verified,
			Outcome:  model.OutcomeResolved,
		}
	}
	return unresolved
}

// lookupRemote queries the verification source for every unresolved index,
// sequentially to stay inside third-party rate limits. Each failure is
// recorded at its own index and never blocks the rest of the batch.
func (r *EntityResolver) lookupRemote(
	ctx context.Context,
	requests []model.EntityRequest,
	unresolved []int,
	results []model.EntityResolution,
) []verifiedLookup {
	verified := make([]verifiedLookup, 0, len(unresolved))
	for _, i := range unresolved {
		req := requests[i]

		res, err := r.wiki.Lookup(ctx, req.Name, req.Language)
		switch {
		case err != nil:
			logger.Warn("entity verification lookup failed", "name", req.Name, "language", req.Language, "error", err)
			results[i] = model.EntityResolution{Request: req, Outcome: model.OutcomeError, Err: err}
		case !res.Exists:
			results[i] = model.EntityResolution{Request: req, Outcome: model.OutcomeNotFound}
		case res.IsDisambiguation:
			results[i] = model.EntityResolution{
				Request: req,
				Outcome: model.OutcomeDisambiguation,
				Options: res.DisambiguationOptions,
			}
		case res.WikibaseItem == "":
			// Without the canonical identifier there is no merge key, so the
			// article cannot back an entity.
			logger.Warn("article has no wikibase item", "name", req.Name, "title", res.Title)
			results[i] = model.EntityResolution{Request: req, Outcome: model.OutcomeError}
		default:
			verified = append(verified, verifiedLookup{index: i, result: res})
		}
	}
	return verified
}

// createOrMerge groups verified lookups by Wikibase item, reuses existing
// entities and creates one new entity per unseen item, then ensures a source
// document backing each verified request.
func (r *EntityResolver) createOrMerge(
	ctx context.Context,
	requests []model.EntityRequest,
	verified []verifiedLookup,
	sourceType string,
	results []model.EntityResolution,
) error {
	items := make([]string, 0, len(verified))
	firstByItem := make(map[string]verifiedLookup, len(verified))
	for _, v := range verified {
		item := v.result.WikibaseItem
		if _, seen := firstByItem[item]; !seen {
			firstByItem[item] = v
			items = append(items, item)
		}
	}

	existing, err := r.store.GetEntitiesByWikibaseItems(ctx, items)
	if err != nil {
		return err
	}

	toCreate := make([]store.NewEntity, 0, len(items))
	for _, item := range items {
		if _, ok := existing[item]; ok {
			continue
		}
		first := firstByItem[item]
		entityType := requests[first.index].TypeHint
		if entityType == "" {
			entityType = model.EntityTypeUnknown
		}
		toCreate = append(toCreate, store.NewEntity{
			Name:         first.result.Title,
			Type:         entityType,
			WikibaseItem: item,
		})
	}

	created, err := r.store.CreateEntities(ctx, toCreate)
	if err != nil {
		return err
	}
	for _, e := range created {
		existing[e.WikibaseItem] = e
	}

	for _, v := range verified {
		req := requests[v.index]
		entity, ok := existing[v.result.WikibaseItem]
		if !ok {
			// Should be unreachable: every item was fetched or created above.
			results[v.index] = model.EntityResolution{Request: req, Outcome: model.OutcomeError}
			continue
		}

		r.refineType(ctx, entity, req.TypeHint)

		if _, _, err := r.store.EnsureSourceDocument(ctx, store.NewSourceDocument{
			Title:      v.result.Title,
			Language:   req.Language,
			SourceType: sourceType,
			URL:        v.result.URL,
			PageID:     v.result.PageID,
			EntityID:   &entity.ID,
			Extract:    util.TruncateRunes(v.result.Extract, extractLimit),
		}); err != nil {
			return err
		}

		results[v.index] = model.EntityResolution{
			Request:  req,
			EntityID: entity.ID,
			Verified: true,
			Outcome:  model.OutcomeResolved,
		}
	}
	return nil
}

// refineType upgrades a stored UNKNOWN type when the request carries a more
// specific hint. Refinement is best effort: a failed update only costs the
// upgrade, not the resolution.
func (r *EntityResolver) refineType(ctx context.Context, entity model.Entity, typeHint string) {
	if entity.Type != model.EntityTypeUnknown {
		return
	}
	if typeHint == "" || typeHint == model.EntityTypeUnknown {
		return
	}
	if err := r.store.RefineEntityType(ctx, entity.ID, typeHint); err != nil {
		logger.Warn("entity type refinement failed", "entity_id", entity.ID, "type", typeHint, "error", err)
	}
}
