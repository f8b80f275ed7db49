package resolve

import (
	"context"
	"errors"

	"github.com/chroniclehq/chronicle/backend/internal/util"
	"github.com/chroniclehq/chronicle/backend/pkg/logger"
	"github.com/chroniclehq/chronicle/backend/pkg/model"
	"github.com/chroniclehq/chronicle/backend/pkg/store"
)

// DocumentMetadata is what an ingestion source knows about a document before
// it is resolved. Empty fields are simply absent.
type DocumentMetadata struct {
	Title      string
	Language   string
	SourceType string
	URL        string
	PageID     string
	Extract    string
}

// SourceDocumentResolver finds or creates the document record that anchors raw
// events. Wikipedia documents additionally try to resolve the entity the
// article is about; other source types never spawn entities.
type SourceDocumentResolver struct {
	store    store.Storage
	entities *EntityResolver
}

// NewSourceDocumentResolver binds a resolver to transaction-scoped storage and
// the entity resolver used for verification-eligible sources.
func NewSourceDocumentResolver(st store.Storage, entities *EntityResolver) *SourceDocumentResolver {
	return &SourceDocumentResolver{store: st, entities: entities}
}

// ResolveSourceDocument returns the existing document matching the metadata or
// creates a new one with processing status pending. Entity resolution failure
// is tolerated: a document may legitimately have no entity behind it.
func (r *SourceDocumentResolver) ResolveSourceDocument(
	ctx context.Context,
	meta DocumentMetadata,
) (*model.SourceDocument, error) {
	existing, err := r.store.GetSourceDocument(ctx, store.DocumentFilter{
		SourceType: meta.SourceType,
		Title:      meta.Title,
		URL:        meta.URL,
		Language:   meta.Language,
	})
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	entityID := r.resolveDocumentEntity(ctx, meta)

	doc, _, err := r.store.EnsureSourceDocument(ctx, store.NewSourceDocument{
		Title:      meta.Title,
		Language:   meta.Language,
		SourceType: meta.SourceType,
		URL:        meta.URL,
		PageID:     meta.PageID,
		EntityID:   entityID,
		Extract:    util.TruncateRunes(meta.Extract, extractLimit),
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// resolveDocumentEntity finds or creates the entity a verification-eligible
// document is about. Any failure logs and yields no entity link.
func (r *SourceDocumentResolver) resolveDocumentEntity(ctx context.Context, meta DocumentMetadata) *int64 {
	if meta.SourceType != model.SourceTypeWikipedia || meta.Title == "" {
		return nil
	}

	key := store.TitleLanguage{Title: util.NormalizeTitle(meta.Title), Language: meta.Language}
	known, err := r.store.GetEntitiesByTitleLanguage(ctx, meta.SourceType, []store.TitleLanguage{key})
	if err != nil {
		logger.Warn("document entity lookup failed", "title", meta.Title, "error", err)
	} else if entity, ok := known[key]; ok {
		return &entity.ID
	}

	if r.entities == nil {
		return nil
	}

	resolutions, err := r.entities.ResolveEntities(ctx, []model.EntityRequest{{
		Name:     meta.Title,
		TypeHint: model.EntityTypeUnknown,
		Language: meta.Language,
	}}, meta.SourceType)
	if err != nil {
		logger.Warn("document entity resolution failed", "title", meta.Title, "error", err)
		return nil
	}

	if len(resolutions) == 1 && resolutions[0].Outcome == model.OutcomeResolved {
		id := resolutions[0].EntityID
		return &id
	}
	return nil
}
