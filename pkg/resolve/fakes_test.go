package resolve

import (
	"context"
	"fmt"

	"github.com/chroniclehq/chronicle/backend/pkg/model"
	"github.com/chroniclehq/chronicle/backend/pkg/store"
	"github.com/chroniclehq/chronicle/backend/pkg/wiki"
)

// fakeStorage implements store.Storage with overridable function fields.
// Unset fields return empty results so tests only wire what they assert on.
type fakeStorage struct {
	getSourceDocument          func(ctx context.Context, filter store.DocumentFilter) (*model.SourceDocument, error)
	ensureSourceDocument       func(ctx context.Context, doc store.NewSourceDocument) (*model.SourceDocument, bool, error)
	updateSourceDocumentStatus func(ctx context.Context, id int64, status model.ProcessingStatus) error

	getEntitiesByTitleLanguage func(ctx context.Context, sourceType string, keys []store.TitleLanguage) (map[store.TitleLanguage]model.Entity, error)
	getEntitiesByWikibaseItems func(ctx context.Context, items []string) (map[string]model.Entity, error)
	createEntities             func(ctx context.Context, entities []store.NewEntity) ([]model.Entity, error)
	refineEntityType           func(ctx context.Context, id int64, entityType string) error

	ensureRawEvent func(ctx context.Context, raw store.NewRawEvent) (*model.RawEvent, bool, error)

	createEvent            func(ctx context.Context, event store.NewEvent) (*model.Event, error)
	findNearestEvents      func(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]store.EventCandidate, error)
	cosineSimilarity       func(ctx context.Context, eventID int64, embedding []float32) (float64, error)
	eventHasSourceDocument func(ctx context.Context, eventID, sourceDocumentID int64) (bool, error)

	linkEventRawEvent    func(ctx context.Context, eventID, rawEventID int64) error
	linkEventEntities    func(ctx context.Context, eventID int64, entityIDs []int64) error
	linkRawEventEntities func(ctx context.Context, rawEventID int64, entityIDs []int64) error
	linkViewpointEvents  func(ctx context.Context, viewpointID int64, eventIDs []int64) error
}

func (f *fakeStorage) GetSourceDocument(ctx context.Context, filter store.DocumentFilter) (*model.SourceDocument, error) {
	if f.getSourceDocument == nil {
		return nil, store.ErrNotFound
	}
	return f.getSourceDocument(ctx, filter)
}

func (f *fakeStorage) EnsureSourceDocument(ctx context.Context, doc store.NewSourceDocument) (*model.SourceDocument, bool, error) {
	if f.ensureSourceDocument == nil {
		return &model.SourceDocument{
			ID:               1,
			Title:            doc.Title,
			Language:         doc.Language,
			SourceType:       doc.SourceType,
			URL:              doc.URL,
			PageID:           doc.PageID,
			ProcessingStatus: model.StatusPending,
			EntityID:         doc.EntityID,
			Extract:          doc.Extract,
		}, true, nil
	}
	return f.ensureSourceDocument(ctx, doc)
}

func (f *fakeStorage) UpdateSourceDocumentStatus(ctx context.Context, id int64, status model.ProcessingStatus) error {
	if f.updateSourceDocumentStatus == nil {
		return nil
	}
	return f.updateSourceDocumentStatus(ctx, id, status)
}

func (f *fakeStorage) GetEntitiesByTitleLanguage(ctx context.Context, sourceType string, keys []store.TitleLanguage) (map[store.TitleLanguage]model.Entity, error) {
	if f.getEntitiesByTitleLanguage == nil {
		return map[store.TitleLanguage]model.Entity{}, nil
	}
	return f.getEntitiesByTitleLanguage(ctx, sourceType, keys)
}

func (f *fakeStorage) GetEntitiesByWikibaseItems(ctx context.Context, items []string) (map[string]model.Entity, error) {
	if f.getEntitiesByWikibaseItems == nil {
		return map[string]model.Entity{}, nil
	}
	return f.getEntitiesByWikibaseItems(ctx, items)
}

func (f *fakeStorage) CreateEntities(ctx context.Context, entities []store.NewEntity) ([]model.Entity, error) {
	if f.createEntities == nil {
		out := make([]model.Entity, len(entities))
		for i, e := range entities {
			out[i] = model.Entity{
				ID:           int64(i + 1),
				Name:         e.Name,
				Type:         e.Type,
				WikibaseItem: e.WikibaseItem,
				Verified:     true,
			}
		}
		return out, nil
	}
	return f.createEntities(ctx, entities)
}

func (f *fakeStorage) RefineEntityType(ctx context.Context, id int64, entityType string) error {
	if f.refineEntityType == nil {
		return nil
	}
	return f.refineEntityType(ctx, id, entityType)
}

func (f *fakeStorage) EnsureRawEvent(ctx context.Context, raw store.NewRawEvent) (*model.RawEvent, bool, error) {
	if f.ensureRawEvent == nil {
		return &model.RawEvent{
			ID:               1,
			SourceDocumentID: raw.SourceDocumentID,
			DedupSignature:   model.RawEventSignature(raw.Description, raw.DateStr),
			Description:      raw.Description,
			DateStr:          raw.DateStr,
			Date:             raw.Date,
			Context:          raw.Context,
		}, true, nil
	}
	return f.ensureRawEvent(ctx, raw)
}

func (f *fakeStorage) CreateEvent(ctx context.Context, event store.NewEvent) (*model.Event, error) {
	if f.createEvent == nil {
		return &model.Event{
			ID:          1,
			DateStr:     event.DateStr,
			Description: event.Description,
			Date:        event.Date,
			Embedding:   event.Embedding,
		}, nil
	}
	return f.createEvent(ctx, event)
}

func (f *fakeStorage) FindNearestEvents(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]store.EventCandidate, error) {
	if f.findNearestEvents == nil {
		return nil, nil
	}
	return f.findNearestEvents(ctx, embedding, limit, maxDistance)
}

func (f *fakeStorage) CosineSimilarity(ctx context.Context, eventID int64, embedding []float32) (float64, error) {
	if f.cosineSimilarity == nil {
		return 0, store.ErrNotFound
	}
	return f.cosineSimilarity(ctx, eventID, embedding)
}

func (f *fakeStorage) EventHasSourceDocument(ctx context.Context, eventID, sourceDocumentID int64) (bool, error) {
	if f.eventHasSourceDocument == nil {
		return false, nil
	}
	return f.eventHasSourceDocument(ctx, eventID, sourceDocumentID)
}

func (f *fakeStorage) LinkEventRawEvent(ctx context.Context, eventID, rawEventID int64) error {
	if f.linkEventRawEvent == nil {
		return nil
	}
	return f.linkEventRawEvent(ctx, eventID, rawEventID)
}

func (f *fakeStorage) LinkEventEntities(ctx context.Context, eventID int64, entityIDs []int64) error {
	if f.linkEventEntities == nil {
		return nil
	}
	return f.linkEventEntities(ctx, eventID, entityIDs)
}

func (f *fakeStorage) LinkRawEventEntities(ctx context.Context, rawEventID int64, entityIDs []int64) error {
	if f.linkRawEventEntities == nil {
		return nil
	}
	return f.linkRawEventEntities(ctx, rawEventID, entityIDs)
}

func (f *fakeStorage) LinkViewpointEvents(ctx context.Context, viewpointID int64, eventIDs []int64) error {
	if f.linkViewpointEvents == nil {
		return nil
	}
	return f.linkViewpointEvents(ctx, viewpointID, eventIDs)
}

// fakeEmbedder returns a fixed vector, or an error when failWith is set.
type fakeEmbedder struct {
	dim      int
	vector   []float32
	failWith error
	calls    int
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	f.calls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Dimension() int {
	return f.dim
}

// fakeWiki serves lookup results keyed by name.
type fakeWiki struct {
	results map[string]*wiki.LookupResult
	errs    map[string]error
	calls   []string
}

func (f *fakeWiki) Lookup(ctx context.Context, name, language string) (*wiki.LookupResult, error) {
	f.calls = append(f.calls, name)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	if res, ok := f.results[name]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("no fake result for %q", name)
}
