package resolve

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/chroniclehq/chronicle/backend/pkg/model"
	"github.com/chroniclehq/chronicle/backend/pkg/store"
	"github.com/chroniclehq/chronicle/backend/pkg/wiki"
)

func TestResolveEntitiesOrderPreserved(t *testing.T) {
	st := &fakeStorage{
		getEntitiesByTitleLanguage: func(ctx context.Context, sourceType string, keys []store.TitleLanguage) (map[store.TitleLanguage]model.Entity, error) {
			return map[store.TitleLanguage]model.Entity{
				{Title: "Austria", Language: "en"}: {ID: 10, Name: "Austria", Type: "COUNTRY", WikibaseItem: "Q40", Verified: true},
			}, nil
		},
	}
	w := &fakeWiki{
		results: map[string]*wiki.LookupResult{
			"Napoleon": {Exists: true, WikibaseItem: "Q517", Title: "Napoleon", URL: "https://en.wikipedia.org/wiki/Napoleon", PageID: "69880"},
			"Zxqw":     {Exists: false},
		},
		errs: map[string]error{
			"Flaky": fmt.Errorf("connection reset"),
		},
	}

	requests := []model.EntityRequest{
		{Name: "Napoleon", TypeHint: "PERSON", Language: "en"},
		{Name: "Austria", TypeHint: "COUNTRY", Language: "en"},
		{Name: "Zxqw", Language: "en"},
		{Name: "Flaky", Language: "en"},
	}

	results, err := NewEntityResolver(st, w).ResolveEntities(context.Background(), requests, model.SourceTypeWikipedia)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(requests) {
		t.Fatalf("expected %d results, got %d", len(requests), len(results))
	}

	wantOutcomes := []model.EntityOutcome{
		model.OutcomeResolved,
		model.OutcomeResolved,
		model.OutcomeNotFound,
		model.OutcomeError,
	}
	for i, want := range wantOutcomes {
		if results[i].Outcome != want {
			t.Fatalf("result %d: outcome %q, want %q", i, results[i].Outcome, want)
		}
		if results[i].Request != requests[i] {
			t.Fatalf("result %d does not echo request %d", i, i)
		}
	}
	if results[1].EntityID != 10 {
		t.Fatalf("local hit should resolve to entity 10, got %d", results[1].EntityID)
	}
	if results[3].Err == nil {
		t.Fatalf("error result should carry the lookup error")
	}
}

func TestResolveEntitiesOneEntityPerWikibaseItem(t *testing.T) {
	var created []store.NewEntity
	var docs []store.NewSourceDocument
	st := &fakeStorage{
		createEntities: func(ctx context.Context, entities []store.NewEntity) ([]model.Entity, error) {
			created = append(created, entities...)
			out := make([]model.Entity, len(entities))
			for i, e := range entities {
				out[i] = model.Entity{ID: 100 + int64(i), Name: e.Name, Type: e.Type, WikibaseItem: e.WikibaseItem, Verified: true}
			}
			return out, nil
		},
		ensureSourceDocument: func(ctx context.Context, doc store.NewSourceDocument) (*model.SourceDocument, bool, error) {
			docs = append(docs, doc)
			return &model.SourceDocument{ID: int64(len(docs)), EntityID: doc.EntityID}, true, nil
		},
	}
	// Two names, two languages, one article.
	w := &fakeWiki{
		results: map[string]*wiki.LookupResult{
			"Napoleon":            {Exists: true, WikibaseItem: "Q517", Title: "Napoleon", URL: "https://en.wikipedia.org/wiki/Napoleon", PageID: "1"},
			"Napoléon Bonaparte": {Exists: true, WikibaseItem: "Q517", Title: "Napoléon Ier", URL: "https://fr.wikipedia.org/wiki/Napoléon_Ier", PageID: "2"},
		},
	}

	requests := []model.EntityRequest{
		{Name: "Napoleon", TypeHint: "PERSON", Language: "en"},
		{Name: "Napoléon Bonaparte", TypeHint: "PERSON", Language: "fr"},
	}

	results, err := NewEntityResolver(st, w).ResolveEntities(context.Background(), requests, model.SourceTypeWikipedia)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(created) != 1 {
		t.Fatalf("expected exactly one entity for one wikibase item, created %d", len(created))
	}
	if created[0].WikibaseItem != "Q517" {
		t.Fatalf("created entity has item %q, want Q517", created[0].WikibaseItem)
	}
	if results[0].EntityID != results[1].EntityID {
		t.Fatalf("both requests should share one entity: %d vs %d", results[0].EntityID, results[1].EntityID)
	}
	// Each verified request still gets its own backing document.
	if len(docs) != 2 {
		t.Fatalf("expected one source document per verified request, got %d", len(docs))
	}
	for _, doc := range docs {
		if doc.EntityID == nil || *doc.EntityID != results[0].EntityID {
			t.Fatalf("source document not linked to resolved entity: %+v", doc)
		}
	}
}

func TestResolveEntitiesReusesExistingByWikibaseItem(t *testing.T) {
	st := &fakeStorage{
		getEntitiesByWikibaseItems: func(ctx context.Context, items []string) (map[string]model.Entity, error) {
			if !reflect.DeepEqual(items, []string{"Q40"}) {
				t.Fatalf("unexpected item batch: %v", items)
			}
			return map[string]model.Entity{
				"Q40": {ID: 7, Name: "Austria", Type: "COUNTRY", WikibaseItem: "Q40", Verified: true},
			}, nil
		},
		createEntities: func(ctx context.Context, entities []store.NewEntity) ([]model.Entity, error) {
			if len(entities) != 0 {
				t.Fatalf("existing entity must be reused, tried to create %v", entities)
			}
			return nil, nil
		},
	}
	w := &fakeWiki{
		results: map[string]*wiki.LookupResult{
			"Österreich": {Exists: true, WikibaseItem: "Q40", Title: "Österreich", URL: "https://de.wikipedia.org/wiki/Österreich", PageID: "3"},
		},
	}

	results, err := NewEntityResolver(st, w).ResolveEntities(
		context.Background(),
		[]model.EntityRequest{{Name: "Österreich", TypeHint: "COUNTRY", Language: "de"}},
		model.SourceTypeWikipedia,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Outcome != model.OutcomeResolved || results[0].EntityID != 7 {
		t.Fatalf("expected reuse of entity 7, got %+v", results[0])
	}
}

func TestResolveEntitiesLocalFailureFallsThroughToRemote(t *testing.T) {
	st := &fakeStorage{
		getEntitiesByTitleLanguage: func(ctx context.Context, sourceType string, keys []store.TitleLanguage) (map[store.TitleLanguage]model.Entity, error) {
			return nil, fmt.Errorf("connection lost")
		},
	}
	w := &fakeWiki{
		results: map[string]*wiki.LookupResult{
			"Napoleon": {Exists: true, WikibaseItem: "Q517", Title: "Napoleon", URL: "u", PageID: "1"},
		},
	}

	results, err := NewEntityResolver(st, w).ResolveEntities(
		context.Background(),
		[]model.EntityRequest{{Name: "Napoleon", Language: "en"}},
		model.SourceTypeWikipedia,
	)
	if err != nil {
		t.Fatalf("local lookup failure must not abort the batch: %v", err)
	}
	if results[0].Outcome != model.OutcomeResolved {
		t.Fatalf("expected remote resolution after local failure, got %+v", results[0])
	}
	if len(w.calls) != 1 {
		t.Fatalf("expected one remote lookup, got %d", len(w.calls))
	}
}

func TestResolveEntitiesDisambiguation(t *testing.T) {
	w := &fakeWiki{
		results: map[string]*wiki.LookupResult{
			"Mercury": {
				Exists:                true,
				IsDisambiguation:      true,
				DisambiguationOptions: []string{"Mercury (planet)", "Mercury (element)"},
			},
		},
	}

	results, err := NewEntityResolver(&fakeStorage{}, w).ResolveEntities(
		context.Background(),
		[]model.EntityRequest{{Name: "Mercury", Language: "en"}},
		model.SourceTypeWikipedia,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Outcome != model.OutcomeDisambiguation {
		t.Fatalf("expected disambiguation outcome, got %q", results[0].Outcome)
	}
	if !reflect.DeepEqual(results[0].Options, []string{"Mercury (planet)", "Mercury (element)"}) {
		t.Fatalf("unexpected options: %v", results[0].Options)
	}
}

func TestResolveEntitiesRejectsArticleWithoutWikibaseItem(t *testing.T) {
	w := &fakeWiki{
		results: map[string]*wiki.LookupResult{
			"Draft page": {Exists: true, Title: "Draft page"},
		},
	}

	results, err := NewEntityResolver(&fakeStorage{}, w).ResolveEntities(
		context.Background(),
		[]model.EntityRequest{{Name: "Draft page", Language: "en"}},
		model.SourceTypeWikipedia,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Outcome != model.OutcomeError {
		t.Fatalf("article without merge key must yield an error result, got %q", results[0].Outcome)
	}
}

func TestResolveEntitiesRefinesUnknownType(t *testing.T) {
	var refined []string
	st := &fakeStorage{
		getEntitiesByTitleLanguage: func(ctx context.Context, sourceType string, keys []store.TitleLanguage) (map[store.TitleLanguage]model.Entity, error) {
			return map[store.TitleLanguage]model.Entity{
				{Title: "Austria", Language: "en"}: {ID: 1, Type: model.EntityTypeUnknown},
				{Title: "France", Language: "en"}:  {ID: 2, Type: "COUNTRY"},
			}, nil
		},
		refineEntityType: func(ctx context.Context, id int64, entityType string) error {
			refined = append(refined, fmt.Sprintf("%d=%s", id, entityType))
			return nil
		},
	}

	_, err := NewEntityResolver(st, &fakeWiki{}).ResolveEntities(
		context.Background(),
		[]model.EntityRequest{
			{Name: "Austria", TypeHint: "COUNTRY", Language: "en"},
			{Name: "France", TypeHint: "PLACE", Language: "en"},
		},
		model.SourceTypeWikipedia,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Only the UNKNOWN row is refined; the specific type stays put.
	if !reflect.DeepEqual(refined, []string{"1=COUNTRY"}) {
		t.Fatalf("unexpected refinements: %v", refined)
	}
}

func TestResolveEntitiesEmptyBatch(t *testing.T) {
	results, err := NewEntityResolver(&fakeStorage{}, &fakeWiki{}).ResolveEntities(
		context.Background(), nil, model.SourceTypeWikipedia,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result for empty batch, got %d", len(results))
	}
}
