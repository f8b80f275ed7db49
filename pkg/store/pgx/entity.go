package pgx

import (
	"context"

	"github.com/chroniclehq/chronicle/backend/pkg/model"
	"github.com/chroniclehq/chronicle/backend/pkg/store"
)

const entitiesByTitleLanguageSQL = `
SELECT e.id, e.public_id, e.name, e.type, e.wikibase_item, e.verified, d.title, d.language
FROM entities e
JOIN source_documents d ON d.entity_id = e.id
WHERE d.source_type = $1
  AND (d.title, d.language) IN (SELECT unnest($2::text[]), unnest($3::text[]));
`

// GetEntitiesByTitleLanguage batch-resolves entities through their verifying
// source document of the given source type. Keys absent from the result map
// have no locally known entity.
func (s *Store) GetEntitiesByTitleLanguage(
	ctx context.Context,
	sourceType string,
	keys []store.TitleLanguage,
) (map[store.TitleLanguage]model.Entity, error) {
	if len(keys) == 0 {
		return map[store.TitleLanguage]model.Entity{}, nil
	}

	titles := make([]string, len(keys))
	languages := make([]string, len(keys))
	for i, k := range keys {
		titles[i] = k.Title
		languages[i] = k.Language
	}

	rows, err := s.db.Query(ctx, entitiesByTitleLanguageSQL, sourceType, titles, languages)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[store.TitleLanguage]model.Entity, len(keys))
	for rows.Next() {
		var e model.Entity
		var key store.TitleLanguage
		if err := rows.Scan(&e.ID, &e.PublicID, &e.Name, &e.Type, &e.WikibaseItem, &e.Verified, &key.Title, &key.Language); err != nil {
			return nil, err
		}
		out[key] = e
	}
	return out, rows.Err()
}

const entitiesByWikibaseItemsSQL = `
SELECT id, public_id, name, type, wikibase_item, verified
FROM entities
WHERE wikibase_item = ANY($1::text[]);
`

// GetEntitiesByWikibaseItems returns existing entities keyed by their
// Wikibase item id.
func (s *Store) GetEntitiesByWikibaseItems(ctx context.Context, items []string) (map[string]model.Entity, error) {
	if len(items) == 0 {
		return map[string]model.Entity{}, nil
	}

	rows, err := s.db.Query(ctx, entitiesByWikibaseItemsSQL, items)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]model.Entity, len(items))
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.PublicID, &e.Name, &e.Type, &e.WikibaseItem, &e.Verified); err != nil {
			return nil, err
		}
		out[e.WikibaseItem] = e
	}
	return out, rows.Err()
}

const createEntitiesSQL = `
INSERT INTO entities (public_id, name, type, wikibase_item, verified)
SELECT unnest($1::text[]), unnest($2::text[]), unnest($3::text[]), unnest($4::text[]), true
RETURNING id, public_id, name, type, wikibase_item, verified;
`

// CreateEntities batch-inserts entities. A duplicate Wikibase item id
// violates the unique constraint and propagates: the caller's transaction
// rolls back and the retried operation finds the row created concurrently.
func (s *Store) CreateEntities(ctx context.Context, entities []store.NewEntity) ([]model.Entity, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	publicIDs := make([]string, len(entities))
	names := make([]string, len(entities))
	types := make([]string, len(entities))
	items := make([]string, len(entities))
	for i, e := range entities {
		publicID, err := newPublicID()
		if err != nil {
			return nil, err
		}
		publicIDs[i] = publicID
		names[i] = e.Name
		types[i] = e.Type
		items[i] = e.WikibaseItem
	}

	rows, err := s.db.Query(ctx, createEntitiesSQL, publicIDs, names, types, items)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Entity, 0, len(entities))
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.PublicID, &e.Name, &e.Type, &e.WikibaseItem, &e.Verified); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const updateEntityTypeSQL = `
UPDATE entities SET type = $2 WHERE id = $1 AND type = $3;
`

// RefineEntityType upgrades a stored placeholder type to a specific one.
// Refinement is monotonic: a row whose type is already specific is left
// untouched.
func (s *Store) RefineEntityType(ctx context.Context, id int64, entityType string) error {
	if entityType == "" || entityType == model.EntityTypeUnknown {
		return nil
	}
	_, err := s.db.Exec(ctx, updateEntityTypeSQL, id, entityType, model.EntityTypeUnknown)
	return err
}
