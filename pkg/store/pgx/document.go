package pgx

import (
	"context"
	"fmt"
	"strings"

	"github.com/chroniclehq/chronicle/backend/pkg/model"
	"github.com/chroniclehq/chronicle/backend/pkg/store"
)

const documentColumns = `id, public_id, title, language, source_type, url, page_id, processing_status, entity_id, extract`

// GetSourceDocument returns the first document matching the filter, or
// store.ErrNotFound. At least one filter field must be set.
func (s *Store) GetSourceDocument(ctx context.Context, filter store.DocumentFilter) (*model.SourceDocument, error) {
	conds := make([]string, 0, 4)
	args := make([]any, 0, 4)

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("source_type", filter.SourceType)
	add("title", filter.Title)
	add("url", filter.URL)
	add("language", filter.Language)

	if len(conds) == 0 {
		return nil, fmt.Errorf("document filter is empty")
	}

	query := fmt.Sprintf(
		"SELECT %s FROM source_documents WHERE %s ORDER BY id LIMIT 1",
		documentColumns, strings.Join(conds, " AND "),
	)

	doc, err := scanDocument(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

const ensureDocumentSQL = `
INSERT INTO source_documents (public_id, title, language, source_type, url, page_id, processing_status, entity_id, extract)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (url, source_type) DO NOTHING
RETURNING ` + documentColumns + `;
`

// EnsureSourceDocument creates the document unless one already exists for the
// same (url, source type) pair, in which case the existing row is returned.
// Safe under concurrent callers: the loser of the insert race re-fetches.
func (s *Store) EnsureSourceDocument(ctx context.Context, doc store.NewSourceDocument) (*model.SourceDocument, bool, error) {
	publicID, err := newPublicID()
	if err != nil {
		return nil, false, err
	}

	created, err := scanDocument(s.db.QueryRow(ctx, ensureDocumentSQL,
		publicID, doc.Title, doc.Language, doc.SourceType, doc.URL, doc.PageID,
		string(model.StatusPending), doc.EntityID, doc.Extract,
	))
	if err == nil {
		return created, true, nil
	}
	if !isNoRows(err) {
		return nil, false, err
	}

	existing, err := s.GetSourceDocument(ctx, store.DocumentFilter{URL: doc.URL, SourceType: doc.SourceType})
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

const updateDocumentStatusSQL = `
UPDATE source_documents SET processing_status = $2 WHERE id = $1;
`

// UpdateSourceDocumentStatus advances the processing status of a document.
// Status is the only mutable column on source documents.
func (s *Store) UpdateSourceDocumentStatus(ctx context.Context, id int64, status model.ProcessingStatus) error {
	_, err := s.db.Exec(ctx, updateDocumentStatusSQL, id, string(status))
	return err
}

func scanDocument(row rowScanner) (*model.SourceDocument, error) {
	doc := new(model.SourceDocument)
	var status string
	err := row.Scan(
		&doc.ID, &doc.PublicID, &doc.Title, &doc.Language, &doc.SourceType,
		&doc.URL, &doc.PageID, &status, &doc.EntityID, &doc.Extract,
	)
	if err != nil {
		return nil, err
	}
	doc.ProcessingStatus = model.ProcessingStatus(status)
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
