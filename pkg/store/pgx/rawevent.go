package pgx

import (
	"context"

	"github.com/chroniclehq/chronicle/backend/pkg/model"
	"github.com/chroniclehq/chronicle/backend/pkg/store"
)

const rawEventColumns = `id, public_id, source_document_id, dedup_signature, description, date_str, date, context`

const ensureRawEventSQL = `
INSERT INTO raw_events (public_id, source_document_id, dedup_signature, description, date_str, date, context)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (source_document_id, dedup_signature) DO NOTHING
RETURNING ` + rawEventColumns + `;
`

const rawEventBySignatureSQL = `
SELECT ` + rawEventColumns + `
FROM raw_events
WHERE source_document_id = $1 AND dedup_signature = $2;
`

// EnsureRawEvent records a raw event unless the same literal extraction was
// already stored for this document, in which case the existing row comes
// back. Raw events are append-only; there is no update path.
func (s *Store) EnsureRawEvent(ctx context.Context, raw store.NewRawEvent) (*model.RawEvent, bool, error) {
	publicID, err := newPublicID()
	if err != nil {
		return nil, false, err
	}
	signature := model.RawEventSignature(raw.Description, raw.DateStr)

	created, err := scanRawEvent(s.db.QueryRow(ctx, ensureRawEventSQL,
		publicID, raw.SourceDocumentID, signature, raw.Description, raw.DateStr, raw.Date, raw.Context,
	))
	if err == nil {
		return created, true, nil
	}
	if !isNoRows(err) {
		return nil, false, err
	}

	existing, err := scanRawEvent(s.db.QueryRow(ctx, rawEventBySignatureSQL, raw.SourceDocumentID, signature))
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func scanRawEvent(row rowScanner) (*model.RawEvent, error) {
	raw := new(model.RawEvent)
	err := row.Scan(
		&raw.ID, &raw.PublicID, &raw.SourceDocumentID, &raw.DedupSignature,
		&raw.Description, &raw.DateStr, &raw.Date, &raw.Context,
	)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
