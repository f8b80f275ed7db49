package resolve

import (
	"strings"

	"github.com/chroniclehq/chronicle/backend/internal/util"
	"github.com/chroniclehq/chronicle/backend/pkg/model"
)

// contextSnippetLimit bounds how much of the raw context goes into the
// embedding text. The snippet disambiguates, it does not dominate.
const contextSnippetLimit = 200

// BuildEmbeddingText composes the normalized textual form of a raw event for
// vector computation. Parts appear in fixed order so that identical inputs
// always produce identical text: description, date, resolved entities, then a
// bounded context snippet.
func BuildEmbeddingText(raw model.RawEvent, entities []model.Entity) string {
	parts := make([]string, 0, 4)
	parts = append(parts, raw.Description)

	if raw.DateStr != "" {
		parts = append(parts, "Date: "+raw.DateStr)
	}

	if len(entities) > 0 {
		names := make([]string, len(entities))
		for i, e := range entities {
			names[i] = e.Name + " (" + e.Type + ")"
		}
		parts = append(parts, "Entities: "+strings.Join(names, ", "))
	}

	if raw.Context != "" {
		parts = append(parts, "Context: "+util.TruncateRunes(raw.Context, contextSnippetLimit))
	}

	return strings.Join(parts, "\n")
}
