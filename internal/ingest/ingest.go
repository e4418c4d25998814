// Package ingest assembles document batches for analysis: explicit document
// lists, directory scans, and OpenAPI endpoint seeds.
package ingest

import (
	"github.com/google/uuid"

	"devguard/internal/core/errors"
	"devguard/internal/engine/extract"
	"devguard/internal/shared/util"
)

// Document is one ingestion input.
type Document = extract.Document

// Batch is one atomic unit of ingestion. A batch either produces a new
// snapshot or fails as a whole; there is no partial application.
type Batch struct {
	ID        string
	Documents []Document
}

func NewBatch(docs []extract.Document) Batch {
	return Batch{ID: uuid.NewString(), Documents: docs}
}

// Validate rejects batches that cannot be merged coherently. Per-file parse
// problems are not validation errors; they surface later as unparsed-file
// diagnostics.
func Validate(batch Batch) error {
	if len(batch.Documents) == 0 {
		return errors.New(errors.CodeValidationError, "batch contains no documents")
	}

	seen := make(map[string]int, len(batch.Documents))
	for i, doc := range batch.Documents {
		normalized := util.NormalizePath(doc.Path)
		if normalized == "" {
			return errors.Newf(errors.CodeValidationError, "document %d has an empty path", i)
		}
		if prev, dup := seen[normalized]; dup {
			return errors.Newf(errors.CodeValidationError, "documents %d and %d share path %q", prev, i, normalized)
		}
		seen[normalized] = i
	}
	return nil
}
