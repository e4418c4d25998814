package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"devguard/internal/core/errors"
	"devguard/internal/shared/observability"
)

// Extractor converts one parsed document into a Contribution.
type Extractor interface {
	Extract(root *sitter.Node, source []byte, path string) (*Contribution, error)
}

// Runner owns the per-language parser pools and extractors and fans document
// extraction out over a bounded worker pool. Extraction of independent
// documents shares no mutable state.
type Runner struct {
	workers      int
	maxFileBytes int64
	pools        map[string]*ParserPool
	extractors   map[string]Extractor
}

func NewRunner(workers int, maxFileBytes int64) *Runner {
	if workers < 1 {
		workers = 1
	}
	r := &Runner{
		workers:      workers,
		maxFileBytes: maxFileBytes,
		pools:        make(map[string]*ParserPool),
		extractors:   make(map[string]Extractor),
	}
	for lang, spec := range languageRegistry {
		r.pools[lang] = NewParserPool(spec.grammar)
	}
	r.extractors["go"] = &GoExtractor{}
	r.extractors["python"] = &PythonExtractor{}
	r.extractors["javascript"] = &TypeScriptExtractor{Language: "javascript"}
	r.extractors["typescript"] = &TypeScriptExtractor{Language: "typescript"}
	r.extractors["tsx"] = &TypeScriptExtractor{Language: "tsx"}
	r.extractors["java"] = &GenericExtractor{Language: "java"}
	r.extractors["rust"] = &GenericExtractor{Language: "rust"}
	return r
}

// ExtractDocument processes a single document. A nil Contribution with a
// non-nil UnparsedFile means the document contributed nothing; this is never
// a fatal condition.
func (r *Runner) ExtractDocument(doc Document) (*Contribution, *UnparsedFile) {
	lang := doc.Language
	if lang == "" {
		lang = DetectLanguage(doc.Path)
	}
	if lang == "" {
		return nil, &UnparsedFile{Path: doc.Path, Reason: ReasonUnsupported}
	}
	if len(doc.Content) == 0 {
		return nil, &UnparsedFile{Path: doc.Path, Language: lang, Reason: ReasonEmptyFile}
	}
	if r.maxFileBytes > 0 && int64(len(doc.Content)) > r.maxFileBytes {
		return nil, &UnparsedFile{Path: doc.Path, Language: lang, Reason: ReasonTooLarge}
	}

	pool, ok := r.pools[lang]
	if !ok {
		return nil, &UnparsedFile{Path: doc.Path, Language: lang, Reason: ReasonUnsupported}
	}
	extractor := r.extractors[lang]
	if extractor == nil {
		return nil, &UnparsedFile{Path: doc.Path, Language: lang, Reason: ReasonUnsupported}
	}

	start := time.Now()
	defer func() {
		observability.ExtractionDuration.WithLabelValues(lang).Observe(time.Since(start).Seconds())
	}()

	parser := pool.Get()
	defer pool.Put(parser)

	tree := parser.Parse(doc.Content, nil)
	if tree == nil {
		return nil, &UnparsedFile{Path: doc.Path, Language: lang, Reason: ReasonSyntaxError}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, &UnparsedFile{Path: doc.Path, Language: lang, Reason: ReasonSyntaxError}
	}

	contribution, err := extractor.Extract(root, doc.Content, doc.Path)
	if err != nil {
		slog.Debug("extraction failed", "path", doc.Path, "error", err)
		return nil, &UnparsedFile{Path: doc.Path, Language: lang, Reason: err.Error()}
	}
	return contribution, nil
}

// ExtractAll runs extraction for all documents in parallel and returns the
// contributions in input order. Per-document failures are collected as
// UnparsedFile records; only context cancellation aborts the batch.
func (r *Runner) ExtractAll(ctx context.Context, docs []Document) ([]*Contribution, []UnparsedFile, error) {
	contributions := make([]*Contribution, len(docs))
	failures := make([]*UnparsedFile, len(docs))

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for i := range docs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, nil, errors.Wrap(ctx.Err(), errors.CodeCancelled, "extraction aborted")
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			contributions[i], failures[i] = r.ExtractDocument(docs[i])
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeCancelled, "extraction aborted")
	}

	out := make([]*Contribution, 0, len(docs))
	var unparsed []UnparsedFile
	for i := range docs {
		if failures[i] != nil {
			unparsed = append(unparsed, *failures[i])
			continue
		}
		if contributions[i] != nil {
			out = append(out, contributions[i])
		}
	}
	observability.UnparsedFiles.Set(float64(len(unparsed)))
	if len(unparsed) > 0 {
		slog.Debug("extraction finished with unparsed files", "total", len(docs), "unparsed", len(unparsed))
	}
	return out, unparsed, nil
}

// ParseFailure wraps a reason into the domain error used for diagnostics.
func ParseFailure(path, reason string) error {
	return errors.New(errors.CodeParseFailure, fmt.Sprintf("%s: %s", path, reason))
}
