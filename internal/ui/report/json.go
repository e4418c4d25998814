// Package report renders published snapshots and findings for consumers:
// a stable JSON graph document, Graphviz DOT, and markdown summaries.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"devguard/internal/engine/graph"
)

// GraphDoc is the exported shape of one snapshot. Nodes and edges are
// emitted in the graph's canonical sorted order so the same snapshot always
// serializes byte-identically.
type GraphDoc struct {
	SnapshotVersion uint64          `json:"snapshot_version"`
	BatchID         string          `json:"batch_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Coverage        float64         `json:"coverage"`
	Nodes           []NodeDoc       `json:"nodes"`
	Edges           []EdgeDoc       `json:"edges"`
	Unparsed        []UnparsedDoc   `json:"unparsed,omitempty"`
	Unresolved      []UnresolvedDoc `json:"unresolved,omitempty"`
}

type NodeDoc struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Name      string     `json:"name"`
	Language  string     `json:"language,omitempty"`
	Path      string     `json:"path,omitempty"`
	Signature []ParamDoc `json:"signature,omitempty"`
	Verb      string     `json:"verb,omitempty"`
	Route     string     `json:"route,omitempty"`
}

type ParamDoc struct {
	Name     string `json:"name"`
	TypeHint string `json:"type_hint,omitempty"`
}

type EdgeDoc struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
	File       string  `json:"file,omitempty"`
	StartLine  int     `json:"start_line,omitempty"`
	EndLine    int     `json:"end_line,omitempty"`
}

type UnparsedDoc struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type UnresolvedDoc struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

func BuildGraphDoc(snap *graph.Snapshot) GraphDoc {
	doc := GraphDoc{
		SnapshotVersion: snap.Version,
		BatchID:         snap.BatchID,
		CreatedAt:       snap.CreatedAt,
		Coverage:        snap.Coverage,
		Nodes:           make([]NodeDoc, 0, snap.Graph.NodeCount()),
		Edges:           make([]EdgeDoc, 0, snap.Graph.EdgeCount()),
	}

	for _, n := range snap.Graph.Nodes() {
		params := make([]ParamDoc, 0, len(n.Signature))
		for _, p := range n.Signature {
			params = append(params, ParamDoc{Name: p.Name, TypeHint: p.TypeHint})
		}
		if len(params) == 0 {
			params = nil
		}
		doc.Nodes = append(doc.Nodes, NodeDoc{
			ID:        string(n.ID),
			Kind:      string(n.Kind),
			Name:      n.Name,
			Language:  n.Language,
			Path:      n.Path,
			Signature: params,
			Verb:      n.Verb,
			Route:     n.Route,
		})
	}
	for _, e := range snap.Graph.Edges() {
		doc.Edges = append(doc.Edges, EdgeDoc{
			Source:     string(e.Source),
			Target:     string(e.Target),
			Kind:       string(e.Kind),
			Confidence: e.Confidence,
			File:       e.Provenance.File,
			StartLine:  e.Provenance.StartLine,
			EndLine:    e.Provenance.EndLine,
		})
	}
	for _, u := range snap.Unparsed {
		doc.Unparsed = append(doc.Unparsed, UnparsedDoc{Path: u.Path, Reason: u.Reason})
	}
	for _, u := range snap.Unresolved {
		doc.Unresolved = append(doc.Unresolved, UnresolvedDoc{
			Name: u.Name,
			Kind: string(u.Kind),
			Path: u.Path,
			Line: u.Span.StartLine,
		})
	}
	return doc
}

// WriteJSON writes the document atomically so watchers never read a torn file.
func WriteJSON(doc GraphDoc, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal graph document: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", path, err)
	}
	tmpName := tmp.Name()

	writeErr := error(nil)
	if _, err := tmp.Write(data); err != nil {
		writeErr = fmt.Errorf("write temp file %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("close temp file %q: %w", tmpName, err)
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return writeErr
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace file %q: %w", path, err)
	}
	return nil
}
