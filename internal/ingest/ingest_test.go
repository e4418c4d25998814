package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devguard/internal/core/errors"
	"devguard/internal/engine/extract"
)

func TestNewBatchAssignsUniqueIDs(t *testing.T) {
	a := NewBatch(nil)
	b := NewBatch(nil)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestValidateRejectsBadBatches(t *testing.T) {
	cases := []struct {
		name string
		docs []extract.Document
	}{
		{"empty batch", nil},
		{"empty path", []extract.Document{{Path: "  "}}},
		{"duplicate path", []extract.Document{
			{Path: "src/a.py"},
			{Path: "./src/a.py"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(Batch{ID: "b", Documents: tc.docs})
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeValidationError))
		})
	}
}

func TestValidateAcceptsDistinctDocuments(t *testing.T) {
	err := Validate(NewBatch([]extract.Document{
		{Path: "src/a.py"},
		{Path: "src/b.py"},
	}))
	assert.NoError(t, err)
}

func TestScanDirReadsSupportedFilesAndSkipsExcluded(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	write("src/app.py", "import os\n")
	write("src/notes.txt", "not source\n")
	write("node_modules/lib/index.js", "module.exports = 1\n")

	docs, err := ScanDir(root, []string{"node_modules"})
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "src/app.py", docs[0].Path)
	assert.Equal(t, "import os\n", string(docs[0].Content))
}

func TestLoadEndpointSeeds(t *testing.T) {
	spec := `{
  "openapi": "3.0.0",
  "info": {"title": "users", "version": "1.0.0"},
  "paths": {
    "/users": {
      "get": {"responses": {"200": {"description": "ok"}}},
      "post": {"responses": {"201": {"description": "created"}}}
    },
    "/users/{id}": {
      "parameters": [
        {"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}
      ],
      "delete": {"responses": {"204": {"description": "gone"}}}
    }
  }
}`
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(spec), 0o644))

	seeds, err := LoadEndpointSeeds(context.Background(), []string{path})
	require.NoError(t, err)

	require.Len(t, seeds, 3)
	assert.Equal(t, "GET", seeds[0].Verb)
	assert.Equal(t, "/users", seeds[0].Route)
	assert.Equal(t, "POST", seeds[1].Verb)
	assert.Equal(t, "DELETE", seeds[2].Verb)
	assert.Equal(t, "/users/{id}", seeds[2].Route)
}

func TestLoadEndpointSeedsMissingDoc(t *testing.T) {
	_, err := LoadEndpointSeeds(context.Background(), []string{"does-not-exist.yaml"})
	require.Error(t, err)
}
