// # internal/engine/extract/languages.go
package extract

import (
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// languageSpec binds a language id to its grammar and file extensions.
type languageSpec struct {
	grammar    *sitter.Language
	extensions []string
}

// languageRegistry is the fixed set of supported languages. Grammars are
// compiled in; there is no runtime plugin loading.
var languageRegistry = map[string]languageSpec{
	"go": {
		grammar:    sitter.NewLanguage(tree_sitter_go.Language()),
		extensions: []string{".go"},
	},
	"python": {
		grammar:    sitter.NewLanguage(tree_sitter_python.Language()),
		extensions: []string{".py"},
	},
	"javascript": {
		grammar:    sitter.NewLanguage(tree_sitter_javascript.Language()),
		extensions: []string{".js", ".jsx", ".mjs"},
	},
	"typescript": {
		grammar:    sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		extensions: []string{".ts"},
	},
	"tsx": {
		grammar:    sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
		extensions: []string{".tsx"},
	},
	"java": {
		grammar:    sitter.NewLanguage(tree_sitter_java.Language()),
		extensions: []string{".java"},
	},
	"rust": {
		grammar:    sitter.NewLanguage(tree_sitter_rust.Language()),
		extensions: []string{".rs"},
	},
}

var extensionIndex = func() map[string]string {
	idx := make(map[string]string)
	for lang, spec := range languageRegistry {
		for _, ext := range spec.extensions {
			idx[ext] = lang
		}
	}
	return idx
}()

// DetectLanguage returns the language id for a path, or "".
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return extensionIndex[ext]
}

// IsSupportedPath reports whether a document path maps to a known language.
func IsSupportedPath(path string) bool {
	return DetectLanguage(path) != ""
}
