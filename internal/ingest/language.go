package ingest

import (
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/hcl"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"
)

// Language names returned by DetectLanguage.
const (
	LangGo         = "go"
	LangPython     = "python"
	LangTerraform  = "terraform"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangTSX        = "tsx"
	LangRust       = "rust"
	LangSQL        = "sql"
	LangYAML       = "yaml"
	LangCSharp     = "csharp"
)

// DetectLanguageFromExt returns the language name and tree-sitter Language
// for a given file extension. Returns ok=false for unsupported extensions.
func DetectLanguageFromExt(ext string) (langName string, lang *sitter.Language, ok bool) {
	switch strings.ToLower(ext) {
	case ".go":
		return LangGo, golang.GetLanguage(), true
	case ".py":
		return LangPython, python.GetLanguage(), true
	case ".tf", ".hcl":
		return LangTerraform, hcl.GetLanguage(), true
	case ".js", ".mjs", ".cjs":
		return LangJavaScript, javascript.GetLanguage(), true
	case ".ts":
		return LangTypeScript, typescript.GetLanguage(), true
	case ".tsx":
		return LangTSX, tsx.GetLanguage(), true
	case ".rs":
		return LangRust, rust.GetLanguage(), true
	case ".sql":
		return LangSQL, sql.GetLanguage(), true
	case ".yaml", ".yml":
		return LangYAML, yaml.GetLanguage(), true
	case ".cs":
		return LangCSharp, csharp.GetLanguage(), true
	default:
		return "", nil, false
	}
}

// DetectLanguage is DetectLanguageFromExt applied to a file path.
func DetectLanguage(filePath string) (string, *sitter.Language, bool) {
	return DetectLanguageFromExt(path.Ext(filePath))
}

// GrammarFor returns the grammar for a language name produced by
// DetectLanguageFromExt, or nil.
func GrammarFor(langName string) *sitter.Language {
	switch langName {
	case LangGo:
		return golang.GetLanguage()
	case LangPython:
		return python.GetLanguage()
	case LangTerraform:
		return hcl.GetLanguage()
	case LangJavaScript:
		return javascript.GetLanguage()
	case LangTypeScript:
		return typescript.GetLanguage()
	case LangTSX:
		return tsx.GetLanguage()
	case LangRust:
		return rust.GetLanguage()
	case LangSQL:
		return sql.GetLanguage()
	case LangYAML:
		return yaml.GetLanguage()
	case LangCSharp:
		return csharp.GetLanguage()
	default:
		return nil
	}
}
