package editorconfig

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	ec "github.com/editorconfig/editorconfig-core-go/v2"
	"github.com/go-git/go-billy/v5"
)

// FileName is the declaration file looked up in every directory.
const FileName = ".editorconfig"

// Declarations is one parsed declaration file.
type Declarations struct {
	// Dir is the declaring directory as the source names it.
	Dir  string
	Root bool

	file *ec.Editorconfig
}

// NewDeclarations wraps a parsed file declared in dir.
func NewDeclarations(dir string, file *ec.Editorconfig) *Declarations {
	return &Declarations{Dir: dir, Root: file.Root, file: file}
}

// apply merges every section matching rel, a file path relative to the
// declaring directory, into values.
func (d *Declarations) apply(rel string, values map[string]string) error {
	def, err := d.file.GetDefinitionForFilename(rel)
	if err != nil {
		return fmt.Errorf("%s: match %s: %w", path.Join(d.Dir, FileName), rel, err)
	}
	for k, v := range def.Raw {
		set(values, strings.ToLower(k), v)
	}
	if def.EndOfLine != "" {
		set(values, KeyEndOfLine, def.EndOfLine)
	}
	if def.IndentStyle != "" {
		set(values, KeyIndentStyle, def.IndentStyle)
	}
	if def.IndentSize != "" {
		set(values, KeyIndentSize, def.IndentSize)
	}
	if def.Charset != "" {
		set(values, KeyCharset, def.Charset)
	}
	if def.InsertFinalNewline != nil {
		set(values, KeyInsertFinalNewline, strconv.FormatBool(*def.InsertFinalNewline))
	}
	if def.TrimTrailingWhitespace != nil {
		set(values, KeyTrimTrailingWhitespace, strconv.FormatBool(*def.TrimTrailingWhitespace))
	}
	return nil
}

// set applies one key; the value "unset" removes what farther files set.
func set(values map[string]string, k, v string) {
	if strings.EqualFold(strings.TrimSpace(v), "unset") {
		delete(values, k)
		return
	}
	values[k] = v
}

// Source yields the declaration file of a directory, or nil when the
// directory has none.
type Source interface {
	DeclarationsFor(dir string) (*Declarations, error)
}

// FSSource reads .editorconfig files from a billy filesystem.
type FSSource struct {
	FS billy.Filesystem
}

func (s FSSource) DeclarationsFor(dir string) (*Declarations, error) {
	name := path.Join(dir, FileName)
	f, err := s.FS.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	parsed, err := ec.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return NewDeclarations(dir, parsed), nil
}
