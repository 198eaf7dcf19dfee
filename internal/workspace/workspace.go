package workspace

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"fortio.org/safecast"
)

// FileID identifies a file within a workspace snapshot and every snapshot
// derived from it. IDs are dense, starting at zero, in enumeration order.
type FileID uint32

// ProjectID identifies a project within a workspace.
type ProjectID uint32

// Kind classifies how a file may be treated by formatters.
type Kind uint8

const (
	// KindSource is a file in a language with a known syntax tree.
	KindSource Kind = iota
	// KindText is a text file without a supported syntax tree.
	KindText
	// KindBinary is content that is never formatted.
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindText:
		return "text"
	default:
		return "binary"
	}
}

// File is one document in a snapshot. Files are values: a changed file is a
// new *File carrying the same ID.
type File struct {
	ID       FileID
	Project  ProjectID
	Path     string // slash-separated, relative to the workspace root
	Language string // empty unless Kind == KindSource
	Kind     Kind
	Text     string
}

// WithText returns a copy of f holding text.
func (f *File) WithText(text string) *File {
	c := *f
	c.Text = text
	return &c
}

// Project groups files under a named unit.
type Project struct {
	ID       ProjectID
	Name     string
	Language string
	Root     string // slash-separated, relative to the workspace root
	Files    []FileID
}

// Workspace is an immutable snapshot of all projects and file texts.
// WithFileText returns a new snapshot; the receiver is never modified, so
// snapshots may be shared freely across goroutines.
type Workspace struct {
	root     string
	projects []*Project
	files    fileTable
}

// Builder assembles the initial snapshot. It is not safe for concurrent use.
type Builder struct {
	root     string
	projects []*Project
	files    []*File
}

// NewBuilder starts a workspace rooted at root (an absolute directory).
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// AddProject registers a project and returns its ID.
func (b *Builder) AddProject(name, language, root string) ProjectID {
	slot, err := safecast.Conv[uint32](len(b.projects))
	if err != nil {
		panic(fmt.Errorf("project id overflow: %w", err))
	}
	id := ProjectID(slot)
	b.projects = append(b.projects, &Project{
		ID:       id,
		Name:     name,
		Language: language,
		Root:     CleanPath(root),
	})
	return id
}

// AddFile appends a file to project p and returns its ID.
func (b *Builder) AddFile(p ProjectID, filePath, language string, kind Kind, text string) FileID {
	slot, err := safecast.Conv[uint32](len(b.files))
	if err != nil {
		panic(fmt.Errorf("file id overflow: %w", err))
	}
	id := FileID(slot)
	b.files = append(b.files, &File{
		ID:       id,
		Project:  p,
		Path:     CleanPath(filePath),
		Language: language,
		Kind:     kind,
		Text:     text,
	})
	proj := b.projects[p]
	proj.Files = append(proj.Files, id)
	return id
}

// Build freezes the builder into a snapshot.
func (b *Builder) Build() *Workspace {
	return &Workspace{
		root:     b.root,
		projects: b.projects,
		files:    newFileTable(b.files),
	}
}

// Root returns the absolute directory the workspace was loaded from.
func (w *Workspace) Root() string { return w.root }

// Projects returns projects in enumeration order. Callers must not modify
// the returned slice.
func (w *Workspace) Projects() []*Project { return w.projects }

// Project returns the project with the given ID, or nil.
func (w *Workspace) Project(id ProjectID) *Project {
	if int(id) >= len(w.projects) {
		return nil
	}
	return w.projects[id]
}

// ProjectByName returns the first project with the given name.
func (w *Workspace) ProjectByName(name string) (*Project, bool) {
	for _, p := range w.projects {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// File returns the current version of the file, or nil for an unknown ID.
func (w *Workspace) File(id FileID) *File { return w.files.get(id) }

// FileCount returns the number of files across all projects.
func (w *Workspace) FileCount() int { return w.files.len() }

// Files calls fn for each file in enumeration order (project order, then
// file order inside the project) until fn returns false.
func (w *Workspace) Files(fn func(*File) bool) {
	for _, p := range w.projects {
		for _, id := range p.Files {
			if !fn(w.files.get(id)) {
				return
			}
		}
	}
}

// WithFileText returns a snapshot in which file id holds text. When the text
// is unchanged, or the ID is unknown, the receiver itself is returned.
func (w *Workspace) WithFileText(id FileID, text string) *Workspace {
	f := w.files.get(id)
	if f == nil || f.Text == text {
		return w
	}
	return &Workspace{
		root:     w.root,
		projects: w.projects,
		files:    w.files.set(id, f.WithText(text)),
	}
}

// AbsPath returns the absolute OS path of a workspace-relative file path.
func (w *Workspace) AbsPath(rel string) string {
	return filepath.Join(w.root, filepath.FromSlash(rel))
}

// PathKey is the key under which two paths name the same file: the clean
// path, compared case-insensitively.
func PathKey(p string) string {
	return strings.ToLower(CleanPath(p))
}

// CleanPath normalizes a path to the slash-separated relative form used by
// File.Path.
func CleanPath(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.TrimPrefix(p, "./")
	if p == "." {
		return ""
	}
	return p
}
