// Package editorconfig resolves the effective configuration of a file from
// the .editorconfig files in its directory and every parent directory up
// to the first one declaring root = true, or the file-system root.
package editorconfig

import (
	"log/slog"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Resolver memoizes declaration chains per absolute directory and effective
// configs per file. It is safe for concurrent use; each directory is read
// at most once for the resolver's lifetime.
type Resolver struct {
	src    Source
	base   string // absolute slash path of src's root
	parent Source // directories above base, by absolute slash path
	logger *slog.Logger

	group   singleflight.Group
	chains  sync.Map // absolute dir -> []link, nearest first
	configs sync.Map // file path -> Config
}

// link is one declaration file of a chain with the absolute directory
// declaring it.
type link struct {
	dir  string
	decl *Declarations
}

// NewResolver returns a resolver reading declarations from src. The walk
// stops at the root of src unless WithParents extends it.
func NewResolver(src Source, logger *slog.Logger) *Resolver {
	return &Resolver{src: src, base: "/", logger: logger}
}

// WithParents continues every walk above the root of src. base is the
// absolute slash path src is rooted at; parent reads the directories
// above it by absolute slash path. Call it before the first Resolve.
func (r *Resolver) WithParents(base string, parent Source) *Resolver {
	r.base = path.Clean("/" + base)
	r.parent = parent
	return r
}

// Resolve returns the effective configuration of a slash-separated file
// path relative to the source root. Keys set nearer the file win.
func (r *Resolver) Resolve(filePath string) Config {
	if c, ok := r.configs.Load(filePath); ok {
		return c.(Config)
	}

	abs := path.Join(r.base, filePath)
	chain := r.chain(path.Dir(abs))
	values := make(map[string]string)
	for i := len(chain) - 1; i >= 0; i-- {
		l := chain[i]
		if err := l.decl.apply(relTo(l.dir, abs), values); err != nil {
			r.logger.Debug("ignoring unmatched declarations", "path", filePath, "error", err)
		}
	}

	c, _ := r.configs.LoadOrStore(filePath, Config{values: values})
	return c.(Config)
}

func (r *Resolver) chain(d string) []link {
	if c, ok := r.chains.Load(d); ok {
		return c.([]link)
	}
	v, _, _ := r.group.Do(d, func() (any, error) {
		if c, ok := r.chains.Load(d); ok {
			return c, nil
		}
		decl, err := r.read(d)
		if err != nil {
			r.logger.Debug("ignoring unreadable declarations", "dir", d, "error", err)
			decl = nil
		}

		var chain []link
		if decl != nil {
			chain = append(chain, link{dir: d, decl: decl})
		}
		if (decl == nil || !decl.Root) && r.continues(d) {
			chain = append(chain, r.chain(path.Dir(d))...)
		}
		r.chains.Store(d, chain)
		return chain, nil
	})
	return v.([]link)
}

// read loads the declarations of the absolute directory d from whichever
// source covers it.
func (r *Resolver) read(d string) (*Declarations, error) {
	if rel, ok := within(r.base, d); ok {
		return r.src.DeclarationsFor(rel)
	}
	if r.parent == nil {
		return nil, nil
	}
	return r.parent.DeclarationsFor(d)
}

// continues reports whether the walk goes on above the absolute directory d.
func (r *Resolver) continues(d string) bool {
	if d == "/" {
		return false
	}
	return d != r.base || r.parent != nil
}

// within returns d relative to base ("" for base itself) when d is base or
// below it.
func within(base, d string) (string, bool) {
	if d == base {
		return "", true
	}
	prefix := base
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.CutPrefix(d, prefix)
}

// relTo is the path of the absolute file p relative to the absolute
// directory d that contains it.
func relTo(d, p string) string {
	rel, _ := within(d, p)
	return rel
}
