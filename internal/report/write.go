package report

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

// DefaultName is the report file written when the report path is a
// directory.
const DefaultName = "format-report.json"

// Write stores files at target. A ".db" or ".sqlite" target becomes a SQLite
// database, a ".json" target a JSON file, and anything else is treated as a
// directory that receives DefaultName.
func Write(target string, files []FormattedFile) (string, error) {
	switch strings.ToLower(filepath.Ext(target)) {
	case ".db", ".sqlite":
		return target, WriteSQLite(target, files)
	case ".json":
	default:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return "", fmt.Errorf("create report directory: %w", err)
		}
		target = filepath.Join(target, DefaultName)
	}
	if err := os.WriteFile(target, []byte(JSON(files)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return target, nil
}

// JSON renders files as an indented JSON array.
func JSON(files []FormattedFile) string {
	data := make([]any, 0, len(files))
	for _, f := range files {
		changes := make([]any, 0, len(f.Changes))
		for _, c := range f.Changes {
			changes = append(changes, map[string]any{
				"LineNumber":        int64(c.Line),
				"CharNumber":        int64(c.Column),
				"FormatDescription": c.Description,
			})
		}
		data = append(data, map[string]any{
			"FileId":      int64(f.FileID),
			"FileName":    f.FileName,
			"FilePath":    f.FilePath,
			"FileChanges": changes,
		})
	}
	return oj.JSON(data, &oj.Options{Indent: 2, Sort: true})
}

const schema = `
CREATE TABLE files (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	path TEXT NOT NULL
);
CREATE TABLE changes (
	file_id INTEGER NOT NULL REFERENCES files(id),
	line INTEGER NOT NULL,
	col INTEGER NOT NULL,
	description TEXT NOT NULL
);
CREATE INDEX idx_changes_file ON changes(file_id);
`

// WriteSQLite replaces the database at dbPath with one holding files.
func WriteSQLite(dbPath string, files []FormattedFile) (err error) {
	if err := os.Remove(dbPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("replace report %s: %w", dbPath, err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() {
		if cerr := db.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	fileStmt, err := tx.Prepare(`INSERT INTO files (id, name, path) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = fileStmt.Close() }()
	changeStmt, err := tx.Prepare(`INSERT INTO changes (file_id, line, col, description) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = changeStmt.Close() }()

	for _, f := range files {
		if _, err = fileStmt.Exec(int64(f.FileID), f.FileName, f.FilePath); err != nil {
			return fmt.Errorf("insert %s: %w", f.FilePath, err)
		}
		for _, c := range f.Changes {
			if _, err = changeStmt.Exec(int64(f.FileID), c.Line, c.Column, c.Description); err != nil {
				return fmt.Errorf("insert change for %s: %w", f.FilePath, err)
			}
		}
	}
	return tx.Commit()
}
