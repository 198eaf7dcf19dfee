package editorconfig

import (
	"maps"
	"strconv"
	"strings"
)

// Well-known keys.
const (
	KeyEndOfLine              = "end_of_line"
	KeyInsertFinalNewline     = "insert_final_newline"
	KeyTrimTrailingWhitespace = "trim_trailing_whitespace"
	KeyIndentStyle            = "indent_style"
	KeyIndentSize             = "indent_size"
	KeyTabWidth               = "tab_width"
	KeyCharset                = "charset"
)

// Config is the effective configuration of one file. The zero value is an
// empty configuration. A Config is never modified after it is built.
type Config struct {
	values map[string]string
}

// NewConfig builds a Config from raw key/value pairs. Keys are lower-cased.
func NewConfig(values map[string]string) Config {
	c := Config{values: make(map[string]string, len(values))}
	for k, v := range values {
		c.values[strings.ToLower(k)] = v
	}
	return c
}

// Get returns the raw value of key.
func (c Config) Get(key string) (string, bool) {
	v, ok := c.values[strings.ToLower(key)]
	return v, ok
}

// Len returns the number of configured keys.
func (c Config) Len() int { return len(c.values) }

// All returns a copy of every key/value pair.
func (c Config) All() map[string]string { return maps.Clone(c.values) }

func (c Config) lower(key string) (string, bool) {
	v, ok := c.values[key]
	return strings.ToLower(strings.TrimSpace(v)), ok
}

// EndOfLine returns the lower-cased end_of_line value when configured.
// Values other than "lf", "cr" and "crlf" are returned as written.
func (c Config) EndOfLine() (string, bool) {
	v, ok := c.lower(KeyEndOfLine)
	return v, ok && v != ""
}

// InsertFinalNewline returns the final-newline policy when configured.
func (c Config) InsertFinalNewline() (insert, ok bool) {
	return c.boolean(KeyInsertFinalNewline)
}

// TrimTrailingWhitespace returns the trailing-whitespace policy when
// configured.
func (c Config) TrimTrailingWhitespace() (trim, ok bool) {
	return c.boolean(KeyTrimTrailingWhitespace)
}

// IndentStyle returns "tab" or "space" when configured.
func (c Config) IndentStyle() (string, bool) {
	v, ok := c.lower(KeyIndentStyle)
	if v != "tab" && v != "space" {
		return "", false
	}
	return v, ok
}

// IndentSize returns the indentation width in columns. indent_size = tab
// resolves to the tab width.
func (c Config) IndentSize() (int, bool) {
	v, ok := c.lower(KeyIndentSize)
	if !ok {
		return 0, false
	}
	if v == "tab" {
		return c.TabWidth()
	}
	return positive(v)
}

// TabWidth returns tab_width, falling back to a numeric indent_size.
func (c Config) TabWidth() (int, bool) {
	if v, ok := c.lower(KeyTabWidth); ok {
		return positive(v)
	}
	if v, ok := c.lower(KeyIndentSize); ok && v != "tab" {
		return positive(v)
	}
	return 0, false
}

// SeverityKey returns the key configuring the severity of rule id.
func SeverityKey(id string) string {
	return "reform_diagnostic." + strings.ToLower(id) + ".severity"
}

// RuleSeverity returns the configured severity name of rule id.
func (c Config) RuleSeverity(id string) (string, bool) {
	v, ok := c.lower(SeverityKey(id))
	return v, ok && v != ""
}

func (c Config) boolean(key string) (bool, bool) {
	v, ok := c.lower(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func positive(v string) (int, bool) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
