// Package template loads system instructions for transform types from a
// single Markdown document of "## <name>" sections.
package template

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Type names a transform operation.
type Type string

const (
	Shorten      Type = "Shorten"
	Extend       Type = "Extend"
	Rephrase     Type = "Rephrase"
	GeneratePost Type = "GeneratePost"
)

// IsGeneration reports whether the type creates new content from sources, in
// which case the idea text may be empty.
func IsGeneration(t Type) bool {
	return t == GeneratePost
}

// ErrTemplateNotFound is matched by errors.Is for every *NotFoundError.
var ErrTemplateNotFound = errors.New("template not found")

// NotFoundError lists the section names that were available when a lookup
// missed.
type NotFoundError struct {
	Type      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("prompt type %q not found (available: %s)", e.Type, strings.Join(e.Available, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrTemplateNotFound }

// Template is one named section of the document.
type Template struct {
	Type               string
	SystemInstructions string
}

// Source reads the full template document.
type Source interface {
	Read(ctx context.Context) (string, error)
}

// FileSource reads the document from disk on every call.
type FileSource struct {
	Path string
}

func (f FileSource) Read(_ context.Context) (string, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read template document: %w", err)
	}
	return string(b), nil
}

// StringSource serves a fixed document.
type StringSource string

func (s StringSource) Read(_ context.Context) (string, error) { return string(s), nil }

//go:embed prompts.md
var embedded embed.FS

// Embedded returns the default document compiled into the binary.
func Embedded() Source {
	b, err := embedded.ReadFile("prompts.md")
	if err != nil {
		// The file is part of the package; a read failure is a build defect.
		panic(err)
	}
	return StringSource(b)
}

// Store resolves transform types against a Source. It holds no mutable state.
type Store struct {
	Source Source
}

// NewStore returns a Store reading from src.
func NewStore(src Source) *Store {
	return &Store{Source: src}
}

// Resolve returns the section matching t. An exact name match wins over a
// prefix match; among prefix matches the first section in the document wins.
func (s *Store) Resolve(ctx context.Context, t string) (Template, error) {
	sections, err := s.sections(ctx)
	if err != nil {
		return Template{}, err
	}
	name := strings.TrimSpace(t)
	if name != "" {
		for _, sec := range sections {
			if sec.Type == name {
				return sec, nil
			}
		}
		for _, sec := range sections {
			if strings.HasPrefix(sec.Type, name) {
				return sec, nil
			}
		}
	}
	return Template{}, &NotFoundError{Type: t, Available: names(sections)}
}

// Load returns the system instructions of the section Resolve picks for t.
func (s *Store) Load(ctx context.Context, t string) (string, error) {
	tpl, err := s.Resolve(ctx, t)
	if err != nil {
		return "", err
	}
	return tpl.SystemInstructions, nil
}

// Types lists every section name in document order.
func (s *Store) Types(ctx context.Context) ([]string, error) {
	sections, err := s.sections(ctx)
	if err != nil {
		return nil, err
	}
	return names(sections), nil
}

func (s *Store) sections(ctx context.Context) ([]Template, error) {
	if s == nil || s.Source == nil {
		return nil, errors.New("template source not configured")
	}
	doc, err := s.Source.Read(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(doc), nil
}

// Parse splits a document into sections. A section starts at a line beginning
// with "## "; the remainder of that line is the name and the following lines,
// trimmed, are the instructions. Text before the first section is ignored.
func Parse(doc string) []Template {
	var (
		out  []Template
		cur  *Template
		body strings.Builder
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.SystemInstructions = strings.TrimSpace(body.String())
		out = append(out, *cur)
		body.Reset()
	}
	for _, line := range strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			name := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			if name == "" {
				cur = nil
				continue
			}
			cur = &Template{Type: name}
			continue
		}
		if cur != nil {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	flush()
	return out
}

func names(sections []Template) []string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		out = append(out, s.Type)
	}
	return out
}
