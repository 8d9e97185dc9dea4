package fs

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/fieldwatch/pkg/core"
)

// ErrUnterminatedFrontmatter is returned when a document opens a
// front-matter block but never closes it.
var ErrUnterminatedFrontmatter = errors.New("frontmatter started but no closing delimiter found")

// MarkdownSerializer reads Markdown files with YAML front-matter.
type MarkdownSerializer struct{}

// NewMarkdownSerializer creates a new Markdown serializer.
func NewMarkdownSerializer() *MarkdownSerializer {
	return &MarkdownSerializer{}
}

// Parse reads a document. Metadata is nil when the file has no
// front-matter block, and an empty map when the block is empty.
func (s *MarkdownSerializer) Parse(r io.Reader) (*core.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := &core.Document{}

	first, rest, ok := cutLine(data)
	if !ok || !bytes.Equal(first, []byte("---")) {
		doc.Content = string(data)
		return doc, nil
	}

	start := len(data) - len(rest)
	var yamlData []byte
	closed := false
	for len(rest) > 0 {
		line, next, _ := cutLine(rest)
		if bytes.Equal(line, []byte("---")) {
			yamlData = data[start : len(data)-len(rest)]
			rest = next
			closed = true
			break
		}
		rest = next
	}
	if !closed {
		return nil, ErrUnterminatedFrontmatter
	}

	// Decoding into a plain map keeps nested mappings as map[string]any.
	var fields map[string]any
	if err := yaml.Unmarshal(yamlData, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	doc.Metadata = make(core.Metadata, len(fields))
	for k, v := range fields {
		doc.Metadata[k] = v
	}

	doc.Content = string(rest)
	return doc, nil
}

// cutLine splits b after its first line, dropping the "\n" or "\r\n"
// terminator from line. found is false when b has no terminator.
func cutLine(b []byte) (line, rest []byte, found bool) {
	line, rest, found = bytes.Cut(b, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r")), rest, found
}
