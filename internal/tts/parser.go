package tts

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	// frontMatter matches a YAML front matter block at the top of a file.
	frontMatter = regexp.MustCompile(`(?s)\A---[ \t]*\r?\n.*?\r?\n---[ \t]*(\r?\n|\z)`)

	// blankLines collapses runs of blank lines into a single line break.
	blankLines = regexp.MustCompile(`\n\s*\n`)
)

// TextExtractor turns markdown into speakable plain text.
type TextExtractor struct {
	md goldmark.Markdown
}

// NewTextExtractor creates an extractor that understands GitHub tables,
// strikethrough and task lists. Bare URLs are not linkified so they are
// read as written.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Table,
				extension.Strikethrough,
				extension.TaskList,
			),
		),
	}
}

// ExtractText returns the speakable text of a markdown document using a
// default extractor.
func ExtractText(markdown string) string {
	return NewTextExtractor().Extract(markdown)
}

// Extract removes code, images and raw HTML, keeps link text, drops
// heading and emphasis markers, ends every block with a line break and
// collapses blank lines.
func (x *TextExtractor) Extract(markdown string) string {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	markdown = frontMatter.ReplaceAllString(markdown, "")

	reader := text.NewReader([]byte(markdown))
	doc := x.md.Parser().Parse(reader)

	var buf bytes.Buffer
	walkNode(doc, reader.Source(), &buf)

	out := blankLines.ReplaceAllString(buf.String(), "\n")
	return strings.TrimSpace(out)
}

// walkNode recursively walks the AST and extracts text content.
func walkNode(node ast.Node, source []byte, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
		return

	case *ast.CodeSpan, *ast.RawHTML, *ast.Image, *ast.AutoLink:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteByte('\n')
		}
		return

	case *ast.String:
		buf.Write(n.Value)
		return

	case *ast.ThematicBreak:
		endLine(buf)
		return
	}

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walkNode(c, source, buf)
	}

	if node.Type() == ast.TypeBlock {
		endLine(buf)
	}
}

func endLine(buf *bytes.Buffer) {
	if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
		buf.WriteByte('\n')
	}
}
