package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docmark/internal/doctree"
)

// maxTextLine is the longest line TextParser accepts.
const maxTextLine = 1 << 20

// TextParser turns blank-line separated paragraphs into <p> elements. Line
// breaks inside a paragraph are kept as newlines in its text.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	title := titleFromFilename(filename)
	root, body := doctree.Skeleton(title)

	var lines []string
	flush := func() {
		if len(lines) > 0 {
			doctree.AppendTextElement(body, "p", strings.Join(lines, "\n"))
			lines = lines[:0]
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTextLine)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	flush()

	return &doctree.Document{Title: title, Root: root}, nil
}
