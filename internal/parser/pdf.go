package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dgallion1/docmark/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

var errNoPDFText = errors.New("no extractable text")

// PDFParser lays out each page of a PDF as a <section>. Text comes from
// ledongthuc/pdf, or from pdftotext when that fails and the fallback is on.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	pages, err := pdfPages(data)
	if err != nil && p.FallbackPdftotext {
		var fbErr error
		if pages, fbErr = pdftotextPages(data); fbErr == nil {
			err = nil
		} else {
			err = fmt.Errorf("%w; fallback: %w", err, fbErr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	return buildPagedDocument(titleFromFilename(filename), pages), nil
}

// buildPagedDocument renders pages as numbered sections of paragraphs.
// Blank pages keep their number but produce no section.
func buildPagedDocument(title string, pages []string) *doctree.Document {
	root, body := doctree.Skeleton(title)
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		num := strconv.Itoa(i + 1)
		section := doctree.NewElement("section", html.Attribute{Key: "data-page", Val: num})
		body.AppendChild(section)
		doctree.AppendTextElement(section, "h2", "Page "+num)
		for _, para := range strings.Split(page, "\n\n") {
			if para = strings.TrimSpace(para); para != "" {
				doctree.AppendTextElement(section, "p", para)
			}
		}
	}
	return &doctree.Document{Title: title, Root: root}
}

func pdfPages(data []byte) ([]string, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	pages := make([]string, reader.NumPage())
	found := false
	for i := range pages {
		page := reader.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i] = text
		found = found || strings.TrimSpace(text) != ""
	}
	if !found {
		return nil, errNoPDFText
	}
	return pages, nil
}

// pdftotextPages needs a real file for pdftotext to read.
func pdftotextPages(data []byte) ([]string, error) {
	tmp, err := os.CreateTemp("", "docmark-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	out, err := exec.Command("pdftotext", "-layout", tmp.Name(), "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(string(out)), nil
}

// splitPages splits pdftotext output on its form-feed page breaks.
func splitPages(text string) []string {
	return strings.Split(strings.TrimSuffix(text, "\f"), "\f")
}
