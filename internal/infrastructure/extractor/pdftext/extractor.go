package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/abalcerek/docuscan/internal/core/domain"
	"github.com/abalcerek/docuscan/internal/core/ports"
)

// Extractor turns stored scan payloads into positioned text lines. PDFs go
// through the text layer; UTF-8 payloads pass through as plain lines with
// synthetic row boxes.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) ([]domain.TextLine, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}

	if isPDF(raw) {
		return extractPDF(raw)
	}
	if utf8.Valid(raw) {
		return plainLines(string(raw)), nil
	}
	return nil, domain.WrapError(domain.ErrInvalidInput, "extract text",
		fmt.Errorf("unsupported payload format: %s", doc.Filename))
}

func isPDF(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte("%PDF-"))
}

func extractPDF(raw []byte) (lines []domain.TextLine, err error) {
	// The pdf package panics on some malformed files instead of returning
	// an error.
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	for pageNum := 1; pageNum <= pdfReader.NumPage(); pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		lines = append(lines, pageLines(page)...)
	}
	return lines, nil
}

// pageLines groups the page's positioned glyph runs into rows by their Y
// coordinate, then orders rows top to bottom and runs left to right.
func pageLines(page pdf.Page) []domain.TextLine {
	content := page.Content()
	if len(content.Text) == 0 {
		return nil
	}

	const rowTolerance = 2.0
	rows := make(map[int][]pdf.Text)
	for _, t := range content.Text {
		key := int(math.Round(t.Y / rowTolerance))
		rows[key] = append(rows[key], t)
	}

	keys := make([]int, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	// PDF coordinates grow upward; larger Y is higher on the page.
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	lines := make([]domain.TextLine, 0, len(keys))
	for _, key := range keys {
		runs := rows[key]
		sort.Slice(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

		var b strings.Builder
		minX, maxX := runs[0].X, runs[0].X+runs[0].W
		maxSize := runs[0].FontSize
		for i, run := range runs {
			if i > 0 && needsSpace(runs[i-1], run) {
				b.WriteByte(' ')
			}
			b.WriteString(run.S)
			if run.X < minX {
				minX = run.X
			}
			if end := run.X + run.W; end > maxX {
				maxX = end
			}
			if run.FontSize > maxSize {
				maxSize = run.FontSize
			}
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		lines = append(lines, domain.TextLine{
			Text: text,
			Box: domain.BoundingBox{
				X:      int(minX),
				Y:      int(runs[0].Y),
				Width:  int(maxX - minX),
				Height: int(math.Ceil(maxSize)),
			},
		})
	}
	return lines
}

// needsSpace separates runs that the text layer stores as distinct words.
func needsSpace(prev, cur pdf.Text) bool {
	if strings.HasSuffix(prev.S, " ") || strings.HasPrefix(cur.S, " ") {
		return false
	}
	gap := cur.X - (prev.X + prev.W)
	return gap > prev.FontSize*0.2
}

// plainLines maps UTF-8 text onto synthetic rows so downstream evidence
// boxes still distinguish the top of the page from the bottom.
func plainLines(text string) []domain.TextLine {
	const rowHeight = 16
	var lines []domain.TextLine
	for i, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		lines = append(lines, domain.TextLine{
			Text: trimmed,
			Box: domain.BoundingBox{
				X:      0,
				Y:      i * rowHeight,
				Width:  8 * len(trimmed),
				Height: rowHeight,
			},
		})
	}
	return lines
}
