package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"papernotes/internal/layout"
	"papernotes/internal/rag/schema"
	"papernotes/pkg/logger"
)

const defaultSection = "Introduction"

// Extraction is the raw material the ingestion pipeline works from: typed
// chunks, positioned text blocks for caption matching, and unmatched visuals.
type Extraction struct {
	Chunks  *schema.ChunkSet
	Blocks  []schema.TextBlock
	Visuals []*schema.Visual
}

// Extractor downloads a source document and turns it into typed chunks via
// the layout parser.
type Extractor struct {
	log    *logger.Logger
	parser layout.Parser
	http   *http.Client
}

// New creates an extractor over the given layout parser.
func New(parser layout.Parser) *Extractor {
	return &Extractor{
		log:    logger.New("extractor", ""),
		parser: parser,
		http:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Extract downloads the document at sourceURL exactly once and parses it.
// A layout parser failure is not fatal: the document may still be indexed
// later, so it yields an empty extraction rather than an error.
func (e *Extractor) Extract(ctx context.Context, sourceURL string) (*Extraction, error) {
	data, err := e.download(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	mtype := mimetype.Detect(data)
	if !mtype.Is("application/pdf") {
		return nil, fmt.Errorf("unsupported document type '%s' for %s", mtype.String(), sourceURL)
	}

	elements, err := e.parser.Parse(ctx, data)
	if err != nil {
		e.log.WithField("source", sourceURL).WithField("error", err.Error()).
			Warn("layout parsing failed; continuing with empty extraction")
		return &Extraction{Chunks: &schema.ChunkSet{}}, nil
	}
	return e.classify(elements), nil
}

// download fetches the document body through a temp file so a partial fetch
// never leaves a truncated buffer in play.
func (e *Extractor) download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download of %s returned status %d", sourceURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "papernotes-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer removeWithRetry(tmp.Name(), 3)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write download to temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush temp file: %w", err)
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read temp file: %w", err)
	}
	return data, nil
}

// removeWithRetry deletes a temp file, retrying briefly because antivirus or
// indexer processes can hold a fresh file open.
func removeWithRetry(path string, attempts int) {
	for i := 0; i < attempts; i++ {
		if err := os.Remove(path); err == nil || os.IsNotExist(err) {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// classify walks the layout elements in reading order, tracking the current
// section from Title elements and typing everything else.
func (e *Extractor) classify(elements []layout.Element) *Extraction {
	out := &Extraction{Chunks: &schema.ChunkSet{}}
	section := defaultSection

	for _, el := range elements {
		text := strings.TrimSpace(el.Text)

		switch el.Type {
		case layout.ElementTitle:
			if text != "" {
				section = text
			}
			continue

		case layout.ElementNarrativeText, layout.ElementListItem:
			if text == "" {
				continue
			}
			out.Chunks.Text = append(out.Chunks.Text, &schema.Chunk{
				ID:      uuid.New().String(),
				Type:    schema.ChunkTypeText,
				Section: section,
				Content: text,
				Page:    el.Page,
			})
			out.Blocks = append(out.Blocks, schema.TextBlock{
				Text: text,
				Page: el.Page,
				BBox: el.BBox,
			})

		case layout.ElementImage:
			if el.Metadata.ImageData == "" {
				continue
			}
			chunk := &schema.Chunk{
				ID:         uuid.New().String(),
				Type:       schema.ChunkTypeImage,
				Section:    section,
				Content:    text,
				Page:       el.Page,
				Confidence: el.Metadata.Confidence,
				Metadata: map[string]interface{}{
					schema.MetadataKeyImageData:  el.Metadata.ImageData,
					schema.MetadataKeyPageNumber: el.Page,
				},
			}
			out.Chunks.Images = append(out.Chunks.Images, chunk)
			out.Visuals = append(out.Visuals, &schema.Visual{
				ID:        chunk.ID,
				Type:      schema.ChunkTypeImage,
				Page:      el.Page,
				BBox:      el.BBox,
				ImageData: el.Metadata.ImageData,
				FlatText:  text,
			})

		case layout.ElementTable:
			rows, cols := tableShape(el.Metadata.TextAsHTML)
			chunk := &schema.Chunk{
				ID:         uuid.New().String(),
				Type:       schema.ChunkTypeTable,
				Section:    section,
				Content:    tableContent(text, el.Metadata.TextAsHTML),
				Page:       el.Page,
				Confidence: el.Metadata.Confidence,
				Metadata: map[string]interface{}{
					schema.MetadataKeyImageData:  el.Metadata.ImageData,
					schema.MetadataKeyPageNumber: el.Page,
				},
			}
			out.Chunks.Tables = append(out.Chunks.Tables, chunk)
			out.Visuals = append(out.Visuals, &schema.Visual{
				ID:        chunk.ID,
				Type:      schema.ChunkTypeTable,
				Page:      el.Page,
				BBox:      el.BBox,
				ImageData: el.Metadata.ImageData,
				FlatText:  text,
				Rows:      rows,
				Columns:   cols,
				Accuracy:  el.Metadata.Confidence * 100,
			})

		default:
			if text == "" {
				continue
			}
			out.Chunks.Other = append(out.Chunks.Other, &schema.Chunk{
				ID:      uuid.New().String(),
				Type:    schema.ChunkTypeOther,
				Section: section,
				Content: text,
				Page:    el.Page,
			})
		}
	}
	return out
}

// tableContent prefers the structured HTML rendition over flat cell text.
func tableContent(text, html string) string {
	if strings.TrimSpace(html) != "" {
		return html
	}
	return text
}

// tableShape counts rows and the widest row of a table's HTML rendition.
func tableShape(html string) (rows, cols int) {
	lower := strings.ToLower(html)
	rows = strings.Count(lower, "<tr")
	for _, row := range strings.Split(lower, "<tr") {
		cells := strings.Count(row, "<td") + strings.Count(row, "<th")
		if cells > cols {
			cols = cells
		}
	}
	return rows, cols
}
