package layout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"papernotes/internal/rag/schema"
)

// ServiceParser is a Parser backed by an unstructured-compatible layout
// service. The request pins the high-resolution strategy, table structure
// inference, and inline image payloads.
type ServiceParser struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewServiceParser creates a layout service client. timeout is in seconds;
// zero selects a generous default since high-resolution parsing is slow.
func NewServiceParser(baseURL, apiKey string, timeout int) *ServiceParser {
	if timeout <= 0 {
		timeout = 300
	}
	return &ServiceParser{
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// wireElement mirrors the service's element JSON.
type wireElement struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		PageNumber  int     `json:"page_number"`
		ImageBase64 string  `json:"image_base64"`
		TextAsHTML  string  `json:"text_as_html"`
		DetectProb  float64 `json:"detection_class_prob"`
		Coordinates struct {
			Points [][]float64 `json:"points"`
		} `json:"coordinates"`
	} `json:"metadata"`
}

// Parse submits the document to the layout service and decodes its elements.
func (p *ServiceParser) Parse(ctx context.Context, data []byte) ([]Element, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("files", "document.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write document payload: %w", err)
	}
	// Strategy fields: structure-aware tables, inline bitmaps.
	_ = writer.WriteField("strategy", "hi_res")
	_ = writer.WriteField("infer_table_structure", "true")
	_ = writer.WriteField("extract_image_block_types", `["Image","Table"]`)
	_ = writer.WriteField("extract_image_block_to_payload", "true")
	_ = writer.WriteField("coordinates", "true")
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create layout request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("layout service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("layout service returned status %d: %s", resp.StatusCode, string(detail))
	}

	var wire []wireElement
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode layout response: %w", err)
	}

	elements := make([]Element, 0, len(wire))
	for _, w := range wire {
		elements = append(elements, Element{
			Type: ElementType(w.Type),
			Text: w.Text,
			Page: w.Metadata.PageNumber,
			BBox: bboxFromPoints(w.Metadata.Coordinates.Points),
			Metadata: ElementMetadata{
				ImageData:  w.Metadata.ImageBase64,
				TextAsHTML: w.Metadata.TextAsHTML,
				Confidence: w.Metadata.DetectProb,
			},
		})
	}
	return elements, nil
}

// bboxFromPoints converts the service's corner-point polygon into an
// axis-aligned bounding box.
func bboxFromPoints(points [][]float64) schema.BoundingBox {
	var box schema.BoundingBox
	first := true
	for _, pt := range points {
		if len(pt) < 2 {
			continue
		}
		x, y := pt[0], pt[1]
		if first {
			box = schema.BoundingBox{X0: x, Y0: y, X1: x, Y1: y}
			first = false
			continue
		}
		if x < box.X0 {
			box.X0 = x
		}
		if y < box.Y0 {
			box.Y0 = y
		}
		if x > box.X1 {
			box.X1 = x
		}
		if y > box.Y1 {
			box.Y1 = y
		}
	}
	return box
}

var _ Parser = (*ServiceParser)(nil)
