package schema

import (
	"crypto/sha256"
	"encoding/hex"
)

// ChunkType classifies an extracted chunk by its source element.
type ChunkType string

const (
	ChunkTypeText   ChunkType = "text"
	ChunkTypeImage  ChunkType = "image"
	ChunkTypeTable  ChunkType = "table"
	ChunkTypeOther  ChunkType = "other"
	ChunkTypeVisual ChunkType = "visual" // image/table after description, ready for merging
)

// Metadata keys carried on chunks and index payloads.
const (
	MetadataKeyImageData  = "image_base64"
	MetadataKeyPageNumber = "page_number"
	MetadataKeyConfidence = "confidence"
)

// DocumentID derives the stable content-addressed identifier for a source
// locator: the first 16 hex characters of its SHA-256 digest. Equal inputs
// always map to equal ids.
func DocumentID(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])[:16]
}

// BoundingBox is the page-space rectangle of a layout element, in the layout
// parser's coordinate units (origin top-left, y grows downward).
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns the horizontal extent of the box, never less than 1 so it can
// be used as an overlap denominator.
func (b BoundingBox) Width() float64 {
	w := b.X1 - b.X0
	if w < 1 {
		return 1
	}
	return w
}

// Chunk is a typed, section-tagged unit of extracted content. Chunks are
// produced once by the extractor and never mutated downstream.
type Chunk struct {
	ID         string
	Type       ChunkType
	Section    string
	Content    string
	Page       int
	Confidence float64
	Metadata   map[string]interface{}
}

// ImageData returns the raw encoded image reference carried in the chunk
// metadata, or "" when the chunk has none.
func (c *Chunk) ImageData() string {
	if c.Metadata == nil {
		return ""
	}
	if s, ok := c.Metadata[MetadataKeyImageData].(string); ok {
		return s
	}
	return ""
}

// ChunkSet is the extractor's output, split by element type.
type ChunkSet struct {
	Text   []*Chunk
	Images []*Chunk
	Tables []*Chunk
	Other  []*Chunk
}

// Empty reports whether extraction produced nothing at all.
func (s *ChunkSet) Empty() bool {
	return len(s.Text) == 0 && len(s.Images) == 0 && len(s.Tables) == 0 && len(s.Other) == 0
}

// TextBlock is a positioned run of page text used for caption and context
// matching against visual elements.
type TextBlock struct {
	Text string
	Page int
	BBox BoundingBox
}

// Visual is an image or table element enriched with geometrically matched
// caption/context text and a usefulness score.
type Visual struct {
	ID                string
	Type              ChunkType // ChunkTypeImage or ChunkTypeTable
	Page              int
	BBox              BoundingBox
	Caption           string
	Context           string
	CaptionConfidence float64
	ContextConfidence float64
	TextDensity       int     // combined caption+context word count
	UsefulnessScore   float64 // in [0,1]
	ImageData         string  // raw base64 payload from the parser
	FlatText          string  // parser's own flat text for the element, if any

	// Table structure, populated for ChunkTypeTable only.
	Rows     int
	Columns  int
	Accuracy float64 // parser's structure confidence in [0,100]
}

// Segment is a token-bounded fragment of one or more chunks, tagged with its
// originating section and source chunk lineage.
type Segment struct {
	Text         string
	Source       string // originating document URL
	Section      string
	ChunkID      string
	ImageData    string    // carried through for visual chunks, else ""
	OriginalType ChunkType // type of the source chunk
}

// Document is a retrieved index entry: the stored summary text plus the
// payload metadata needed for grounding and visual attachment.
type Document struct {
	ID        string // index point id
	Text      string
	Score     float64
	Metadata  map[string]interface{}
	ChunkID   string
	Section   string
	Source    string
	DocID     string // owning document_id
	ImageData string
}

// DedupKey identifies a retrieval result for cross-query deduplication: the
// source chunk id when present, otherwise the raw content.
func (d *Document) DedupKey() string {
	if d.ChunkID != "" {
		return d.ChunkID
	}
	return d.Text
}

// ValidationReport classifies the issues a review pass found in drafted
// notes. It is consumed once by the following repair pass and discarded.
type ValidationReport struct {
	IncorrectClaims        []string `json:"incorrect_claims"`
	UnsupportedClaims      []string `json:"unsupported_claims"`
	SpeculativeClaims      []string `json:"speculative_claims"`
	MissingCoreInformation []string `json:"missing_core_information"`
	SafeSections           []string `json:"safe_sections"`
}

// Actionable reports whether the review found anything the repair pass must
// change. Safe sections alone never trigger a repair round.
func (r *ValidationReport) Actionable() bool {
	return len(r.IncorrectClaims) > 0 ||
		len(r.UnsupportedClaims) > 0 ||
		len(r.SpeculativeClaims) > 0 ||
		len(r.MissingCoreInformation) > 0
}

// NotesResult is the final output of the synthesis pipeline.
type NotesResult struct {
	DocumentID string   `json:"document_id"`
	Notes      string   `json:"notes"`
	Visuals    []string `json:"visuals,omitempty"` // deduplicated raw image references
	Iterations int      `json:"iterations"`        // repair rounds actually run
}

// PaperMetadata is a catalog entry describing a published paper.
type PaperMetadata struct {
	ID               string  `json:"id,omitempty"`
	Title            string  `json:"title"`
	Authors          string  `json:"authors"`
	Abstract         string  `json:"abstract"`
	DownloadURL      string  `json:"download_url"`
	PublicationDate  string  `json:"publication_date"`
	SourceRepository string  `json:"source_repository"`
	FieldOfStudy     string  `json:"field_of_study"`
	Score            float64 `json:"score,omitempty"`
}
