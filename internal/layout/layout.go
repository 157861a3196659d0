package layout

import (
	"context"

	"papernotes/internal/rag/schema"
)

// ElementType is the layout parser's classification of a page element.
type ElementType string

const (
	ElementTitle         ElementType = "Title"
	ElementNarrativeText ElementType = "NarrativeText"
	ElementListItem      ElementType = "ListItem"
	ElementImage         ElementType = "Image"
	ElementTable         ElementType = "Table"
)

// ElementMetadata carries the parser-side extras for an element. Image and
// table elements embed their bitmap inline as base64 so no temp files are
// left dangling between pipeline stages.
type ElementMetadata struct {
	ImageData  string  // inline base64 payload for Image/Table elements
	TextAsHTML string  // structured rendering for Table elements
	Confidence float64 // detection probability in [0,1], 0 when unreported
}

// Element is one typed, positioned unit of parsed document layout.
type Element struct {
	Type     ElementType
	Text     string
	Page     int
	BBox     schema.BoundingBox
	Metadata ElementMetadata
}

// Parser is the layout-parsing collaborator: document bytes in, typed
// elements out. A failed parse returns an error and no partial elements.
type Parser interface {
	Parse(ctx context.Context, data []byte) ([]Element, error)
}
