package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentID(t *testing.T) {
	a := DocumentID("https://arxiv.org/pdf/1706.03762")
	b := DocumentID("https://arxiv.org/pdf/1706.03762")
	c := DocumentID("https://arxiv.org/pdf/1810.04805")

	assert.Equal(t, a, b, "same URL must always map to the same id")
	assert.NotEqual(t, a, c, "different URLs must map to different ids")
	assert.Len(t, a, 16)
	assert.Regexp(t, `^[0-9a-f]{16}$`, a)
}

func TestDedupKey(t *testing.T) {
	withChunk := &Document{ChunkID: "chunk-1", Text: "some text"}
	assert.Equal(t, "chunk-1", withChunk.DedupKey())

	withoutChunk := &Document{Text: "some text"}
	assert.Equal(t, "some text", withoutChunk.DedupKey())
}

func TestValidationReportActionable(t *testing.T) {
	empty := &ValidationReport{}
	assert.False(t, empty.Actionable())

	safeOnly := &ValidationReport{SafeSections: []string{"1. Brief Overview"}}
	assert.False(t, safeOnly.Actionable(), "safe sections alone must not trigger a repair")

	withIssue := &ValidationReport{UnsupportedClaims: []string{"claims 99% accuracy"}}
	assert.True(t, withIssue.Actionable())
}

func TestBoundingBoxWidth(t *testing.T) {
	assert.Equal(t, 100.0, BoundingBox{X0: 10, X1: 110}.Width())
	assert.Equal(t, 1.0, BoundingBox{X0: 10, X1: 10}.Width(), "degenerate boxes keep a usable denominator")
}

func TestChunkImageData(t *testing.T) {
	c := &Chunk{Metadata: map[string]interface{}{MetadataKeyImageData: "base64payload"}}
	assert.Equal(t, "base64payload", c.ImageData())

	assert.Equal(t, "", (&Chunk{}).ImageData())
}
