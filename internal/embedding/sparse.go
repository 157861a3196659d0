package embedding

import (
	"hash/fnv"
	"sort"
	"strings"
	"unicode"
)

// SparseEncoder produces deterministic BM25-weighted term vectors locally:
// terms are hashed into a 32-bit index space and weighted by a saturating
// term-frequency function. Dense embeddings capture paraphrase; these sparse
// vectors guarantee exact terminology and metric recall.
type SparseEncoder struct {
	k1     float64
	b      float64
	avgLen float64
}

// NewSparseEncoder creates an encoder with standard BM25 parameters.
func NewSparseEncoder() *SparseEncoder {
	return &SparseEncoder{k1: 1.2, b: 0.75, avgLen: 256}
}

// stopwords are excluded from sparse vectors; they carry no lexical signal
// and would dominate the term frequencies of every text.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "was": {}, "we": {}, "were": {}, "which": {},
	"with": {},
}

// Encode builds the sparse vector for a text. Equal inputs always produce
// equal vectors; indices are sorted ascending.
func (e *SparseEncoder) Encode(text string) SparseVector {
	terms := tokenize(text)
	if len(terms) == 0 {
		return SparseVector{Indices: []uint32{}, Values: []float32{}}
	}

	counts := make(map[uint32]float64, len(terms))
	for _, term := range terms {
		counts[termIndex(term)]++
	}

	docLen := float64(len(terms))
	norm := e.k1 * (1 - e.b + e.b*docLen/e.avgLen)

	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		tf := counts[idx]
		values[i] = float32(tf * (e.k1 + 1) / (tf + norm))
	}
	return SparseVector{Indices: indices, Values: values}
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// stopwords and single characters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

func termIndex(term string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(term))
	return h.Sum32()
}
