package prompts

import (
	"fmt"
	"strings"
)

// ErrMissingVariable is returned when a template is rendered without one of
// its declared variables. Callers match it with errors.Is.
var ErrMissingVariable = fmt.Errorf("missing prompt variable")

// Template is a named prompt with declared variables. Placeholders use the
// form {{name}}; rendering fails if any declared variable is absent.
type Template struct {
	Name      string
	Text      string
	Variables []string
}

// Render substitutes the declared variables into the template text.
func (t Template) Render(vars map[string]string) (string, error) {
	out := t.Text
	for _, v := range t.Variables {
		value, ok := vars[v]
		if !ok {
			return "", fmt.Errorf("%w: %q in template %q", ErrMissingVariable, v, t.Name)
		}
		out = strings.ReplaceAll(out, "{{"+v+"}}", value)
	}
	return out, nil
}

// SectionHeaders is the mandated ten-section structure of generated notes.
// The validation/repair loop must preserve these names and their order
// exactly, so every prompt that emits notes embeds this list verbatim.
var SectionHeaders = []string{
	"1. Brief Overview",
	"2. Key Contributions",
	"3. Abstract/Problem Statement",
	"4. Motivation & Background",
	"5. Proposed Method/Framework",
	"6. Technical Components",
	"7. Experiments & Results",
	"8. Limitations",
	"9. Future Work",
	"10. Key References",
}

// NotMentioned is the exact marker written into a section that the source
// material does not cover, keeping the section count invariant.
const NotMentioned = "Not explicitly mentioned in the paper"

func headerBlock() string {
	var sb strings.Builder
	for _, h := range SectionHeaders {
		sb.WriteString("### ")
		sb.WriteString(h)
		sb.WriteString("\n")
	}
	return sb.String()
}

// SegmentSummary condenses one merged segment into a short factual summary
// used as the stored retrieval text.
var SegmentSummary = Template{
	Name:      "segment_summary",
	Variables: []string{"element"},
	Text: `You are an assistant tasked with summarizing fragments of a research paper.
Give a concise factual summary of the fragment below.

Respond only with the summary, no additional comment.
Do not start your message by saying "Here is a summary".
Preserve exact numbers, metrics, model names, and terminology.

Fragment:
{{element}}

Summary:`,
}

// FactExtraction is the stage-1 pass over a batch of retrieved chunks.
var FactExtraction = Template{
	Name:      "fact_extraction",
	Variables: []string{"element"},
	Text: `You are an expert at extracting key information from research paper chunks.

**Your task**: Extract and condense the most important information from the text below.
Focus on facts, numbers, methodologies, results, and technical details.

**Rules**:
- Extract only factual information explicitly stated
- Preserve exact numbers, metrics, datasets, model names, and terminology
- Do NOT add structure or sections
- Do NOT hallucinate or infer
- Keep it concise but comprehensive

Text:
{{element}}

Extracted Information:`,
}

// NotesSynthesis turns the concatenated extractions into the fixed
// ten-section structured document.
var NotesSynthesis = Template{
	Name:      "notes_synthesis",
	Variables: []string{"element"},
	Text: `You are an expert at creating comprehensive, well-structured academic notes.

You will receive multiple extracted information chunks from a research paper. Your task is to synthesize them into a single, coherent, structured document.

**Required Structure** (use exactly these section headers, in this order):

` + headerBlock() + `
**Critical Rules**:
- Synthesize information across all chunks (remove redundancy)
- Preserve all exact numbers, metrics, model names, datasets
- If a section has no information, write "` + NotMentioned + `"
- Use clear, concise academic language
- Maintain logical flow between sections

Extracted chunks to synthesize:

{{element}}

Generate comprehensive structured notes:`,
}

// Validation reviews drafted notes against the stage-1 extraction and emits
// a strict-JSON issue report.
var Validation = Template{
	Name:      "validation",
	Variables: []string{"notes", "source"},
	Text: `You are a strict academic reviewer evaluating the factual accuracy of generated research notes.

You will be given:
1. Structured notes generated from a paper
2. Extracted factual information from the paper

Your task is to VERIFY the notes against the extracted information.

**Rules**:
- Use ONLY the provided extracted information as ground truth
- Do NOT rewrite or fix the notes
- Do NOT add explanations
- Do NOT infer missing information
- Be strict and conservative

**For each issue, classify it as one of the following**:
- INCORRECT: Contradicts the extracted information
- UNSUPPORTED: Not explicitly stated in the extracted information
- SPECULATIVE: Guess, assumption, or future-looking statement not stated
- MISSING: Important information present in extracted data but missing in notes

**Output Format (STRICT JSON ONLY)**:
{
  "incorrect_claims": [string],
  "unsupported_claims": [string],
  "speculative_claims": [string],
  "missing_core_information": [string],
  "safe_sections": [string]
}

Structured Notes to Validate:
{{notes}}

Extracted Information (Ground Truth):
{{source}}

Validation Output:`,
}

// Repair applies a validation report to the notes while preserving the exact
// section structure.
var Repair = Template{
	Name:      "repair",
	Variables: []string{"validation", "notes"},
	Text: `You are an academic editor producing final, publication-ready research notes.

You will receive:
1. Original structured notes
2. A validation report identifying issues

Your task is to produce corrected final notes.

**CRITICAL REQUIREMENTS**:
- You MUST use the EXACT structure shown below
- You MUST keep all section titles and numbering IDENTICAL
- You MUST NOT add, remove, reorder, or rename sections

` + headerBlock() + `
**Editing Rules**:
- Remove all INCORRECT claims
- Remove or soften UNSUPPORTED claims
- Remove SPECULATIVE content entirely
- Add missing information ONLY if explicitly listed as MISSING in the validation report
- If information is unavailable, write exactly: "` + NotMentioned + `"
- Do NOT add new facts
- Do NOT introduce new interpretations
- Preserve all exact terminology, numbers, datasets, and model names
- Keep the content concise and academic

Validation Report:
{{validation}}

Original Structured Notes:
{{notes}}

Produce corrected final structured notes using ONLY the structure above:`,
}

// FactualQA answers a chat question constrained to the retrieved context.
var FactualQA = Template{
	Name:      "factual_qa",
	Variables: []string{"context", "question"},
	Text: `You are a careful research assistant answering questions about one specific paper.

**Rules**:
- Answer ONLY from the numbered sources below
- Cite sources inline as [Source N]
- If the sources do not contain the answer, say so plainly
- Preserve exact numbers, metrics, and terminology
- Do NOT speculate beyond the sources

Sources:
{{context}}

Question: {{question}}

Answer:`,
}

// QueryEnhancement rewrites a user question into academic search phrasing.
var QueryEnhancement = Template{
	Name:      "query_enhancement",
	Variables: []string{"user_input"},
	Text: `Rewrite the following search query into a concise academic-style description.

Rules:
- Preserve original intent
- Add relevant technical keywords and synonyms
- Do NOT invent experiments or results
- Suitable for academic search engines

Query: {{user_input}}`,
}

// VisualDescription builds a factual description of a figure or table from
// its matched caption and context text.
var VisualDescription = Template{
	Name:      "visual_description",
	Variables: []string{"element"},
	Text: `You are generating a FACTUAL description of one figure or table from a research paper.

**Rules**:
- ONLY describe what is stated in the caption and context below
- Use phrases like "shows", "depicts", "presents"
- Do NOT infer trends, performance, or improvements
- Do NOT compare methods
- If there is no quantitative data, note "(illustrative only)"
- Write one short paragraph, no bullet points

Caption and context:
{{element}}

Description:`,
}
