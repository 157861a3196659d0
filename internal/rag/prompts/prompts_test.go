package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, err := SegmentSummary.Render(map[string]string{"element": "transformer attention"})
	require.NoError(t, err)
	assert.Contains(t, out, "transformer attention")
	assert.NotContains(t, out, "{{element}}")
}

func TestRenderMissingVariable(t *testing.T) {
	_, err := Validation.Render(map[string]string{"notes": "draft"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingVariable)
	assert.Contains(t, err.Error(), "source")
}

func TestSectionHeaders(t *testing.T) {
	require.Len(t, SectionHeaders, 10)
	assert.Equal(t, "1. Brief Overview", SectionHeaders[0])
	assert.Equal(t, "10. Key References", SectionHeaders[9])

	// Every notes-emitting template must carry the full structure so the
	// model cannot drift from it.
	for _, tmpl := range []Template{NotesSynthesis, Repair} {
		for _, header := range SectionHeaders {
			assert.Contains(t, tmpl.Text, header, "template %s is missing header %q", tmpl.Name, header)
		}
		assert.Contains(t, tmpl.Text, NotMentioned)
	}
}

func TestValidationDemandsStrictJSON(t *testing.T) {
	assert.Contains(t, Validation.Text, "incorrect_claims")
	assert.Contains(t, Validation.Text, "unsupported_claims")
	assert.Contains(t, Validation.Text, "speculative_claims")
	assert.Contains(t, Validation.Text, "missing_core_information")
	assert.Contains(t, Validation.Text, "safe_sections")
	assert.True(t, strings.Contains(Validation.Text, "STRICT JSON"))
}
