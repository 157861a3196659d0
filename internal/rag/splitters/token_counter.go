package splitters

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures text length in model tokens. It is an interface so
// the splitter can be exercised without downloading tokenizer data.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with the cl100k_base encoding, the tokenizer
// family of the completion and embedding models in use.
type TiktokenCounter struct {
	tokenizer *tiktoken.Tiktoken
}

// NewTiktokenCounter initializes the cl100k_base tokenizer.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	tke, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &TiktokenCounter{tokenizer: tke}, nil
}

// Count returns the token length of text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.tokenizer.Encode(text, nil, nil))
}

var _ TokenCounter = (*TiktokenCounter)(nil)
