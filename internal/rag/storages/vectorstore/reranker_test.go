package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewReranker(t *testing.T) {
	require.NotNil(t, newReranker(60))
	require.NotNil(t, newReranker(1))
}
