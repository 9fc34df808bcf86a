package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbedder(context.Background(), "", DefaultModel)
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}
