package document

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_IsFileNotFound(t *testing.T) {
	var err error = &NotFoundError{Path: "protocolo_sepse.pdf"}

	assert.True(t, errors.Is(err, ErrDocumentNotFound))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), "protocolo_sepse.pdf")
}
