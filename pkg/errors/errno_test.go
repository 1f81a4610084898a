package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeCode(t *testing.T) {
	assert.Equal(t, 1, MakeCode(0, 0, 1))
	assert.Equal(t, 1001, MakeCode(0, 1, 1))
	assert.Equal(t, 2010002, MakeCode(ServiceRAG, CategoryUpstream, 2))
}

func TestErrnoError(t *testing.T) {
	err := ErrInvalidRequest.WithMessage("k must be positive")
	assert.Contains(t, err.Error(), "k must be positive")
	assert.Contains(t, err.Error(), fmt.Sprintf("%d", ErrInvalidRequest.Code))
}

func TestWithCausePreservesCode(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ErrEmbeddingUnavailable.WithCause(cause)

	assert.Equal(t, ErrEmbeddingUnavailable.Code, err.Code)
	assert.True(t, stderrors.Is(err, ErrEmbeddingUnavailable))
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestTaxonomyIsDistinct(t *testing.T) {
	codes := map[int]bool{}
	for _, e := range []*Errno{ErrInvalidRequest, ErrEmbeddingUnavailable, ErrRetrievalUnavailable, ErrGenerationUnavailable} {
		assert.False(t, codes[e.Code], "duplicate code %d", e.Code)
		codes[e.Code] = true
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ErrInvalidRequest.HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, ErrRetrievalUnavailable.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, (&Errno{Code: 1234567}).HTTPStatus())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	e := FromError(ErrGenerationUnavailable)
	assert.Equal(t, ErrGenerationUnavailable.Code, e.Code)

	wrapped := FromError(stderrors.New("boom"))
	assert.Equal(t, ErrInternal.Code, wrapped.Code)
	assert.Contains(t, wrapped.Error(), "boom")
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(ErrEmbeddingUnavailable.Code)
	require.True(t, ok)
	assert.Equal(t, ErrEmbeddingUnavailable, e)

	_, ok = Lookup(9999999)
	assert.False(t, ok)
}

func TestIsCodeAndGetCode(t *testing.T) {
	assert.True(t, IsCode(ErrCache, ErrCache.Code))
	assert.False(t, IsCode(stderrors.New("x"), ErrCache.Code))
	assert.Equal(t, -1, GetCode(stderrors.New("x")))
	assert.Equal(t, ErrTimeout.Code, GetCode(ErrTimeout))
}
