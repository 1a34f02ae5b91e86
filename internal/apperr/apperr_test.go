package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:       http.StatusBadRequest,
		KindAuth:             http.StatusUnauthorized,
		KindNotFound:         http.StatusNotFound,
		KindConflict:         http.StatusConflict,
		KindUpstream:         http.StatusInternalServerError,
		KindMethodNotAllowed: http.StatusMethodNotAllowed,
		KindUnknown:          http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestKindOfWrapped(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("save pattern: %w", Upstream("Failed to save pattern", cause))

	assert.Equal(t, KindUpstream, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindUnknown, KindOf(cause))

	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "Failed to save pattern", e.Message)
}

func TestWithDetails(t *testing.T) {
	err := Validation("Need at least 5 quality training examples").With("currentCount", 3)
	assert.Equal(t, 3, err.Details["currentCount"])
	assert.Equal(t, "Need at least 5 quality training examples", err.Error())
}
