package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndWrap(t *testing.T) {
	e := New(KindValidation, "bad input")
	assert.Equal(t, KindValidation, e.Kind)
	assert.Contains(t, e.Error(), "bad input")

	wrapped := Wrap(KindTransient, "db call failed", fmt.Errorf("conn refused"))
	assert.ErrorIs(t, wrapped, wrapped.Err)
	assert.Contains(t, wrapped.Error(), "conn refused")
}

func TestWithDetails(t *testing.T) {
	e := NotFound("tenant", "t1").WithDetails("extra", "x")
	assert.Equal(t, "t1", e.Details["id"])
	assert.Equal(t, "x", e.Details["extra"])
}

func TestDuplicateHook(t *testing.T) {
	e := DuplicateHook("BeforeAgentExecution", "audit")
	assert.Equal(t, KindConflict, e.Kind)
	assert.Equal(t, "audit", e.Details["name"])
}

func TestAsAndKindOf(t *testing.T) {
	err := fmt.Errorf("wrapping: %w", CircuitOpen("hook:x"))
	ke := As(err)
	if assert.NotNil(t, ke) {
		assert.Equal(t, KindCircuitOpen, ke.Kind)
	}
	assert.Equal(t, KindCircuitOpen, KindOf(err))
	assert.Equal(t, KindFatal, KindOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Validation("field", "bad"):      http.StatusBadRequest,
		NotFound("hook", "x"):           http.StatusNotFound,
		Conflict("dup"):                 http.StatusConflict,
		Timeout("step"):                 http.StatusGatewayTimeout,
		CircuitOpen("p"):                http.StatusServiceUnavailable,
		Transient("op", errors.New("")): http.StatusBadGateway,
		Fatal("oops", nil):              http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err))
	}
}
