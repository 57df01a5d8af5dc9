package verifysdk

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAPIErrorWriteAndParse(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrAlreadyTerminal.WriteError(rec)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	err := parseErrorResponse(rec.Result(), rec.Body.Bytes())
	require.ErrorIs(t, err, ErrAlreadyTerminal)
	require.False(t, errors.Is(err, ErrNotFound))
}

func TestParseErrorResponseFallback(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusBadGateway}
	err := parseErrorResponse(resp, []byte("<html>"))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, ErrorCodeServerError, apiErr.Code)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)

	require.NoError(t, parseErrorResponse(&http.Response{StatusCode: http.StatusOK}, nil))
}

func TestWithDescription(t *testing.T) {
	e := ErrInvalidRequest.WithDescription("name is required")
	require.Equal(t, "name is required", e.Description)
	require.Equal(t, "the request is malformed or missing required fields", ErrInvalidRequest.Description)
	require.ErrorIs(t, e, ErrInvalidRequest)
}
