package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/notely/pkg/core"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// Is lets callers match API errors against the core sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case core.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case core.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case core.ErrConflict:
		return e.StatusCode == http.StatusConflict
	case core.ErrValidation:
		return e.StatusCode == http.StatusBadRequest
	case core.ErrReadOnly:
		return e.StatusCode == http.StatusForbidden
	}
	return false
}

// AsAPIError returns the APIError wrapped in err, or nil.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error, Fields: payload.Fields}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
}
