package box

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Veraticus/bates-must-flow/internal/common"
)

// APIError is an error response from the Box API.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Status    int    `json:"status"`

	// RetryAfter is the wait requested by a 429 response.
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("box API error %d", e.Status)
	}
	return fmt.Sprintf("box API error %d %s: %s (request %s)", e.Status, e.Code, e.Message, e.RequestID)
}

// Unwrap maps 404 to common.ErrNotFound and 409 to common.ErrAlreadyExists.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return common.ErrNotFound
	case http.StatusConflict:
		return common.ErrAlreadyExists
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(body) > 0 {
		if jerr := json.Unmarshal(body, apiErr); jerr != nil {
			apiErr.Message = string(body)
		}
		apiErr.Status = resp.StatusCode
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}
