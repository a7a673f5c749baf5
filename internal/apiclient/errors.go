package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is returned for every non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Code       string // optional server error code
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether the backend rejected the credentials or token.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound reports whether the requested record does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// NetworkError wraps failures that happened before a response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// errorBody covers the error shapes the backend emits:
//
//	{"detail": "Strategy not found"}
//	{"detail": [{"loc": ["body","name"], "msg": "field required"}]}
//	{"message": "...", "code": "..."}
//	{"error": {"code": "...", "message": "..."}}
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type validationDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// newAPIError builds an APIError from a failed response body.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		apiErr.Message = detailMessage(eb.Detail)
		if apiErr.Message == "" {
			apiErr.Message = eb.Message
		}
		apiErr.Code = eb.Code
		if eb.Error != nil {
			if apiErr.Message == "" {
				apiErr.Message = eb.Error.Message
			}
			if apiErr.Code == "" {
				apiErr.Code = eb.Error.Code
			}
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("request failed with status %d", status)
	}
	return apiErr
}

func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var details []validationDetail
	if json.Unmarshal(raw, &details) == nil {
		msgs := make([]string, 0, len(details))
		for _, d := range details {
			if d.Msg == "" {
				continue
			}
			if field := locField(d.Loc); field != "" {
				msgs = append(msgs, field+": "+d.Msg)
			} else {
				msgs = append(msgs, d.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// locField returns the last element of a validation location, e.g. ["body","name"] -> "name"
func locField(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	return fmt.Sprint(loc[len(loc)-1])
}
