package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non 2xx response from the identity service.
type APIError struct {
	Operation string
	Status    int
	Code      string
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return "directory error"
	}
	if e.Message != "" {
		return fmt.Sprintf("directory %s failed (%d): %s", e.Operation, e.Status, e.Message)
	}
	return fmt.Sprintf("directory %s failed (%d)", e.Operation, e.Status)
}

// Metadata returns the error details for structured errors.
func (e *APIError) Metadata() map[string]any {
	meta := map[string]any{
		"operation": e.Operation,
		"status":    e.Status,
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	return meta
}

func (e *APIError) alreadyRegistered() bool {
	switch e.Code {
	case "email_exists", "user_already_exists":
		return true
	}
	if e.Status != http.StatusConflict && e.Status != http.StatusUnprocessableEntity {
		return false
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "already been registered") ||
		strings.Contains(msg, "already registered") ||
		strings.Contains(msg, "already exists")
}

type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func parseAPIError(operation string, status int, raw []byte) *APIError {
	apiErr := &APIError{
		Operation: operation,
		Status:    status,
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	apiErr.Code = firstNonEmpty(body.ErrorCode, body.Error)
	apiErr.Message = firstNonEmpty(body.Msg, body.Message, body.ErrorDescription, body.Error, http.StatusText(status))
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
