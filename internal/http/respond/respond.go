package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Envelope is the error body the backend sends: {"message": "..."}.
type Envelope struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// Unauthorized reports whether the server rejected the credential.
func (e *Error) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// Decode turns resp into out, or into an *Error for non-2xx statuses. The
// body is always closed. A nil out discards the body.
func Decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFrom(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", resp.Request.URL.Path, err)
	}
	return nil
}

func errorFrom(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env Envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(msg)}
	}
	return &Error{Status: resp.StatusCode}
}

// Message returns the text to show a user for err: the server's message when
// there is one, fallback otherwise.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
