package httperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maximum amount of an error body kept for diagnostics
const bodyExcerptLen = 4096

type ResponseError struct {
	Method     string
	URL        string
	Status     string
	StatusCode int
	BodyText   string
}

func (e ResponseError) Error() string {
	msg := fmt.Sprintf("HTTP error: %s %s: %s", e.Method, e.URL, e.Status)
	if e.BodyText != "" {
		msg += "\n" + e.BodyText
	}
	return msg
}

func (e ResponseError) Temporary() bool {
	return statusIsTemporary(e.StatusCode)
}

// FromResponse consumes and closes the body of an unsuccessful response and
// returns an error describing it.
func FromResponse(resp *http.Response) error {
	defer resp.Body.Close()
	blob, err := io.ReadAll(io.LimitReader(resp.Body, bodyExcerptLen))
	if err != nil {
		return err
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "problem+json") {
		var p Problem
		if err := json.Unmarshal(blob, &p); err == nil {
			if p.Status == 0 {
				p.Status = resp.StatusCode
			}
			return p
		}
	}
	rerr := ResponseError{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
	}
	if resp.Request != nil {
		rerr.Method = resp.Request.Method
		rerr.URL = resp.Request.URL.Redacted()
	}
	// publication bodies are binary, only keep text
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/") || strings.Contains(ct, "json") {
		rerr.BodyText = strings.TrimSpace(string(blob))
	}
	return rerr
}

// StatusCode extracts the HTTP status from an error returned by FromResponse
func StatusCode(err error) int {
	var rerr ResponseError
	var perr Problem
	switch {
	case errors.As(err, &rerr):
		return rerr.StatusCode
	case errors.As(err, &perr):
		return perr.Status
	}
	return 0
}

func statusIsTemporary(code int) bool {
	switch code {
	case http.StatusGatewayTimeout,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusInsufficientStorage,
		http.StatusInternalServerError,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}
