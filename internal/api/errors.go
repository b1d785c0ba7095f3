package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/nilcar/leads-console/internal/validate"
)

// ErrUnauthorized matches any 401 or 403 response.
var ErrUnauthorized = errors.New("session is not authorized")

// StatusError is a non-2xx response.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden)
}

// DecodeError is a 2xx response whose body does not have the expected shape.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: unexpected response: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError is a failure to reach the backend at all.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request error: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err means the session must be re-established.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// Message converts any client error into the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		verr validate.Errors
		serr *StatusError
		derr *DecodeError
		terr *TransportError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, ErrUnauthorized):
		return "Sessão expirada ou sem permissão. Faça login novamente."
	case errors.As(err, &serr):
		if msg := serverMessage(serr.Body); msg != "" {
			return msg
		}
		if serr.Code >= 500 {
			return fmt.Sprintf("Erro no servidor (%d). Tente novamente.", serr.Code)
		}
		return fmt.Sprintf("Requisição recusada (%d).", serr.Code)
	case errors.As(err, &derr):
		return "Resposta inesperada do servidor."
	case errors.As(err, &terr):
		return "Não foi possível conectar ao servidor."
	}
	return err.Error()
}

// serverMessage extracts a short message from a plain or JSON error body.
func serverMessage(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	if strings.HasPrefix(body, "{") {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			return ""
		}
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}
	if len(body) > 160 {
		return ""
	}
	return body
}

// truncateBody cuts s to at most max bytes without splitting a rune.
func truncateBody(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
