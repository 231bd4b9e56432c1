package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"wedding-quiz-service/internal/domain"
)

const operatorTokenHeader = "X-Operator-Token"

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrGuestNotRegistered):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrQuestionNotActive),
		errors.Is(err, domain.ErrDuplicateAnswer),
		errors.Is(err, domain.ErrAnswerWindowClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidNickname),
		errors.Is(err, domain.ErrInvalidChoice):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStoreWrite):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides unexpected errors from clients.
func errorMessage(err error) string {
	switch statusFor(err) {
	case http.StatusServiceUnavailable:
		return "could not save, please try again"
	case http.StatusInternalServerError:
		return "request failed"
	default:
		return err.Error()
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: errorMessage(err)})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parseIntParam reads an optional integer query parameter.
func parseIntParam(r *http.Request, key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return parsed, nil
}

// authorizeOperator accepts the token from the header, or from the query for
// websocket clients that cannot set headers. An empty token disables the check.
func authorizeOperator(r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	got := r.Header.Get(operatorTokenHeader)
	if got == "" {
		got = r.URL.Query().Get("token")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}
