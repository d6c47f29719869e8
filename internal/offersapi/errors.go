package offersapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuth means the offers service rejected the credential.
	ErrAuth = errors.New("bad authentication to offers service")
	// ErrGeneric covers every other remote or transport failure.
	ErrGeneric = errors.New("offers service failure")
)

// APIError is returned for any unexpected status. It unwraps to ErrAuth for
// 401 and to ErrGeneric otherwise.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status=%d body=%s", e.Op, e.Status, strings.TrimSpace(e.Body))
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrAuth
	}
	return ErrGeneric
}

func statusError(op string, status int, body []byte) error {
	b := string(body[:min(len(body), 1024)])
	return &APIError{Op: op, Status: status, Body: b}
}
