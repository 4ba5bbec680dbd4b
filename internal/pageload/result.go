package pageload

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by loaders when the critical entity does not
// exist. The page handler translates it to a 404 response.
var ErrNotFound = errors.New("not found")

// RedirectError short-circuits a loader with an HTTP redirect, e.g. when
// normalizing a product URL to its canonical variant.
type RedirectError struct {
	URL  string
	Code int
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect %d to %s", e.Code, e.URL)
}

// Redirect builds a RedirectError; code defaults to 302.
func Redirect(url string, code int) error {
	if code == 0 {
		code = http.StatusFound
	}
	return &RedirectError{URL: url, Code: code}
}

// AsRedirect unwraps a RedirectError from err, if present.
func AsRedirect(err error) (*RedirectError, bool) {
	var re *RedirectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
