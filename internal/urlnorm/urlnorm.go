// Package urlnorm normalizes the URL-shaped fields of LTD product records.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const gitSuffix = ".git"

var errNotAbsolute = errors.New("not an absolute URL")

// InvalidURLError reports a value that could not be parsed as an absolute URL.
type InvalidURLError struct {
	Value string
	Err   error
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid url %q: %v", e.Value, e.Err)
}

func (e *InvalidURLError) Unwrap() error {
	return e.Err
}

// Root parses rawURL and rewrites an empty path to "/".
// Scheme, host, port, userinfo, query and fragment are kept as given.
func Root(rawURL string) (*url.URL, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u, nil
}

// Repo parses a source repository URL and strips one trailing ".git" from its path.
func Repo(rawURL string) (*url.URL, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(u.Path, gitSuffix) {
		u.Path = strings.TrimSuffix(u.Path, gitSuffix)
		if u.RawPath != "" {
			u.RawPath = strings.TrimSuffix(u.RawPath, gitSuffix)
		}
	}
	return u, nil
}

// WithTrailingSlash returns the root form of rawURL with a path ending in "/".
// This is the base URL form stored in the search index.
func WithTrailingSlash(rawURL string) (string, error) {
	u, err := Root(rawURL)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
		if u.RawPath != "" {
			u.RawPath += "/"
		}
	}
	return u.String(), nil
}

func parseAbsolute(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &InvalidURLError{Value: rawURL, Err: err}
	}
	if !u.IsAbs() || u.Host == "" || u.Opaque != "" {
		return nil, &InvalidURLError{Value: rawURL, Err: errNotAbsolute}
	}
	return u, nil
}
