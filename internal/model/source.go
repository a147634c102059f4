package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Source errors.
var (
	// ErrEmptySource is returned when a source identifier is blank.
	ErrEmptySource = errors.New("source cannot be empty")
	// ErrInvalidSource is returned when a source is not an absolute http(s) URL.
	ErrInvalidSource = errors.New("invalid source: must be an absolute http or https URL")
)

// Source identifies one reviewable subject, typically an app details page.
// Sources are immutable once normalized.
type Source string

// String returns the source identifier.
func (s Source) String() string {
	return string(s)
}

// NormalizeSource validates a raw source identifier and returns its
// canonical form. The host is converted to its ASCII (punycode) lowercase
// form; path and query are kept verbatim because they carry the app id.
func NormalizeSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptySource
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, raw)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidSource, raw)
	}

	host, err := idna.Lookup.ToASCII(u.Hostname())
	if err != nil {
		return "", fmt.Errorf("%w: host %q: %v", ErrInvalidSource, u.Hostname(), err)
	}
	host = strings.ToLower(host)
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""

	return Source(u.String()), nil
}

// NormalizeSources normalizes every raw identifier, failing on the first
// invalid one.
func NormalizeSources(raw []string) ([]Source, error) {
	sources := make([]Source, 0, len(raw))
	for _, r := range raw {
		s, err := NormalizeSource(r)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// UniqueSources removes duplicate sources. The first occurrence of each
// source wins and the relative order of the survivors is preserved.
func UniqueSources(sources []Source) []Source {
	seen := make(map[Source]struct{}, len(sources))
	unique := make([]Source, 0, len(sources))
	for _, s := range sources {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		unique = append(unique, s)
	}
	return unique
}
