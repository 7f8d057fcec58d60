package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize defines the fallback number of items returned when the client omits page_size.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps the supported page_size to prevent unbounded queries.
	DefaultMaxPageSize = 100
)

// Cursor represents the Firestore pagination cursor payload.
type Cursor struct {
	StartAfter []any `json:"startAfter,omitempty"`
	StartAt    []any `json:"startAt,omitempty"`
}

// Params bundles the pagination values extracted from a request. PageToken
// keeps the raw token for opaque pass-through while Cursor carries its
// decoded form.
type Params struct {
	PageSize  int
	PageToken string
	Cursor    Cursor
}

// Options control how Parse behaves for a given handler layer.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid page_size")
	ErrInvalidPageToken = errors.New("pagination: invalid page_token")
)

// FromRequest parses the supported query parameters from the supplied request.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse consumes the provided query values and returns the normalised Params
// representation. Tokens are decoded eagerly so malformed cursors fail at the
// request boundary instead of inside a repository query.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	pageSize, err := parsePageSize(values.Get("page_size"), opts)
	if err != nil {
		return Params{}, err
	}

	params := Params{PageSize: pageSize}

	rawToken := strings.TrimSpace(values.Get("page_token"))
	if rawToken != "" {
		cursor, err := DecodeToken(rawToken)
		if err != nil {
			return Params{}, err
		}
		params.PageToken = rawToken
		params.Cursor = cursor
	}

	return params, nil
}

func parsePageSize(raw string, opts Options) (int, error) {
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}

	defaultPageSize := opts.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	if defaultPageSize > maxPageSize {
		defaultPageSize = maxPageSize
	}

	if strings.TrimSpace(raw) == "" {
		return defaultPageSize, nil
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	if value > maxPageSize {
		value = maxPageSize
	}
	return value, nil
}
