package pagination

import (
	"fmt"
	"net/url"
	"strconv"
)

// MaxLimit caps the page size a client may request.
const MaxLimit = 100

// Params holds page/limit pagination parameters.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// DefaultParams returns the first page with the given page size.
func DefaultParams(limit int) Params {
	if limit < 1 || limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: 1, Limit: limit}
}

// FromQuery reads "page" and "limit" from q, falling back to defaultLimit.
// Malformed or out-of-range values are reported, not silently replaced.
func FromQuery(q url.Values, defaultLimit int) (Params, error) {
	p := DefaultParams(defaultLimit)

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return p, fmt.Errorf("page must be a positive integer")
		}
		p.Page = page
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > MaxLimit {
			return p, fmt.Errorf("limit must be an integer between 1 and %d", MaxLimit)
		}
		p.Limit = limit
	}

	return p, nil
}

// PageCount returns the number of pages needed for total items.
func PageCount(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
