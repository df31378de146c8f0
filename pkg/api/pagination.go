package api

import (
	"net/http"
	"net/url"
	"strconv"
)

// Page is the list envelope: {count, next, previous, results}.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// paginate slices items by the ?page= query parameter. Pages are 1-based;
// a page past the end or a malformed page number reports false.
func paginate[T any](r *http.Request, items []T, size int) (Page[T], bool) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page[T]{}, false
		}
		page = n
	}

	start := (page - 1) * size
	if start > 0 && start >= len(items) {
		return Page[T]{}, false
	}
	end := min(start+size, len(items))

	p := Page[T]{Count: len(items), Results: items[start:end]}
	if p.Results == nil {
		p.Results = []T{}
	}
	if end < len(items) {
		p.Next = pageURL(r, page+1)
	}
	if page > 1 {
		p.Previous = pageURL(r, page-1)
	}
	return p, true
}

func pageURL(r *http.Request, page int) *string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}

	q := r.URL.Query()
	if page == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	s := u.String()
	return &s
}
