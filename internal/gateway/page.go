package gateway

import (
	"bytes"
	"encoding/json"
)

// Page is the paginated list envelope returned by the gateway.
type Page[T any] struct {
	CurrentPage int `json:"current_page"`
	Data        []T `json:"data"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// pageFields has Page's layout without its methods.
type pageFields[T any] Page[T]

// UnmarshalJSON also accepts a bare array, treated as a single page.
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*p = Page[T]{CurrentPage: 1, Data: items, LastPage: 1, PerPage: len(items), Total: len(items)}
		return nil
	}
	var out pageFields[T]
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return err
	}
	*p = Page[T](out)
	if p.CurrentPage == 0 {
		p.CurrentPage = 1
	}
	if p.LastPage < p.CurrentPage {
		p.LastPage = p.CurrentPage
	}
	if p.Total == 0 {
		p.Total = len(p.Data)
	}
	return nil
}

func (p *Page[T]) HasNext() bool {
	return p.CurrentPage < p.LastPage
}

// unwrapResource strips a {"data": {...}} single-resource envelope. List
// envelopes carry an array under "data" and are left alone.
func unwrapResource(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}
	var env map[string]json.RawMessage
	if json.Unmarshal(trimmed, &env) != nil {
		return body
	}
	inner, ok := env["data"]
	if !ok {
		return body
	}
	if _, paged := env["current_page"]; paged {
		return body
	}
	inner = bytes.TrimSpace(inner)
	if len(inner) == 0 || inner[0] != '{' {
		return body
	}
	return inner
}
