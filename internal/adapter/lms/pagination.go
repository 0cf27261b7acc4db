package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const headerLink = "Link"

// linkRegex matches one Link header entry: <url>; rel="type".
var linkRegex = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

// ParseNextLink returns the url of the rel="next" entry or an empty string.
func ParseNextLink(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}

	for _, part := range strings.Split(linkHeader, ",") {
		matches := linkRegex.FindStringSubmatch(strings.TrimSpace(part))
		if len(matches) == 3 && matches[2] == "next" {
			return matches[1]
		}
	}

	return ""
}

/*
Paginate issues GET rawURL and follows rel="next" links until there are none, returning
every page's items in API order. A page holding a single object instead of an array
counts as one item. Any failed page fails the whole call.
*/
func Paginate[T any](ctx context.Context, c *Client, rawURL string) ([]T, error) {
	var items []T

	for next := rawURL; next != ""; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.do(ctx, next)
		if err != nil {
			return nil, err
		}

		page, err := decodePage[T](resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("cannot decode page %s: %w", redact(next), err)
		}

		items = append(items, page...)
		next = ParseNextLink(resp.Header.Get(headerLink))
	}

	return items, nil
}

func decodePage[T any](r io.Reader) ([]T, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var page []T
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, err
		}

		return page, nil
	}

	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var item T
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, err
	}

	return []T{item}, nil
}
