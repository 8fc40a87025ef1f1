package crud

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Pagination defaults
const (
	DefaultPage = 0
	DefaultSize = 20
)

// Page is a validated pagination request.
type Page struct {
	Number int
	Size   int
}

// ParsePage resolves the page and size query parameters, applying defaults
// for absent values. Page must be a non-negative integer and size a positive
// one; anything else is ErrInvalidPagination.
func ParsePage(query url.Values) (Page, error) {
	p := Page{Number: DefaultPage, Size: DefaultSize}

	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("%w: page=%q", ErrInvalidPagination, raw)
		}
		p.Number = n
	}
	if raw := query.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page{}, fmt.Errorf("%w: size=%q", ErrInvalidPagination, raw)
		}
		p.Size = n
	}
	return p, nil
}

// LastPage returns the index of the last page for a total count:
// max(0, ceil(total/size)-1).
func (p Page) LastPage(total int64) int {
	if total <= 0 {
		return 0
	}
	last := int((total + int64(p.Size) - 1) / int64(p.Size))
	return last - 1
}

// LinkHeader renders the RFC 5988 Link header for the page: always rel=first
// and rel=last, rel=previous when the page has one, rel=next while before the
// last page, comma-joined in the fixed order first, previous, next, last.
func (p Page) LinkHeader(baseURL string, total int64) string {
	last := p.LastPage(total)

	link := func(page int, rel string) string {
		return fmt.Sprintf("<%s?page=%d&size=%d>; rel=%s", baseURL, page, p.Size, rel)
	}

	links := []string{link(0, "first")}
	if p.Number > 0 {
		links = append(links, link(p.Number-1, "previous"))
	}
	if p.Number < last {
		links = append(links, link(p.Number+1, "next"))
	}
	links = append(links, link(last, "last"))
	return strings.Join(links, ", ")
}

// TotalCountHeader renders the X-Total-Count header value.
func TotalCountHeader(total int64) string {
	return strconv.FormatInt(total, 10)
}
