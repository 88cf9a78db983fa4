package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// TotalCountHeader carries the size of the unpaged result set.
	TotalCountHeader = "X-Total-Count"
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts limit and offset from the query string. requested is
// false when neither parameter was given, in which case callers return the
// whole result set.
func FromContext(c echo.Context) (p Params, requested bool) {
	rawLimit, rawOffset := c.QueryParam("limit"), c.QueryParam("offset")
	requested = rawLimit != "" || rawOffset != ""

	limit, _ := strconv.Atoi(rawLimit)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(rawOffset)
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}, requested
}

// Window returns the [start, end) bounds of the page within total items.
func (p Params) Window(total int) (start, end int) {
	start = p.Offset
	if start > total {
		start = total
	}
	end = start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// Page slices items to the requested window and sets TotalCountHeader on the
// response. Without limit/offset in the query it returns items unchanged.
func Page[T any](c echo.Context, items []T) []T {
	p, requested := FromContext(c)
	if !requested {
		return items
	}
	c.Response().Header().Set(TotalCountHeader, strconv.Itoa(len(items)))
	start, end := p.Window(len(items))
	return items[start:end]
}
