// Package pagination normalizes the two client-facing pagination styles
// (page/pageSize and limit/offset) into one canonical form.
package pagination

import (
	"errors"
)

const (
	// DefaultPageSize is used when no pagination parameters are supplied.
	DefaultPageSize = 20
	// MaxPageSize bounds page-mode and offset-mode page sizes.
	MaxPageSize = 100
	// UnlimitedSentinel is the client-facing limit value meaning "return
	// every matching row from the offset onward".
	UnlimitedSentinel = -1
)

// ErrMixedStyles is returned when page-mode and offset-mode parameters are
// supplied together.
var ErrMixedStyles = errors.New("cannot mix pagination styles: use either page/pageSize or limit/offset")

// Options carries the four optional pagination fields as they arrived from
// the client. Presence (non-nil), not value, decides which style is in use.
type Options struct {
	Page     *int
	PageSize *int
	Limit    *int
	Offset   *int
}

// Page is the canonical resolved pagination. When Unlimited is true, Limit
// is meaningless and every row from Offset onward is returned.
type Page struct {
	Limit     int
	Offset    int
	Unlimited bool
}

// Resolve validates mutual exclusivity and computes the canonical
// (limit, offset) pair. Range validation of the individual fields happens at
// the HTTP boundary before this point; Resolve only rejects mixed styles.
func Resolve(opts Options) (Page, error) {
	pageMode := opts.Page != nil || opts.PageSize != nil
	offsetMode := opts.Limit != nil || opts.Offset != nil

	// Checked before computing anything: never guess a default when both
	// groups are partially populated.
	if pageMode && offsetMode {
		return Page{}, ErrMixedStyles
	}

	if pageMode {
		page := 1
		if opts.Page != nil {
			page = *opts.Page
		}
		pageSize := DefaultPageSize
		if opts.PageSize != nil {
			pageSize = *opts.PageSize
		}
		return Page{
			Limit:  pageSize,
			Offset: (page - 1) * pageSize,
		}, nil
	}

	limit := DefaultPageSize
	if opts.Limit != nil {
		limit = *opts.Limit
	}
	offset := 0
	if opts.Offset != nil {
		offset = *opts.Offset
	}

	if limit == UnlimitedSentinel {
		return Page{Offset: offset, Unlimited: true}, nil
	}

	return Page{Limit: limit, Offset: offset}, nil
}

// Slice applies the resolved pagination to a post-filter, post-sort length
// and returns the [start, end) window into it.
func (p Page) Slice(total int) (start, end int) {
	start = p.Offset
	if start > total {
		start = total
	}
	if p.Unlimited {
		return start, total
	}
	end = start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}
