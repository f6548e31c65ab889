package query

import (
	"context"
	"errors"
	"iter"
)

// Page is a length-aware pagination result.
type Page struct {
	Data        []Row `json:"data"`
	Total       int64 `json:"total"`
	PerPage     int   `json:"per_page"`
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	From        int   `json:"from"`
	To          int   `json:"to"`
}

// SimplePage is a has-more pagination result produced without a count
// query.
type SimplePage struct {
	Data        []Row `json:"data"`
	PerPage     int   `json:"per_page"`
	CurrentPage int   `json:"current_page"`
	HasMore     bool  `json:"has_more"`
}

// Paginate runs the main query plus a COUNT(*) over the same predicate
// set (selects, orders, limit and offset stripped for the count).
func (b *Builder) Paginate(ctx context.Context, perPage, page int) (*Page, error) {
	if perPage < 1 {
		perPage = 1
	}
	if page < 1 {
		page = 1
	}
	counter := b.clone()
	counter.columns = nil
	counter.orders = nil
	counter.limit = 0
	counter.offset = 0
	total, err := counter.Count(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := b.Limit(perPage).Offset((page - 1) * perPage).Get(ctx)
	if err != nil {
		return nil, err
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	p := &Page{
		Data:        rows,
		Total:       total,
		PerPage:     perPage,
		CurrentPage: page,
		LastPage:    last,
	}
	if len(rows) > 0 {
		p.From = (page-1)*perPage + 1
		p.To = p.From + len(rows) - 1
	}
	return p, nil
}

// SimplePaginate fetches perPage+1 rows; the presence of the extra row
// sets HasMore.
func (b *Builder) SimplePaginate(ctx context.Context, perPage, page int) (*SimplePage, error) {
	if perPage < 1 {
		perPage = 1
	}
	if page < 1 {
		page = 1
	}
	rows, err := b.Limit(perPage + 1).Offset((page - 1) * perPage).Get(ctx)
	if err != nil {
		return nil, err
	}
	hasMore := len(rows) > perPage
	if hasMore {
		rows = rows[:perPage]
	}
	return &SimplePage{
		Data:        rows,
		PerPage:     perPage,
		CurrentPage: page,
		HasMore:     hasMore,
	}, nil
}

// Chunk yields successive row batches of the given size by walking
// limit/offset windows. The snapshot of the builder state is taken up
// front, so mutating the builder between yields does not affect the
// remaining chunks. Iteration stops after the first short batch, on the
// first error, or when the consumer breaks.
func (b *Builder) Chunk(ctx context.Context, size int) iter.Seq2[[]Row, error] {
	snapshot := b.clone()
	return func(yield func([]Row, error) bool) {
		if size < 1 {
			yield(nil, errInvalidChunk)
			return
		}
		for page := 0; ; page++ {
			q := snapshot.clone().Limit(size).Offset(page * size)
			rows, err := q.Get(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(rows) == 0 {
				return
			}
			if !yield(rows, nil) {
				return
			}
			if len(rows) < size {
				return
			}
		}
	}
}

var errInvalidChunk = errors.New("query: chunk size must be positive")
