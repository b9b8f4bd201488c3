// Package pagination provides page-number pagination for list endpoints.
package pagination

const (
	defaultPageSize = 20
	defaultMaxSize  = 100
)

// Request carries the page requested by a client.
type Request struct {
	PageNumber int `query:"page_number"`
	PageSize   int `query:"page_size"`
}

// Options configures pagination behavior.
type Options struct {
	MaxPageSize int
}

type Option func(*Options)

// WithMaxPageSize caps the page size a client may ask for.
func WithMaxPageSize(maxSize int) Option {
	return func(o *Options) {
		o.MaxPageSize = maxSize
	}
}

// Normalize applies defaults and constraints.
func (r *Request) Normalize(opts ...Option) {
	o := Options{MaxPageSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&o)
	}

	if r.PageNumber <= 0 {
		r.PageNumber = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = defaultPageSize
	}
	if r.PageSize > o.MaxPageSize {
		r.PageSize = o.MaxPageSize
	}
}

// Offset returns the offset value.
func (r *Request) Offset() int {
	return (r.PageNumber - 1) * r.PageSize
}

// Limit returns the limit value.
func (r *Request) Limit() int {
	return r.PageSize
}

type Response[T any] struct {
	PageNumber  int   `json:"page_number"`
	PageSize    int   `json:"page_size"`
	PageCount   int   `json:"page_count"`
	TotalCount  int64 `json:"total_count"`
	PageContent []T   `json:"page_content"`
}

// NewResponse creates paginated response from items and total count.
// req must be normalized.
func NewResponse[T any](items []T, totalCount int64, req Request) Response[T] {
	pageCount := int(totalCount) / req.PageSize
	if int(totalCount)%req.PageSize > 0 {
		pageCount++
	}
	if items == nil {
		items = []T{}
	}

	return Response[T]{
		PageNumber:  req.PageNumber,
		PageSize:    req.PageSize,
		PageCount:   pageCount,
		TotalCount:  totalCount,
		PageContent: items,
	}
}

// Paginate cuts the requested page out of an in-memory result set.
// req must be normalized.
func Paginate[T any](all []T, req Request) Response[T] {
	start := min(req.Offset(), len(all))
	end := min(start+req.Limit(), len(all))
	return NewResponse(all[start:end], int64(len(all)), req)
}
