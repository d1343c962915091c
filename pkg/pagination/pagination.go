package pagination

import "strconv"

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Params holds 1-based page parameters extracted from a request.
type Params struct {
	Page     int
	PageSize int
}

// FromQuery extracts page/pageSize from an envelope query map, clamping to
// sane bounds.
func FromQuery(query map[string]string) Params {
	p := Params{Page: DefaultPage, PageSize: DefaultPageSize}
	if query == nil {
		return p
	}
	if n, err := strconv.Atoi(query["page"]); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(query["pageSize"]); err == nil && n > 0 {
		p.PageSize = n
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the SQL offset for the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Response wraps a paginated API response.
type Response struct {
	Data     interface{} `json:"data"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
	HasMore  bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:     data,
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
		HasMore:  p.Offset()+p.PageSize < total,
	}
}
