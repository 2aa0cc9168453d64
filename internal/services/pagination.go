package services

const (
	maxPageSize = 100
	maxPage     = 10000
)

// Pagination is embedded in list requests and bound from ?page=&page_size=.
type Pagination struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

func (p *Pagination) normalize(defaultSize int) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

func (p *Pagination) offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResult is the shape of every list response.
type PageResult[T any] struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Items    []T   `json:"items"`
}

func newPageResult[T any](p Pagination, total int64, items []T) *PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return &PageResult[T]{Total: total, Page: p.Page, PageSize: p.PageSize, Items: items}
}
