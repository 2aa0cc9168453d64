package services

import (
	"math"
	"testing"
)

func TestPagination_Normalize(t *testing.T) {
	tests := []struct {
		name   string
		in     Pagination
		page   int
		size   int
		offset int
	}{
		{"defaults", Pagination{}, 1, 20, 0},
		{"negative", Pagination{Page: -3, PageSize: -1}, 1, 20, 0},
		{"third page", Pagination{Page: 3, PageSize: 10}, 3, 10, 20},
		{"size capped", Pagination{Page: 2, PageSize: 1000}, 2, maxPageSize, maxPageSize},
		{"huge page capped", Pagination{Page: math.MaxInt, PageSize: 50}, maxPage, 50, (maxPage - 1) * 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			p.normalize(20)
			if p.Page != tt.page || p.PageSize != tt.size {
				t.Errorf("normalize() = page %d size %d, want %d %d", p.Page, p.PageSize, tt.page, tt.size)
			}
			if got := p.offset(); got != tt.offset {
				t.Errorf("offset() = %d, want %d", got, tt.offset)
			}
		})
	}
}
