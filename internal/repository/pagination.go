package repository

import "gorm.io/gorm"

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

type PageResult[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func normalizePageRequest(req PageRequest) PageRequest {
	if req.Page < 1 {
		req.Page = DefaultPage
	}
	if req.PageSize < 1 {
		req.PageSize = DefaultPageSize
	}
	if req.PageSize > MaxPageSize {
		req.PageSize = MaxPageSize
	}
	return req
}

func calcTotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// findPage counts the rows matched by base, then loads one page of them in
// the given order. Items is never nil so empty pages encode as [].
func findPage[T any](base *gorm.DB, req PageRequest, order ...string) (PageResult[T], error) {
	req = normalizePageRequest(req)
	result := PageResult[T]{Items: []T{}, Page: req.Page, PageSize: req.PageSize}

	base = base.Session(&gorm.Session{})
	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		return PageResult[T]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.PageSize)
	if result.Total == 0 || req.Page > result.TotalPages {
		return result, nil
	}
	q := base
	for _, o := range order {
		q = q.Order(o)
	}
	if err := q.Offset((req.Page - 1) * req.PageSize).Limit(req.PageSize).Find(&result.Items).Error; err != nil {
		return PageResult[T]{}, err
	}
	return result, nil
}
