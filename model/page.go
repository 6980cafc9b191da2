package model

// Page 分页结果
type Page struct {
	Records     []Record `json:"records"`
	Total       int64    `json:"total"`
	TotalPages  int      `json:"totalPages"`
	CurrentPage int      `json:"currentPage"`
}

// NewPage 计算总页数 ceil(total/limit)，total 为 0 时总页数为 0
func NewPage(records []Record, total int64, page, limit int) Page {
	if records == nil {
		records = []Record{}
	}
	totalPages := 0
	if total > 0 && limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Page{Records: records, Total: total, TotalPages: totalPages, CurrentPage: page}
}
