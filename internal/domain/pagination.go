package domain

// Pagination describes one window over a full result set.
//
// Invariants: Total >= 0, Page >= 1, Limit > 0, Offset >= 0,
// HasMore == (Offset+Limit < Total). Total always reflects the full
// filtered set size, independent of the requested window.
type Pagination struct {
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPagination computes the envelope for a window [offset, offset+limit)
// over total records. Page numbering is 1-based.
func NewPagination(total, offset, limit int) Pagination {
	return Pagination{
		Total:   total,
		Page:    offset/limit + 1,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}
