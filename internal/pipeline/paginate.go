package pipeline

import (
	"github.com/dvloznov/openbanking-mcp/internal/domain"
)

// DefaultLimit is the page size used when a caller does not supply one.
const DefaultLimit = 10

// Paginate slices a transaction sequence to the contiguous window
// [offset, offset+limit) and computes the envelope. Out-of-range offsets
// yield an empty slice with has_more false; Total always reflects the
// full set size so repeated calls with increasing offsets converge.
// Negative offsets and non-positive limits normalize to 0 and
// DefaultLimit before slicing.
func Paginate(txs []domain.Transaction, offset, limit int) ([]domain.Transaction, domain.Pagination) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	total := len(txs)
	start := offset
	if start > total {
		start = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return txs[start:end], domain.NewPagination(total, offset, limit)
}
