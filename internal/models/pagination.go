package models

import "sync/atomic"

var (
	defaultPageSize atomic.Int64
	maxPageSize     atomic.Int64
)

func init() {
	defaultPageSize.Store(20)
	maxPageSize.Store(100)
}

// SetPageLimits overrides the default and maximum page sizes. Non-positive values are ignored.
func SetPageLimits(def, max int) {
	if max > 0 {
		maxPageSize.Store(int64(max))
	}
	if def > 0 {
		if int64(def) > maxPageSize.Load() {
			def = int(maxPageSize.Load())
		}
		defaultPageSize.Store(int64(def))
	}
}

// NormalizePage clamps page to at least 1 and size to the configured bounds.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = int(defaultPageSize.Load())
	}
	if max := int(maxPageSize.Load()); size > max {
		size = max
	}
	return page, size
}
