// Package pagination normalizes page sizes for list operations.
package pagination

// PageSizeConfig bounds a caller-supplied page size. A zero Max leaves
// the size uncapped.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize resolves a requested page size against cfg. Zero or
// negative requests take the default; the result is never below one.
func ClampPageSize(requested int, cfg PageSizeConfig) int {
	size := requested
	if size <= 0 {
		size = cfg.Default
	}
	if cfg.Max > 0 && size > cfg.Max {
		size = cfg.Max
	}
	if size < 1 {
		return 1
	}
	return size
}
