package shared

// Page is a normalized paging window. Listings fetch one row past the
// window to detect whether a next page exists, hence Limit is Size+1.
type Page struct {
	Number int
	Size   int
}

// NormalizePage clamps client-supplied paging parameters. A non-positive
// size falls back to def and sizes above 100 are capped.
func NormalizePage(page, size, def int) Page {
	if size <= 0 {
		size = def
	}
	if size > 100 {
		size = 100
	}
	if page <= 0 {
		page = 1
	}
	return Page{Number: page, Size: size}
}

// Limit is the SQL LIMIT for the window including the lookahead row.
func (p Page) Limit() int { return p.Size + 1 }

// Offset is the SQL OFFSET for the window.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }
