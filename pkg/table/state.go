package table

// SortState is the active sort column and direction flag.
type SortState struct {
	Field     Field `json:"field"`
	Ascending bool  `json:"ascending"`
}

// DefaultSort shows the largest balances first.
func DefaultSort() SortState {
	return SortState{Field: FieldBalance, Ascending: true}
}

// Toggle flips the direction when f is already active, otherwise switches to f
// with Ascending set.
func (s SortState) Toggle(f Field) SortState {
	if s.Field != f {
		return SortState{Field: f, Ascending: true}
	}
	return SortState{Field: f, Ascending: !s.Ascending}
}

// Arrow is the header glyph for column f.
func (s SortState) Arrow(f Field) string {
	if s.Field != f {
		return ""
	}
	if !s.Ascending {
		return "↑"
	}
	return "↓"
}

// PageState tracks the current page. Navigation past either end is a no-op.
type PageState struct {
	Current int `json:"page"`
	Max     int `json:"max_page"`
}

func NewPageState(total, pageSize int) PageState {
	return PageState{Current: 1, Max: MaxPage(total, pageSize)}
}

func (p PageState) HasPrev() bool { return p.Current > 1 }

func (p PageState) HasNext() bool { return p.Current < p.Max }

func (p PageState) Prev() PageState {
	if p.HasPrev() {
		p.Current--
	}
	return p
}

func (p PageState) Next() PageState {
	if p.HasNext() {
		p.Current++
	}
	return p
}

// Resize recomputes Max for a new total and pulls Current back into range.
func (p PageState) Resize(total, pageSize int) PageState {
	p.Max = MaxPage(total, pageSize)
	if p.Current > p.Max {
		p.Current = p.Max
	}
	if p.Current < 1 {
		p.Current = 1
	}
	return p
}
