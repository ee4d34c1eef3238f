package dashboard

// Modal is the Create Address dialog state: Closed, CreateOpen or EditOpen.
// Each open state carries its own selection, so closing discards it.
type Modal interface {
	isModal()
}

type Closed struct{}

type CreateOpen struct{}

// EditOpen was opened from a row; Index is the wallet's roster position.
type EditOpen struct {
	Index int
}

func (Closed) isModal()     {}
func (CreateOpen) isModal() {}
func (EditOpen) isModal()   {}

func OpenCreate() Modal { return CreateOpen{} }

func OpenEdit(index int) Modal { return EditOpen{Index: index} }

func Close() Modal { return Closed{} }

// IsOpen reports whether m shows the dialog. A nil Modal is closed.
func IsOpen(m Modal) bool {
	switch m.(type) {
	case CreateOpen, EditOpen:
		return true
	}
	return false
}

// Selected returns the row the dialog was opened from, if any.
func Selected(m Modal) (int, bool) {
	if e, ok := m.(EditOpen); ok {
		return e.Index, true
	}
	return 0, false
}
