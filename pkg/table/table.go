package table

import "sort"

// Field names a sortable column.
type Field string

const (
	FieldName    Field = "name"
	FieldAddress Field = "address"
	FieldBalance Field = "balance"
)

// ParseField maps a column name to a Field. Unknown names are rejected.
func ParseField(s string) (Field, bool) {
	switch Field(s) {
	case FieldName, FieldAddress, FieldBalance:
		return Field(s), true
	}
	return "", false
}

type kind int

const (
	kindNumber kind = iota
	kindText
)

// Value is a comparable cell value: either a number or a piece of text.
type Value struct {
	kind kind
	num  float64
	text string
}

func Number(f float64) Value { return Value{kind: kindNumber, num: f} }

func Text(s string) Value { return Value{kind: kindText, text: s} }

// Greater reports whether v sorts above o. Numbers rank below text.
func (v Value) Greater(o Value) bool {
	if v.kind != o.kind {
		return v.kind > o.kind
	}
	if v.kind == kindNumber {
		return v.num > o.num
	}
	return v.text > o.text
}

// Record is anything the engine can sort. ok is false when the record has no
// value for the field.
type Record interface {
	SortValue(f Field) (v Value, ok bool)
}

// greater treats a missing value as less than any present one.
func greater(a, b Record, f Field) bool {
	av, aok := a.SortValue(f)
	bv, bok := b.SortValue(f)
	switch {
	case !aok:
		return false
	case !bok:
		return true
	}
	return av.Greater(bv)
}

// Sorted returns a sorted copy of records.
//
// The ascending flag keeps the dashboard's historical polarity: true puts the
// greatest value first, false puts the smallest first. Equal keys keep their
// input order.
func Sorted[R Record](records []R, f Field, ascending bool) []R {
	out := make([]R, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return greater(out[i], out[j], f)
		}
		return greater(out[j], out[i], f)
	})
	return out
}

// Paginate returns the 1-based page of items, pageSize items per page.
func Paginate[T any](items []T, page, pageSize int) []T {
	if page < 1 || pageSize < 1 {
		return nil
	}
	start := pageSize * (page - 1)
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// SortPage sorts the whole collection and returns the requested page.
func SortPage[R Record](records []R, f Field, ascending bool, page, pageSize int) []R {
	return Paginate(Sorted(records, f, ascending), page, pageSize)
}

// MaxPage is ceil(total/pageSize), never less than 1.
func MaxPage(total, pageSize int) int {
	if pageSize < 1 {
		pageSize = 1
	}
	if total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
