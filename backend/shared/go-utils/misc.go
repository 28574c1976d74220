package utils

import "github.com/google/uuid"

func Ptr[T any](v T) *T {
	return &v
}

func Val[T any](p *T) T {
	if p != nil {
		return *p
	}
	var zero T
	return zero
}

// IsSelected treats a nil or zero id as "no selection".
func IsSelected(id *uuid.UUID) bool {
	return id != nil && *id != uuid.Nil
}

// SameID compares two nullable ids; nil never matches anything.
func SameID(a *uuid.UUID, b uuid.UUID) bool {
	return a != nil && b != uuid.Nil && *a == b
}

// ContainsID reports whether id is in ids. uuid.Nil is never contained.
func ContainsID(ids []uuid.UUID, id uuid.UUID) bool {
	if id == uuid.Nil {
		return false
	}
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
