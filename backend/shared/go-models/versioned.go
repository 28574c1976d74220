// go-models/versioned.go
package models

// Versioned carries the row_version used for optimistic locking. Embed it
// anonymously in every entity that goes through UpdateWithRetry.
type Versioned struct {
	RowVersion int64 `json:"row_version"`
}

func (v *Versioned) GetRowVersion() int64  { return v.RowVersion }
func (v *Versioned) SetRowVersion(n int64) { v.RowVersion = n }
