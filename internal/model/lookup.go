package model

// LookupEntry is a row of one of the seeded reference lists
// (categories, storage locations, units).
type LookupEntry struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
