// Package models contains database model definitions.
package models

// Setting is one persisted runtime setting. Values are stored as text,
// booleans as "1" and "0".
type Setting struct {
	ID    uint64 `gorm:"primaryKey"`
	Name  string `gorm:"size:100;uniqueIndex"`
	Value string `gorm:"size:500"`
}
