package models

// All lists every model for auto migration.
func All() []any {
	return []any{
		&User{},
		&Setting{},
		&Tag{},
		&Image{},
		&ImageTag{},
		&ReferenceImage{},
	}
}
