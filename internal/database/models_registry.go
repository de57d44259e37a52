package database

import "hubmedia/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Stream{},
		&models.Message{},
	}
}
