package database

import "bitboard/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Category{},
		&models.Thread{},
		&models.Post{},
		&models.Comment{},
		&models.Reaction{},
		&models.Follow{},
		&models.Mention{},
		&models.Notification{},
		&models.Report{},
		&models.ModerationAction{},
		&models.UserBan{},
	}
}
