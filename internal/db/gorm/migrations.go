package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: pattern knowledge base
		{
			ID: "001_patterns",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Pattern{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("patterns")
			},
		},

		// Migration 002: detected elements
		{
			ID: "002_elements",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Element{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("elements")
			},
		},

		// Migration 003: training questions and answers
		{
			ID: "003_training",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&TrainingQuestion{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&TrainingAnswer{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("training_questions", "training_answers")
			},
		},
	})

	return m.Migrate()
}
