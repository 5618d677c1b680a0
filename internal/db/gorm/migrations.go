// Package gorm provides GORM-based database operations for genius-loci.
package gorm

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/lukaszraczylo/genius-loci/pkg/models"
)

// RunMigrations runs all database migrations using gormigrate.
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: place notes
		{
			ID: "001_place_notes",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.PlaceNote{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("place_notes")
			},
		},

		// Migration 002: spirit conversation archive records
		{
			ID: "002_spirit_records",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.SpiritRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("spirit_records")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}
	return nil
}
