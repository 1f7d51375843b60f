package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"p9e.in/genfuel/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "02032025_create_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("users")
			},
		},
		{
			ID: "02032025_create_fuel_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Generator{}, &models.MainContainer{},
					&models.MainFuelEntry{}, &models.GeneratorFuelTransfer{}, &models.RunLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("run_logs", "generator_fuel_transfers", "main_fuel_entries",
					"main_containers", "generators")
			},
		},
		{
			ID: "18032025_fuel_non_negative_checks",
			Migrate: func(tx *gorm.DB) error {
				stmts := []string{
					`ALTER TABLE main_containers ADD CONSTRAINT chk_main_containers_fuel
						CHECK (current_fuel >= 0 AND current_fuel <= capacity)`,
					`ALTER TABLE generators ADD CONSTRAINT chk_generators_fuel
						CHECK (current_fuel >= 0 AND current_fuel <= capacity)`,
				}
				for _, s := range stmts {
					if err := tx.Exec(s).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Exec(`ALTER TABLE main_containers DROP CONSTRAINT IF EXISTS chk_main_containers_fuel`).Error; err != nil {
					return err
				}
				return tx.Exec(`ALTER TABLE generators DROP CONSTRAINT IF EXISTS chk_generators_fuel`).Error
			},
		},
		{
			ID: "25032025_create_notifications",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Notification{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("notifications")
			},
		},
	})
	return m.Migrate()
}
