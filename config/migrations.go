package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/sstpro/backend/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20240512_create_inspection_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{}, &models.Company{}, &models.UserCompany{},
					&models.Report{}, &models.Observation{})
			},
		},
		{
			ID: "20240601_add_report_lookup_indexes",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_reports_company_status ON reports (company_id, status)").Error; err != nil {
					return err
				}
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_observations_report_created ON observations (report_id, created_at)").Error
			},
		},
	})
	return m.Migrate()
}
