package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/coursemarket-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// EnsureMarketplaceIndexes adds the Postgres-only indexes gorm tags cannot express.
func EnsureMarketplaceIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != DriverPostgres {
		return nil
	}
	stmts := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_course_catalog",
			sql: `CREATE INDEX IF NOT EXISTS idx_course_catalog
				ON course (created_at DESC)
				WHERE is_published AND is_approved;`,
		},
		{
			name: "idx_payment_payout_pending",
			sql: `CREATE INDEX IF NOT EXISTS idx_payment_payout_pending
				ON payment (course_id)
				WHERE status = 'completed' AND NOT payout_processed;`,
		},
		{
			name: "idx_lesson_module_position",
			sql:  `CREATE INDEX IF NOT EXISTS idx_lesson_module_position ON lesson (module_id, position);`,
		},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
