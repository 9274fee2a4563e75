package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Instance{},
		&Campaign{},
		&Group{},
		&Member{},
		&Log{},
	); err != nil {
		return err
	}

	indexes := []string{
		// Group numbers are a per-campaign sequence.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_groups_campaign_number " +
			"ON distribution_groups (campaign_id, group_number)",
		// At most one group per campaign receives new signups.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_groups_one_active " +
			"ON distribution_groups (campaign_id) WHERE is_active_for_distribution = true",
		// One registration per phone per campaign.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_members_campaign_phone " +
			"ON members (campaign_id, phone)",
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
