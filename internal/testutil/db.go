// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"groupflow/distributor/internal/model"
)

// NewTestDB opens a migrated in-memory SQLite database private to the test.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, model.AutoMigrate(db))
	return db
}

func SeedInstance(t *testing.T, db *gorm.DB, phone string) *model.Instance {
	t.Helper()
	instance := &model.Instance{
		Name:        "inst-" + gofakeit.LetterN(8),
		PhoneNumber: phone,
		Status:      model.InstanceStatusConnected,
	}
	require.NoError(t, db.Create(instance).Error)
	return instance
}

// SeedCampaign creates an active auto-scaling campaign; mutate adjusts fields before insert.
func SeedCampaign(t *testing.T, db *gorm.DB, instanceID uuid.UUID, mutate func(*model.Campaign)) *model.Campaign {
	t.Helper()
	campaign := &model.Campaign{
		OwnerID:            uuid.New(),
		InstanceID:         instanceID,
		Name:               gofakeit.Company(),
		GroupNameTemplate:  "Group #{group_number}",
		MaxMembersPerGroup: model.DefaultMaxMembersInGroup,
		AutoCreateGroups:   true,
		Slug:               strings.ToLower(gofakeit.LetterN(12)),
		Status:             model.CampaignStatusActive,
	}
	if mutate != nil {
		mutate(campaign)
	}
	require.NoError(t, db.Create(campaign).Error)
	return campaign
}

// SeedGroup inserts a live group with an invite link; mutate adjusts fields before insert.
func SeedGroup(t *testing.T, db *gorm.DB, campaign *model.Campaign, number int, mutate func(*model.Group)) *model.Group {
	t.Helper()
	link := "https://chat.whatsapp.com/" + gofakeit.LetterN(22)
	group := &model.Group{
		CampaignID:      campaign.ID,
		InstanceID:      campaign.InstanceID,
		GroupNumber:     number,
		ExternalGroupID: gofakeit.Numerify("1203630##########") + "@g.us",
		Name:            "Group " + gofakeit.Numerify("#"),
		InviteLink:      &link,
		MaxMembers:      campaign.MaxMembersPerGroup,
		Status:          model.GroupStatusActive,
	}
	if mutate != nil {
		mutate(group)
	}
	require.NoError(t, db.Create(group).Error)
	return group
}
