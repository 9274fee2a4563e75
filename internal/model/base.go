package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID sets a random UUID when the caller did not supply one.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (i *Instance) BeforeCreate(_ *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

func (c *Campaign) BeforeCreate(_ *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

func (g *Group) BeforeCreate(_ *gorm.DB) error {
	assignID(&g.ID)
	return nil
}

func (m *Member) BeforeCreate(_ *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (l *Log) BeforeCreate(_ *gorm.DB) error {
	assignID(&l.ID)
	return nil
}
