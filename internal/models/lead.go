package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lead is a sales follow-up created when the assistant escalates a
// conversation to a human agent.
type Lead struct {
	gorm.Model
	LeadRef        string `gorm:"uniqueIndex;not null" json:"lead_ref"`
	WhatsAppUserID string `gorm:"index;not null" json:"whatsapp_user_id"`
	UserLocale     string `gorm:"size:16" json:"user_locale,omitempty"`
	Intent         string `gorm:"size:64" json:"intent,omitempty"`
	QueryText      string `gorm:"type:text" json:"query_text,omitempty"`
	AssignedAgent  string `gorm:"size:128;index" json:"assigned_agent,omitempty"`
	Status         string `gorm:"size:32;default:'new'" json:"status"`
}

// Lead status values.
const (
	LeadStatusNew      = "new"
	LeadStatusAssigned = "assigned"
	LeadStatusClosed   = "closed"
)

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.LeadRef == "" {
		l.LeadRef = "LEAD-" + uuid.NewString()[:8]
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	return nil
}
