package storage

import (
	"github.com/gulfautoparts/partsbot-backend/internal/models"
)

var storeInstance Store

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// Store defines the interface for storage operations
type Store interface {
	// Part operations
	SearchPartsByNormalizedNumbers(normalized []string) ([]*models.Part, error)
	GetPartsByTags(tags []string) ([]*models.Part, error)
	GetPart(id uint) (*models.Part, error)
	CreatePart(part *models.Part) (*models.Part, error)
	CountParts() (int64, error)

	// Lead operations
	CreateLead(lead *models.Lead) (*models.Lead, error)
	GetLead(leadRef string) (*models.Lead, error)
	GetLeadsByUser(whatsappUserID string) ([]*models.Lead, error)
	CountLeadsByAgent(agent string) (int64, error)
	UpdateLead(lead *models.Lead) error
}
