package storage

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/gulfautoparts/partsbot-backend/internal/models"
)

// DatabaseStore persists everything in PostgreSQL via GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed storage
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Part operations

func (d *DatabaseStore) CreatePart(part *models.Part) (*models.Part, error) {
	if err := d.db.Create(part).Error; err != nil {
		return nil, fmt.Errorf("failed to create part: %w", err)
	}
	return part, nil
}

func (d *DatabaseStore) GetPart(id uint) (*models.Part, error) {
	var part models.Part
	if err := d.db.First(&part, id).Error; err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}
	return &part, nil
}

// SearchPartsByNormalizedNumbers matches stock rows whose part number,
// stripped to uppercase alphanumerics, equals one of the given values.
// Normalization happens on the database side so stored formatting
// ("AB-12 345") never prevents a match.
func (d *DatabaseStore) SearchPartsByNormalizedNumbers(normalized []string) ([]*models.Part, error) {
	cleaned := make([]string, 0, len(normalized))
	for _, n := range normalized {
		if n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}

	var parts []*models.Part
	err := d.db.
		Where("regexp_replace(upper(part_number), '[^A-Z0-9]', '', 'g') IN ?", cleaned).
		Find(&parts).Error
	if err != nil {
		return nil, fmt.Errorf("part search failed: %w", err)
	}
	return parts, nil
}

func (d *DatabaseStore) GetPartsByTags(tags []string) ([]*models.Part, error) {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}

	var parts []*models.Part
	if err := d.db.Where("tag IN ?", cleaned).Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("sibling lookup failed: %w", err)
	}
	return parts, nil
}

func (d *DatabaseStore) CountParts() (int64, error) {
	var count int64
	if err := d.db.Model(&models.Part{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Lead operations

func (d *DatabaseStore) CreateLead(lead *models.Lead) (*models.Lead, error) {
	if err := d.db.Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}
	return lead, nil
}

func (d *DatabaseStore) GetLead(leadRef string) (*models.Lead, error) {
	var lead models.Lead
	if err := d.db.Where("lead_ref = ?", leadRef).First(&lead).Error; err != nil {
		return nil, fmt.Errorf("lead not found: %w", err)
	}
	return &lead, nil
}

func (d *DatabaseStore) GetLeadsByUser(whatsappUserID string) ([]*models.Lead, error) {
	var leads []*models.Lead
	err := d.db.
		Where("whats_app_user_id = ?", whatsappUserID).
		Order("created_at DESC").
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("lead lookup failed: %w", err)
	}
	return leads, nil
}

func (d *DatabaseStore) CountLeadsByAgent(agent string) (int64, error) {
	var count int64
	err := d.db.Model(&models.Lead{}).
		Where("assigned_agent = ?", agent).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (d *DatabaseStore) UpdateLead(lead *models.Lead) error {
	if err := d.db.Save(lead).Error; err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	return nil
}
