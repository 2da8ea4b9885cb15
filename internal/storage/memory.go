package storage

import (
	"fmt"
	"sync"

	"github.com/gulfautoparts/partsbot-backend/internal/models"
	"github.com/gulfautoparts/partsbot-backend/internal/utils"
)

// MemoryStore holds all data in memory for testing and local development
type MemoryStore struct {
	parts map[uint]*models.Part
	leads map[string]*models.Lead

	// Mutexes for thread safety
	partMu sync.RWMutex
	leadMu sync.RWMutex

	// Counters for ID generation
	partCounter uint
	leadCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		parts: make(map[uint]*models.Part),
		leads: make(map[string]*models.Lead),
	}
}

// Part operations

func (m *MemoryStore) CreatePart(part *models.Part) (*models.Part, error) {
	m.partMu.Lock()
	defer m.partMu.Unlock()

	m.partCounter++
	part.ID = m.partCounter
	m.parts[part.ID] = part
	return part, nil
}

func (m *MemoryStore) GetPart(id uint) (*models.Part, error) {
	m.partMu.RLock()
	defer m.partMu.RUnlock()

	part, exists := m.parts[id]
	if !exists {
		return nil, fmt.Errorf("part not found")
	}
	return part, nil
}

func (m *MemoryStore) SearchPartsByNormalizedNumbers(normalized []string) ([]*models.Part, error) {
	m.partMu.RLock()
	defer m.partMu.RUnlock()

	wanted := make(map[string]bool, len(normalized))
	for _, n := range normalized {
		if n != "" {
			wanted[n] = true
		}
	}

	var results []*models.Part
	for _, part := range m.parts {
		if wanted[utils.NormalizePartNumber(part.PartNumber)] {
			results = append(results, part)
		}
	}
	return results, nil
}

func (m *MemoryStore) GetPartsByTags(tags []string) ([]*models.Part, error) {
	m.partMu.RLock()
	defer m.partMu.RUnlock()

	wanted := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t != "" {
			wanted[t] = true
		}
	}

	var results []*models.Part
	for _, part := range m.parts {
		if wanted[part.Tag] {
			results = append(results, part)
		}
	}
	return results, nil
}

func (m *MemoryStore) CountParts() (int64, error) {
	m.partMu.RLock()
	defer m.partMu.RUnlock()
	return int64(len(m.parts)), nil
}

// Lead operations

func (m *MemoryStore) CreateLead(lead *models.Lead) (*models.Lead, error) {
	m.leadMu.Lock()
	defer m.leadMu.Unlock()

	m.leadCounter++
	lead.ID = m.leadCounter
	if lead.LeadRef == "" {
		lead.LeadRef = fmt.Sprintf("LEAD-%05d", m.leadCounter)
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}
	m.leads[lead.LeadRef] = lead
	return lead, nil
}

func (m *MemoryStore) GetLead(leadRef string) (*models.Lead, error) {
	m.leadMu.RLock()
	defer m.leadMu.RUnlock()

	lead, exists := m.leads[leadRef]
	if !exists {
		return nil, fmt.Errorf("lead not found")
	}
	return lead, nil
}

func (m *MemoryStore) GetLeadsByUser(whatsappUserID string) ([]*models.Lead, error) {
	m.leadMu.RLock()
	defer m.leadMu.RUnlock()

	var results []*models.Lead
	for _, lead := range m.leads {
		if lead.WhatsAppUserID == whatsappUserID {
			results = append(results, lead)
		}
	}
	return results, nil
}

func (m *MemoryStore) CountLeadsByAgent(agent string) (int64, error) {
	m.leadMu.RLock()
	defer m.leadMu.RUnlock()

	var count int64
	for _, lead := range m.leads {
		if lead.AssignedAgent == agent {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) UpdateLead(lead *models.Lead) error {
	m.leadMu.Lock()
	defer m.leadMu.Unlock()

	if _, exists := m.leads[lead.LeadRef]; !exists {
		return fmt.Errorf("lead not found")
	}
	m.leads[lead.LeadRef] = lead
	return nil
}
