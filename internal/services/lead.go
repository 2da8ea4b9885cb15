package services

import (
	"log"
	"os"
	"strings"

	"github.com/gulfautoparts/partsbot-backend/internal/models"
	"github.com/gulfautoparts/partsbot-backend/internal/storage"
)

// LeadService records escalated conversations and assigns them to sales
// agents.
type LeadService struct {
	store  storage.Store
	agents []string
}

// NewLeadService creates a lead service. The agent roster comes from the
// SALES_AGENTS env var (comma separated) with a development default.
func NewLeadService(store storage.Store) *LeadService {
	agents := []string{"agent1", "agent2", "agent3"}
	if raw := os.Getenv("SALES_AGENTS"); raw != "" {
		agents = agents[:0]
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				agents = append(agents, a)
			}
		}
	}

	return &LeadService{
		store:  store,
		agents: agents,
	}
}

// CreateLead records a new lead from a WhatsApp conversation and
// auto-assigns it.
func (l *LeadService) CreateLead(whatsappUserID, queryText, intent string) (*models.Lead, error) {
	lead := &models.Lead{
		WhatsAppUserID: whatsappUserID,
		QueryText:      queryText,
		Intent:         intent,
		Status:         models.LeadStatusNew,
	}

	created, err := l.store.CreateLead(lead)
	if err != nil {
		return nil, err
	}
	log.Printf("📋 Lead created: %s for %s", created.LeadRef, whatsappUserID)

	if agent := l.assignLead(created); agent != "" {
		log.Printf("👤 Lead %s assigned to %s", created.LeadRef, agent)
	}
	return created, nil
}

// assignLead picks the agent currently carrying the fewest leads.
func (l *LeadService) assignLead(lead *models.Lead) string {
	if len(l.agents) == 0 {
		return ""
	}

	assigned := ""
	var lowest int64 = -1
	for _, agent := range l.agents {
		count, err := l.store.CountLeadsByAgent(agent)
		if err != nil {
			log.Printf("⚠️ Failed to count leads for %s: %v", agent, err)
			continue
		}
		if lowest < 0 || count < lowest {
			lowest = count
			assigned = agent
		}
	}
	if assigned == "" {
		return ""
	}

	lead.AssignedAgent = assigned
	lead.Status = models.LeadStatusAssigned
	if err := l.store.UpdateLead(lead); err != nil {
		log.Printf("⚠️ Failed to save lead assignment: %v", err)
		return ""
	}
	return assigned
}
