package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gulfautoparts/partsbot-backend/internal/models"
	"github.com/gulfautoparts/partsbot-backend/internal/storage"
	"github.com/gulfautoparts/partsbot-backend/internal/utils"
)

// Fixed user-facing replies for domain-level rejections.
const (
	catalogDataNotFoundMessage = "Catalog data not found for this VIN"
	unsupportedBrandMessage    = "We only support these car parts (BMW, Mercedes, Rolls Royce, Mini, Honda).\nFor more details please contact us on +971 54 751 6365"
)

// brandNotAvailable is the catalog's sentinel for a VIN it carries no data
// for.
const brandNotAvailable = "n/a"

// defaultSupportedBrands is matched case-insensitively as substrings of the
// decoded brand string.
var defaultSupportedBrands = []string{"bmw", "mercedes", "benz", "rolls royce", "mini", "honda"}

// Pipeline is the single deterministic decision path for a user batch:
// entity extraction, VIN resolution, vehicle lookup, brand gate, part
// search, context assembly and response composition.
type Pipeline struct {
	store           storage.Store
	sessions        *SessionManager
	catalog         CatalogClient
	responder       ResponderClient
	leads           *LeadService
	supportedBrands []string
}

// NewPipeline creates the entity and lookup pipeline
func NewPipeline(store storage.Store, sessions *SessionManager, catalog CatalogClient, responder ResponderClient, leads *LeadService) *Pipeline {
	return &Pipeline{
		store:           store,
		sessions:        sessions,
		catalog:         catalog,
		responder:       responder,
		leads:           leads,
		supportedBrands: defaultSupportedBrands,
	}
}

// Process runs the unified pipeline over a user's batched text and returns
// the reply to deliver. It returns an error only when response composition
// itself fails; every lookup failure before that degrades in place.
func (p *Pipeline) Process(ctx context.Context, userID, unifiedText string) (string, error) {
	session := p.sessions.Get(userID)
	log.Printf("🔄 Processing message for %s: %.100s", userID, unifiedText)

	// Step 1: entity extraction.
	entities, err := p.responder.ExtractEntities(ctx, unifiedText)
	if err != nil {
		// Extraction is best-effort: without entities the pipeline still
		// composes a response from the raw text.
		log.Printf("⚠️ Entity extraction failed (non-fatal): %v", err)
		entities = ExtractedEntities{}
	}

	// Step 2: VIN resolution. A fresh 17-character VIN overwrites the
	// stored one and invalidates the vehicle cache.
	currentVIN := session.Entities.VIN
	if len(entities.VINList) > 0 {
		newVIN := entities.VINList[0]
		if len(newVIN) == 17 {
			session.SetVIN(newVIN)
			currentVIN = newVIN
			p.sessions.Save(userID, session)
		}
	}

	// Step 3: vehicle lookup with session cache.
	var vehicle *VehicleInfo
	if currentVIN != "" {
		if cached := session.CachedVehicle(); cached != nil {
			vehicle = cached
		} else {
			info, err := p.catalog.VehicleLookup(ctx, currentVIN)
			switch {
			case err != nil:
				// Possibly a transient network fault: proceed without
				// vehicle details and keep the stored VIN.
				log.Printf("⚠️ VIN decode warning (non-fatal): %v", err)
			case info != nil:
				info.VIN = currentVIN
				session.VINDetails = info
				p.sessions.Save(userID, session)
				vehicle = info
			}
		}
	}

	// Step 4: brand-support gate. Validate only when the VIN arrived in
	// this message, or when details exist and the user is actually asking
	// for parts. A stale unsupported VIN must not block small talk.
	shouldValidateBrand := len(entities.VINList) > 0 ||
		(vehicle != nil && (len(entities.PartNumbers) > 0 || len(entities.ItemDescriptions) > 0))

	if shouldValidateBrand && vehicle != nil {
		brand := strings.ToLower(vehicle.Brand)
		if brand == brandNotAvailable {
			return catalogDataNotFoundMessage, nil
		}
		if !p.brandSupported(brand) {
			log.Printf("⛔ Unsupported brand %q for %s, clearing session VIN", vehicle.Brand, userID)
			session.ClearVIN()
			p.sessions.Save(userID, session)
			return unsupportedBrandMessage, nil
		}
	}

	// Step 5: part search. Explicit part numbers win; the catalog search by
	// description runs only when nothing matched yet and a VIN is known.
	var partsFound []models.PartResult
	if len(entities.PartNumbers) > 0 {
		partsFound = append(partsFound, p.searchPartsInStore(entities.PartNumbers)...)
	}
	if currentVIN != "" && len(entities.ItemDescriptions) > 0 && len(partsFound) == 0 {
		partsFound = append(partsFound, p.searchCatalogByName(ctx, currentVIN, entities.ItemDescriptions)...)
	}

	// Step 6: context assembly.
	storedVIN := currentVIN
	if storedVIN == "" {
		storedVIN = "None"
	}
	rc := ResponseContext{
		VehicleInfo:    vehicle,
		PartsFound:     partsFound,
		SessionSummary: fmt.Sprintf("User ID: %s. Stored VIN: %s", userID, storedVIN),
	}

	// Step 7: response composition.
	reply, err := p.responder.ComposeResponse(ctx, unifiedText, rc)
	if err != nil {
		return "", fmt.Errorf("response composition failed: %w", err)
	}

	// Escalation is a side effect; it never alters the reply.
	if reply.Action == ActionEscalate && p.leads != nil {
		if _, err := p.leads.CreateLead(userID, unifiedText, ActionEscalate); err != nil {
			log.Printf("⚠️ Failed to record lead for %s: %v", userID, err)
		}
	}

	return reply.Text, nil
}

func (p *Pipeline) brandSupported(brand string) bool {
	for _, s := range p.supportedBrands {
		if strings.Contains(brand, s) {
			return true
		}
	}
	return false
}

// searchPartsInStore matches explicit part numbers against local stock and
// expands each match with the siblings sharing its grouping tag.
func (p *Pipeline) searchPartsInStore(partNumbers []string) []models.PartResult {
	seen := make(map[string]bool)
	var normalized []string
	for _, pn := range partNumbers {
		n := utils.NormalizePartNumber(pn)
		if n != "" && !seen[n] {
			seen[n] = true
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		return nil
	}

	matches, err := p.store.SearchPartsByNormalizedNumbers(normalized)
	if err != nil {
		log.Printf("⚠️ Part search failed: %v", err)
		return nil
	}

	if len(matches) > 0 {
		tagSet := make(map[string]bool)
		var tags []string
		for _, m := range matches {
			if m.Tag != "" && !tagSet[m.Tag] {
				tagSet[m.Tag] = true
				tags = append(tags, m.Tag)
			}
		}

		if len(tags) > 0 {
			siblings, err := p.store.GetPartsByTags(tags)
			if err != nil {
				log.Printf("⚠️ Sibling lookup failed: %v", err)
			} else {
				// Merge and deduplicate by identity.
				combined := make(map[uint]*models.Part, len(matches))
				for _, m := range matches {
					combined[m.ID] = m
				}
				for _, s := range siblings {
					combined[s.ID] = s
				}
				matches = matches[:0]
				for _, part := range combined {
					matches = append(matches, part)
				}
			}
		}
	}

	results := make([]models.PartResult, 0, len(matches))
	for _, part := range matches {
		results = append(results, partToResult(part))
	}
	return results
}

// searchCatalogByName queries the external catalog per description, then
// re-resolves each returned OEM number against local stock. Catalog hits
// absent from stock become out-of-stock placeholders so the reply can
// distinguish "not carried" from "out of stock".
func (p *Pipeline) searchCatalogByName(ctx context.Context, vin string, descriptions []string) []models.PartResult {
	var results []models.PartResult
	log.Printf("🔎 Searching catalog with VIN=%s for %v", vin, descriptions)

	for _, desc := range descriptions {
		catalogParts, err := p.catalog.SearchParts(ctx, vin, desc)
		if err != nil {
			log.Printf("❌ Catalog search failed for %q: %v", desc, err)
			results = append(results, models.PartResult{
				Name:   desc,
				Status: models.PartStatusError,
			})
			continue
		}
		if len(catalogParts) == 0 {
			results = append(results, models.PartResult{
				Name:   desc,
				Status: models.PartStatusEmpty,
			})
			continue
		}

		var oemNumbers []string
		for _, cp := range catalogParts {
			if n := utils.NormalizePartNumber(cp.Number); n != "" {
				oemNumbers = append(oemNumbers, n)
			}
		}
		if len(oemNumbers) == 0 {
			results = append(results, models.PartResult{
				Name:   desc,
				Status: models.PartStatusEmpty,
			})
			continue
		}

		if dbMatches := p.searchPartsInStore(oemNumbers); len(dbMatches) > 0 {
			log.Printf("✅ Found %d local matches for %q", len(dbMatches), desc)
			results = append(results, dbMatches...)
			continue
		}

		// In catalog, not in stock: keep the first few as references.
		log.Printf("⚠️ %q found in catalog but not in stock", desc)
		for i, cp := range catalogParts {
			if i >= 3 {
				break
			}
			name := cp.Name
			if name == "" {
				name = desc
			}
			results = append(results, models.PartResult{
				PartNumber: cp.Number,
				Brand:      "OEM/Catalog",
				Name:       name,
				Qty:        0,
				Tag:        "Catalog Match (Not in Stock)",
				Status:     models.PartStatusOutOfStock,
			})
		}
	}

	return results
}

func partToResult(part *models.Part) models.PartResult {
	tag := part.Tag
	if tag == "" {
		tag = "General"
	}
	var price *float64
	if part.Price > 0 {
		v := part.Price
		price = &v
	}
	return models.PartResult{
		PartNumber: part.PartNumber,
		Brand:      part.Brand,
		Name:       part.ItemDesc,
		Price:      price,
		Qty:        part.Qty,
		Tag:        tag,
	}
}
