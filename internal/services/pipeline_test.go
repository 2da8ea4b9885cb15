package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gulfautoparts/partsbot-backend/internal/models"
	"github.com/gulfautoparts/partsbot-backend/internal/storage"
)

const (
	testVIN  = "1HGCM82633A004352"
	testUser = "971501234567"
)

type fakeResponder struct {
	entities     ExtractedEntities
	extractErr   error
	reply        ComposedReply
	composeErr   error
	composeCalls int
	lastUserText string
	lastContext  ResponseContext
}

func (f *fakeResponder) ExtractEntities(ctx context.Context, text string) (ExtractedEntities, error) {
	return f.entities, f.extractErr
}

func (f *fakeResponder) ComposeResponse(ctx context.Context, userText string, rc ResponseContext) (ComposedReply, error) {
	f.composeCalls++
	f.lastUserText = userText
	f.lastContext = rc
	return f.reply, f.composeErr
}

type fakeCatalog struct {
	vehicle     *VehicleInfo
	lookupErr   error
	lookupCalls int
	parts       []CatalogPart
	searchErr   error
	searchCalls int
	lastVIN     string
	lastQuery   string
}

func (f *fakeCatalog) VehicleLookup(ctx context.Context, vin string) (*VehicleInfo, error) {
	f.lookupCalls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.vehicle == nil {
		return nil, nil
	}
	copied := *f.vehicle
	return &copied, nil
}

func (f *fakeCatalog) SearchParts(ctx context.Context, vin, description string) ([]CatalogPart, error) {
	f.searchCalls++
	f.lastVIN = vin
	f.lastQuery = description
	return f.parts, f.searchErr
}

type pipelineFixture struct {
	pipeline  *Pipeline
	sessions  *SessionManager
	store     *storage.MemoryStore
	catalog   *fakeCatalog
	responder *fakeResponder
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	store := storage.NewMemoryStore()
	sessions := newTestSessionManager()
	catalog := &fakeCatalog{}
	responder := &fakeResponder{reply: ComposedReply{Text: "ok", Action: ActionInfoOnly}}
	leads := NewLeadService(store)

	return &pipelineFixture{
		pipeline:  NewPipeline(store, sessions, catalog, responder, leads),
		sessions:  sessions,
		store:     store,
		catalog:   catalog,
		responder: responder,
	}
}

func seedParts(t *testing.T, store *storage.MemoryStore) {
	t.Helper()
	for _, part := range []*models.Part{
		{PartNumber: "A1", Tag: "T", ItemDesc: "Brake pad set", Brand: "Bosch", Price: 120, Qty: 4},
		{PartNumber: "B2", Tag: "T", ItemDesc: "Brake pad set (alt)", Brand: "Textar", Price: 95, Qty: 2},
		{PartNumber: "C3", Tag: "U", ItemDesc: "Oil filter", Brand: "Mann", Price: 30, Qty: 10},
	} {
		_, err := store.CreatePart(part)
		require.NoError(t, err)
	}
}

func TestSiblingExpansion(t *testing.T) {
	f := newPipelineFixture(t)
	seedParts(t, f.store)
	f.responder.entities = ExtractedEntities{PartNumbers: []string{"A1"}}

	_, err := f.pipeline.Process(context.Background(), testUser, "need A1")
	require.NoError(t, err)

	var numbers []string
	for _, p := range f.responder.lastContext.PartsFound {
		numbers = append(numbers, p.PartNumber)
	}
	assert.ElementsMatch(t, []string{"A1", "B2"}, numbers, "same-tag sibling included, other tags excluded")
}

func TestPartNumberNormalizedMatch(t *testing.T) {
	f := newPipelineFixture(t)
	seedParts(t, f.store)
	f.responder.entities = ExtractedEntities{PartNumbers: []string{"a-1!"}}

	_, err := f.pipeline.Process(context.Background(), testUser, "need a-1!")
	require.NoError(t, err)
	assert.NotEmpty(t, f.responder.lastContext.PartsFound)
}

func TestFreshVINStoredAndVehicleCached(t *testing.T) {
	f := newPipelineFixture(t)
	f.catalog.vehicle = &VehicleInfo{Brand: "BMW", Model: "330i", Year: "2018"}
	f.responder.entities = ExtractedEntities{VINList: []string{testVIN}}

	_, err := f.pipeline.Process(context.Background(), testUser, "VIN "+testVIN)
	require.NoError(t, err)

	session := f.sessions.Get(testUser)
	assert.Equal(t, testVIN, session.Entities.VIN)
	require.NotNil(t, session.VINDetails)
	assert.Equal(t, testVIN, session.VINDetails.VIN, "cache keyed by the stored VIN")
	assert.Equal(t, 1, f.catalog.lookupCalls)

	// Second message without a VIN: the cached details are reused.
	f.responder.entities = ExtractedEntities{}
	_, err = f.pipeline.Process(context.Background(), testUser, "hello again")
	require.NoError(t, err)
	assert.Equal(t, 1, f.catalog.lookupCalls, "cache hit must not re-resolve")
}

func TestInvalidVINLengthIgnored(t *testing.T) {
	f := newPipelineFixture(t)
	// 19 characters, not a VIN.
	f.responder.entities = ExtractedEntities{VINList: []string{"WVAVPN7C524AA778342"}}

	_, err := f.pipeline.Process(context.Background(), testUser, "hi\n\nVIN WVAVPN7C524AA778342")
	require.NoError(t, err)

	assert.Empty(t, f.sessions.Get(testUser).Entities.VIN, "session VIN left unchanged")
	assert.Zero(t, f.catalog.lookupCalls)
}

func TestVehicleLookupFailureKeepsVIN(t *testing.T) {
	f := newPipelineFixture(t)
	f.catalog.lookupErr = NewTransientFault("vehicle_lookup", errors.New("timeout"))
	f.responder.entities = ExtractedEntities{VINList: []string{testVIN}}

	reply, err := f.pipeline.Process(context.Background(), testUser, "VIN "+testVIN)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply, "lookup failure is non-fatal")

	session := f.sessions.Get(testUser)
	assert.Equal(t, testVIN, session.Entities.VIN, "transient fault must not clear the VIN")
	assert.Nil(t, session.VINDetails)
}

func TestBrandGateUnsupportedClearsSession(t *testing.T) {
	f := newPipelineFixture(t)
	seedParts(t, f.store)
	f.catalog.vehicle = &VehicleInfo{Brand: "Toyota", Model: "Corolla", Year: "2019"}
	// Parts present or not, the gate outcome is the same.
	f.responder.entities = ExtractedEntities{
		VINList:     []string{testVIN},
		PartNumbers: []string{"A1"},
	}

	reply, err := f.pipeline.Process(context.Background(), testUser, "VIN "+testVIN+" need A1")
	require.NoError(t, err)
	assert.Equal(t, unsupportedBrandMessage, reply)
	assert.Zero(t, f.responder.composeCalls, "short-circuits before composition")

	session := f.sessions.Get(testUser)
	assert.Empty(t, session.Entities.VIN, "poisoned VIN cleared")
	assert.Nil(t, session.VINDetails)
}

func TestBrandGateSentinel(t *testing.T) {
	f := newPipelineFixture(t)
	f.catalog.vehicle = &VehicleInfo{Brand: "N/A"}
	f.responder.entities = ExtractedEntities{VINList: []string{testVIN}}

	reply, err := f.pipeline.Process(context.Background(), testUser, "VIN "+testVIN)
	require.NoError(t, err)
	assert.Equal(t, catalogDataNotFoundMessage, reply)
}

func TestBrandGateSkipsSmallTalk(t *testing.T) {
	f := newPipelineFixture(t)

	// Stale unsupported vehicle already in the session.
	session := f.sessions.Get(testUser)
	session.SetVIN(testVIN)
	session.VINDetails = &VehicleInfo{VIN: testVIN, Brand: "Toyota"}
	f.sessions.Save(testUser, session)

	f.responder.entities = ExtractedEntities{} // plain "hi", no parts, no VIN

	reply, err := f.pipeline.Process(context.Background(), testUser, "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply, "small talk must not be blocked by a stale VIN")
	assert.Equal(t, 1, f.responder.composeCalls)
}

func TestBrandSubstringMatch(t *testing.T) {
	f := newPipelineFixture(t)
	f.catalog.vehicle = &VehicleInfo{Brand: "Mercedes-Benz AG"}
	f.responder.entities = ExtractedEntities{VINList: []string{testVIN}}

	reply, err := f.pipeline.Process(context.Background(), testUser, "VIN "+testVIN)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestPartNumberPriorityOverCatalog(t *testing.T) {
	f := newPipelineFixture(t)
	seedParts(t, f.store)

	session := f.sessions.Get(testUser)
	session.SetVIN(testVIN)
	session.VINDetails = &VehicleInfo{VIN: testVIN, Brand: "BMW"}
	f.sessions.Save(testUser, session)

	f.responder.entities = ExtractedEntities{
		PartNumbers:      []string{"A1"},
		ItemDescriptions: []string{"brake pads"},
	}

	_, err := f.pipeline.Process(context.Background(), testUser, "need brake pads A1")
	require.NoError(t, err)
	assert.Zero(t, f.catalog.searchCalls, "local match suppresses the catalog search")
}

func TestCatalogFallbackOutOfStock(t *testing.T) {
	f := newPipelineFixture(t)

	session := f.sessions.Get(testUser)
	session.SetVIN(testVIN)
	session.VINDetails = &VehicleInfo{VIN: testVIN, Brand: "BMW"}
	f.sessions.Save(testUser, session)

	f.catalog.parts = []CatalogPart{
		{Number: "34116761280", Name: "Brake pad set front"},
		{Number: "34116761281", Name: "Brake pad set rear"},
		{Number: "34116761282", Name: "Wear sensor"},
		{Number: "34116761283", Name: "Fitting kit"},
	}
	f.responder.entities = ExtractedEntities{ItemDescriptions: []string{"brake pads"}}

	_, err := f.pipeline.Process(context.Background(), testUser, "need brake pads")
	require.NoError(t, err)

	found := f.responder.lastContext.PartsFound
	require.Len(t, found, 3, "out-of-stock placeholders capped at 3")
	for _, p := range found {
		assert.Equal(t, models.PartStatusOutOfStock, p.Status)
		assert.Equal(t, "OEM/Catalog", p.Brand)
		assert.Nil(t, p.Price)
		assert.Zero(t, p.Qty)
	}
	assert.Equal(t, testVIN, f.catalog.lastVIN)
	assert.Equal(t, "brake pads", f.catalog.lastQuery)
}

func TestCatalogHitResolvedLocally(t *testing.T) {
	f := newPipelineFixture(t)
	seedParts(t, f.store)

	session := f.sessions.Get(testUser)
	session.SetVIN(testVIN)
	session.VINDetails = &VehicleInfo{VIN: testVIN, Brand: "BMW"}
	f.sessions.Save(testUser, session)

	// The catalog returns an OEM number that exists in local stock.
	f.catalog.parts = []CatalogPart{{Number: "a-1", Name: "Brake pad set"}}
	f.responder.entities = ExtractedEntities{ItemDescriptions: []string{"brake pads"}}

	_, err := f.pipeline.Process(context.Background(), testUser, "need brake pads")
	require.NoError(t, err)

	found := f.responder.lastContext.PartsFound
	require.NotEmpty(t, found)
	for _, p := range found {
		assert.Empty(t, p.Status, "stocked parts carry no placeholder status")
	}
}

func TestCatalogSearchErrorStatusEntry(t *testing.T) {
	f := newPipelineFixture(t)

	session := f.sessions.Get(testUser)
	session.SetVIN(testVIN)
	session.VINDetails = &VehicleInfo{VIN: testVIN, Brand: "BMW"}
	f.sessions.Save(testUser, session)

	f.catalog.searchErr = NewTransientFault("catalog_search", errors.New("scraper down"))
	f.responder.entities = ExtractedEntities{ItemDescriptions: []string{"brake pads"}}

	reply, err := f.pipeline.Process(context.Background(), testUser, "need brake pads")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply, "catalog failure is not fatal")

	found := f.responder.lastContext.PartsFound
	require.Len(t, found, 1)
	assert.Equal(t, models.PartStatusError, found[0].Status)
}

func TestCatalogEmptyStatusEntry(t *testing.T) {
	f := newPipelineFixture(t)

	session := f.sessions.Get(testUser)
	session.SetVIN(testVIN)
	session.VINDetails = &VehicleInfo{VIN: testVIN, Brand: "BMW"}
	f.sessions.Save(testUser, session)

	f.catalog.parts = nil
	f.responder.entities = ExtractedEntities{ItemDescriptions: []string{"brake pads"}}

	_, err := f.pipeline.Process(context.Background(), testUser, "need brake pads")
	require.NoError(t, err)

	found := f.responder.lastContext.PartsFound
	require.Len(t, found, 1)
	assert.Equal(t, models.PartStatusEmpty, found[0].Status)
}

func TestEscalateCreatesLead(t *testing.T) {
	f := newPipelineFixture(t)
	f.responder.reply = ComposedReply{Text: "our team will call you", Action: ActionEscalate}

	reply, err := f.pipeline.Process(context.Background(), testUser, "I want to speak to a human")
	require.NoError(t, err)
	assert.Equal(t, "our team will call you", reply, "escalation never alters the reply")

	leads, err := f.store.GetLeadsByUser(testUser)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, models.LeadStatusAssigned, leads[0].Status)
	assert.NotEmpty(t, leads[0].AssignedAgent)
}

func TestComposeFailurePropagates(t *testing.T) {
	f := newPipelineFixture(t)
	f.responder.composeErr = NewTransientFault("compose_response", errors.New("api down"))

	_, err := f.pipeline.Process(context.Background(), testUser, "hello")
	assert.Error(t, err)
}

func TestExtractionFailureDegradesToEmptyEntities(t *testing.T) {
	f := newPipelineFixture(t)
	f.responder.extractErr = NewTransientFault("extract_entities", errors.New("api down"))

	reply, err := f.pipeline.Process(context.Background(), testUser, "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestScenarioBrakePadsWithVIN(t *testing.T) {
	f := newPipelineFixture(t)
	f.catalog.vehicle = &VehicleInfo{Brand: "BMW", Model: "330i", Year: "2018"}
	f.catalog.parts = []CatalogPart{{Number: "34116761280", Name: "Brake pad set"}}
	f.responder.entities = ExtractedEntities{
		VINList:          []string{testVIN},
		ItemDescriptions: []string{"brake pads"},
	}
	f.responder.reply = ComposedReply{Text: "We have brake pads for your BMW 330i.", Action: ActionQuote}

	reply, err := f.pipeline.Process(context.Background(), testUser, "need brake pads, VIN "+testVIN)
	require.NoError(t, err)

	assert.Equal(t, "We have brake pads for your BMW 330i.", reply)
	assert.Len(t, SplitMessage(reply, 4000), 1, "short reply goes out as one chunk")
	assert.Equal(t, 1, f.catalog.searchCalls, "catalog path used when no part numbers given")
	require.NotNil(t, f.responder.lastContext.VehicleInfo)
	assert.Equal(t, "BMW", f.responder.lastContext.VehicleInfo.Brand)
	assert.Contains(t, f.responder.lastContext.SessionSummary, testVIN)
}
