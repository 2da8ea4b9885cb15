package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager() *SessionManager {
	sm := NewSessionManager()
	sm.Stop()
	return sm
}

func TestSessionCreatedOnFirstAccess(t *testing.T) {
	sm := newTestSessionManager()

	s := sm.Get("971501234567")
	require.NotNil(t, s)
	assert.Equal(t, sessionVersion, s.Version)
	assert.Empty(t, s.Entities.VIN)
	assert.False(t, s.Meta.CreatedAt.IsZero())
}

func TestSessionSaveRoundTrip(t *testing.T) {
	sm := newTestSessionManager()

	s := sm.Get("u1")
	s.SetVIN("1HGCM82633A004352")
	s.SetAwaiting("vin_confirmation")
	sm.Save("u1", s)

	loaded := sm.Get("u1")
	assert.Equal(t, "1HGCM82633A004352", loaded.Entities.VIN)
	assert.Equal(t, "vin_confirmation", loaded.Awaiting())
	require.NotNil(t, loaded.Context.VINSetAt)
}

func TestSetVINInvalidatesStaleCache(t *testing.T) {
	s := newSession()
	s.SetVIN("1HGCM82633A004352")
	s.VINDetails = &VehicleInfo{VIN: "1HGCM82633A004352", Brand: "Honda"}

	require.NotNil(t, s.CachedVehicle())

	// New VIN must force a cache miss until re-resolved.
	s.SetVIN("WBA3A5C51CF256987")
	assert.Nil(t, s.VINDetails)
	assert.Nil(t, s.CachedVehicle())
}

func TestCachedVehicleRejectsMismatch(t *testing.T) {
	s := newSession()
	s.Entities.VIN = "WBA3A5C51CF256987"
	// Stale details written under a previous VIN.
	s.VINDetails = &VehicleInfo{VIN: "1HGCM82633A004352", Brand: "Honda"}

	assert.Nil(t, s.CachedVehicle(), "mismatched vin_details must be a cache miss")
}

func TestClearVIN(t *testing.T) {
	s := newSession()
	s.SetVIN("1HGCM82633A004352")
	s.VINDetails = &VehicleInfo{VIN: "1HGCM82633A004352", Brand: "Honda"}

	s.ClearVIN()
	assert.Empty(t, s.Entities.VIN)
	assert.Nil(t, s.Context.VINSetAt)
	assert.Nil(t, s.VINDetails)
}

func TestSessionClear(t *testing.T) {
	sm := newTestSessionManager()

	s := sm.Get("u1")
	s.SetVIN("1HGCM82633A004352")
	sm.Save("u1", s)
	sm.Clear("u1")

	fresh := sm.Get("u1")
	assert.Empty(t, fresh.Entities.VIN)
}

func TestSessionIsolationBetweenUsers(t *testing.T) {
	sm := newTestSessionManager()

	s1 := sm.Get("u1")
	s1.SetVIN("1HGCM82633A004352")
	sm.Save("u1", s1)

	assert.Empty(t, sm.Get("u2").Entities.VIN)
	assert.Equal(t, 1, sm.ActiveCount())
}

func TestGetReturnsCopy(t *testing.T) {
	sm := newTestSessionManager()

	s := sm.Get("u1")
	s.SetVIN("1HGCM82633A004352")
	sm.Save("u1", s)

	// Mutating a fetched session without Save must not leak into the store.
	leaked := sm.Get("u1")
	leaked.Entities.VIN = "TAMPERED"

	assert.Equal(t, "1HGCM82633A004352", sm.Get("u1").Entities.VIN)
}
