package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/Domenick1991/jcsyfill/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLookupUseCase struct {
	mock.Mock
}

func (m *MockLookupUseCase) Resolve(ctx context.Context, q status.Query) (*domain.LookupResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LookupResult), args.Error(1)
}

func (m *MockLookupUseCase) ResolveOn(ctx context.Context, q status.Query, offset int) (*domain.LookupResult, error) {
	args := m.Called(ctx, q, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LookupResult), args.Error(1)
}

func TestLookupHandler_get(t *testing.T) {
	svc := &MockLookupUseCase{}
	ata := time.Date(2024, time.December, 11, 13, 5, 0, 0, time.UTC)
	want := status.Query{
		Airline: "CA", FlightNumber: "984",
		Date:             time.Date(2024, time.December, 11, 0, 0, 0, 0, time.UTC),
		DepartureAirport: "PEK", ArrivalAirport: "LAX",
	}
	svc.On("Resolve", mock.Anything, want).Return(&domain.LookupResult{
		Times:  domain.FlightTimes{ATA: &ata},
		Source: status.NameFlightView,
	}, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewLookupHandler(svc).Register(r.Group("/api/v1/lookup"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/lookup/ca0984?date=2024-12-11&dep=pek&arr=LAX", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got domain.LookupResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, status.NameFlightView, got.Source)
	require.NotNil(t, got.Times.ATA)
	assert.True(t, ata.Equal(*got.Times.ATA))
}

func TestLookupHandler_notFound(t *testing.T) {
	svc := &MockLookupUseCase{}
	svc.On("Resolve", mock.Anything, mock.Anything).Return(
		&domain.LookupResult{Attempts: []domain.Snapshot{{Source: status.NameFlightView, Error: "not found"}}},
		fmt.Errorf("CA984: %w", domain.ErrNoResult))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewLookupHandler(svc).Register(r.Group("/api/v1/lookup"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/lookup/CA984", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"attempts"`)
}

func TestLookupHandler_badInput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewLookupHandler(&MockLookupUseCase{}).Register(r.Group("/api/v1/lookup"))

	for _, target := range []string{"/api/v1/lookup/C", "/api/v1/lookup/XYABC", "/api/v1/lookup/CA984?date=11DEC24"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}
