package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/Domenick1991/jcsyfill/internal/jcsy"
	"github.com/Domenick1991/jcsyfill/internal/kafka"
	"github.com/Domenick1991/jcsyfill/internal/render"
	"github.com/Domenick1991/jcsyfill/internal/service/processing"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProcessUseCase struct {
	mock.Mock
}

func (m *MockProcessUseCase) Process(ctx context.Context, text string) (*processing.Outcome, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processing.Outcome), args.Error(1)
}

func (m *MockProcessUseCase) Refresh(ctx context.Context, listID int64) (*processing.Outcome, error) {
	args := m.Called(ctx, listID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processing.Outcome), args.Error(1)
}

func (m *MockProcessUseCase) RefreshUnresolved(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

type MockListStore struct {
	mock.Mock
}

func (m *MockListStore) GetList(ctx context.Context, id int64) (*domain.ListFlight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ListFlight), args.Error(1)
}

func (m *MockListStore) RecentLists(ctx context.Context, limit int) ([]domain.ListFlight, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ListFlight), args.Error(1)
}

func (m *MockListStore) SearchLists(ctx context.Context, term string, limit int) ([]domain.ListFlight, error) {
	args := m.Called(ctx, term, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ListFlight), args.Error(1)
}

func (m *MockListStore) DeleteList(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

const listText = "JCSY:CA0984/11DEC24/LAX,I\nCA0983 /PEK 1130\n"

func storedList() *domain.ListFlight {
	ata := time.Date(2024, time.December, 11, 13, 5, 0, 0, time.UTC)
	return &domain.ListFlight{
		ID:            3,
		Airline:       "CA",
		FlightNumber:  "984",
		FlightDate:    time.Date(2024, time.December, 11, 0, 0, 0, 0, time.UTC),
		Airport:       "LAX",
		Direction:     domain.DirectionArrival,
		RawText:       listText,
		ProcessedText: "JCSY:CA0984/11DEC24/LAX,I\nCA0983 /PEK 1305\n",
		Rows: []domain.QueryFlight{{
			ID: 9, ListID: 3, Row: 1, Airline: "CA", FlightNumber: "983",
			DepartureAirport: "PEK", ArrivalAirport: "LAX", Status: domain.RowStatusUpdated,
			Times: domain.FlightTimes{ATA: &ata},
		}},
	}
}

func newListRouter(proc *MockProcessUseCase, store *MockListStore, opts ...ListHandlerOption) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewListHandler(proc, store, render.Templates{}, opts...).Register(r.Group("/api/v1/lists"))
	return r
}

func do(r http.Handler, method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestListHandler_createPlainText(t *testing.T) {
	proc := &MockProcessUseCase{}
	out := &processing.Outcome{List: storedList(), Text: storedList().ProcessedText, Updated: 1}
	proc.On("Process", mock.Anything, listText).Return(out, nil)

	w := do(newListRouter(proc, &MockListStore{}), http.MethodPost, "/api/v1/lists", "text/plain", []byte(listText))

	assert.Equal(t, http.StatusCreated, w.Code)
	var got processing.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Updated)
	assert.Equal(t, out.Text, got.Text)
	assert.Equal(t, domain.RowStatusUpdated, got.List.Rows[0].Status)
}

func TestListHandler_createJSON(t *testing.T) {
	proc := &MockProcessUseCase{}
	proc.On("Process", mock.Anything, listText).Return(&processing.Outcome{List: storedList()}, nil)

	body, _ := json.Marshal(map[string]string{"text": listText})
	w := do(newListRouter(proc, &MockListStore{}), http.MethodPost, "/api/v1/lists", "application/json", body)

	assert.Equal(t, http.StatusCreated, w.Code)
	proc.AssertExpectations(t)
}

func TestListHandler_createErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"empty body", "  ", nil, http.StatusBadRequest},
		{"no header", "garbage", fmt.Errorf("%w: %w", processing.ErrInvalidList, jcsy.ErrNoHeader), http.StatusBadRequest},
		{"busy", listText, processing.ErrListBusy, http.StatusConflict},
		{"storage", listText, errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &MockProcessUseCase{}
			if tt.err != nil {
				proc.On("Process", mock.Anything, tt.body).Return(nil, tt.err)
			}
			w := do(newListRouter(proc, &MockListStore{}), http.MethodPost, "/api/v1/lists", "text/plain", []byte(tt.body))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestListHandler_createTooLarge(t *testing.T) {
	proc := &MockProcessUseCase{}
	big := listText + strings.Repeat("X", maxListBytes)

	w := do(newListRouter(proc, &MockListStore{}), http.MethodPost, "/api/v1/lists", "text/plain", []byte(big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	body, _ := json.Marshal(map[string]string{"text": big})
	w = do(newListRouter(proc, &MockListStore{}), http.MethodPost, "/api/v1/lists", "application/json", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	proc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestListHandler_createAsync(t *testing.T) {
	proc := &MockProcessUseCase{}
	sub := &MockSubmitter{}
	sub.On("Publish", mock.Anything, "jcsy.lists", mock.Anything, mock.AnythingOfType("kafka.ListSubmitted")).Return(nil)

	r := newListRouter(proc, &MockListStore{}, WithSubmitter(sub, "jcsy.lists"))
	w := do(r, http.MethodPost, "/api/v1/lists?async=true", "text/plain", []byte(listText))

	require.Equal(t, http.StatusAccepted, w.Code)
	var got submissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.ID, 36)
	assert.Equal(t, "queued", got.Status)

	event := sub.Calls[0].Arguments.Get(3).(kafka.ListSubmitted)
	assert.Equal(t, got.ID, event.ID)
	assert.Equal(t, got.ID, sub.Calls[0].Arguments.String(2))
	assert.Equal(t, listText, event.Text)
	proc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestListHandler_createAsyncDisabled(t *testing.T) {
	w := do(newListRouter(&MockProcessUseCase{}, &MockListStore{}), http.MethodPost, "/api/v1/lists?async=true", "text/plain", []byte(listText))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListHandler_list(t *testing.T) {
	store := &MockListStore{}
	store.On("RecentLists", mock.Anything, 0).Return([]domain.ListFlight{*storedList()}, nil)
	store.On("SearchLists", mock.Anything, "PEK", 5).Return(nil, nil)
	r := newListRouter(&MockProcessUseCase{}, store)

	w := do(r, http.MethodGet, "/api/v1/lists", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []domain.ListFlight
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 1)

	w = do(r, http.MethodGet, "/api/v1/lists?q=PEK&limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/lists?limit=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListHandler_get(t *testing.T) {
	store := &MockListStore{}
	store.On("GetList", mock.Anything, int64(3)).Return(storedList(), nil)
	store.On("GetList", mock.Anything, int64(4)).Return(nil, domain.ErrNotFound)
	r := newListRouter(&MockProcessUseCase{}, store)

	w := do(r, http.MethodGet, "/api/v1/lists/3", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"flight_number":"984"`)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/lists/4", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/lists/abc", "", nil).Code)
}

func TestListHandler_renderings(t *testing.T) {
	store := &MockListStore{}
	store.On("GetList", mock.Anything, int64(3)).Return(storedList(), nil)
	r := newListRouter(&MockProcessUseCase{}, store)

	w := do(r, http.MethodGet, "/api/v1/lists/3/text", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, storedList().ProcessedText, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/lists/3/markdown", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "## CA984 11DEC24 LAX I"))

	w = do(r, http.MethodGet, "/api/v1/lists/3/xlsx", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "CA984_20241211.xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestListHandler_refreshAndDelete(t *testing.T) {
	proc := &MockProcessUseCase{}
	proc.On("Refresh", mock.Anything, int64(3)).Return(&processing.Outcome{List: storedList(), Updated: 1}, nil)
	proc.On("Refresh", mock.Anything, int64(4)).Return(nil, domain.ErrNotFound)
	store := &MockListStore{}
	store.On("DeleteList", mock.Anything, int64(3)).Return(nil)
	store.On("DeleteList", mock.Anything, int64(4)).Return(domain.ErrNotFound)
	r := newListRouter(proc, store)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/lists/3/refresh", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/v1/lists/4/refresh", "", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/v1/lists/3", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/api/v1/lists/4", "", nil).Code)
}
