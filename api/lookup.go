package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/Domenick1991/jcsyfill/internal/service/lookup"
	"github.com/Domenick1991/jcsyfill/internal/status"
	"github.com/gin-gonic/gin"
)

type LookupHandler struct {
	service lookup.LookupUseCase
	now     func() time.Time
}

func NewLookupHandler(service lookup.LookupUseCase) *LookupHandler {
	return &LookupHandler{service: service, now: time.Now}
}

func (h *LookupHandler) Register(router *gin.RouterGroup) {
	router.GET("/:code", h.get)
}

// get resolves a single flight: /lookup/CA984?date=2024-12-11&dep=PEK&arr=LAX.
// The date defaults to today.
func (h *LookupHandler) get(c *gin.Context) {
	airline, number, err := domain.ParseFlightCode(strings.ToUpper(c.Param("code")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date := h.now().UTC().Truncate(24 * time.Hour)
	if v := c.Query("date"); v != "" {
		date, err = time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
	}

	q := status.Query{
		Airline:          airline,
		FlightNumber:     number,
		Date:             date,
		DepartureAirport: strings.ToUpper(c.Query("dep")),
		ArrivalAirport:   strings.ToUpper(c.Query("arr")),
	}
	res, err := h.service.Resolve(c.Request.Context(), q)
	if err != nil {
		if errors.Is(err, domain.ErrNoResult) {
			body := gin.H{"error": err.Error()}
			if res != nil {
				body["attempts"] = res.Attempts
			}
			c.JSON(http.StatusNotFound, body)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
