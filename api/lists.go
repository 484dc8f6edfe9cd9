package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/Domenick1991/jcsyfill/internal/kafka"
	"github.com/Domenick1991/jcsyfill/internal/render"
	"github.com/Domenick1991/jcsyfill/internal/service/processing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxListBytes = 1 << 20

type ListStore interface {
	GetList(ctx context.Context, id int64) (*domain.ListFlight, error)
	RecentLists(ctx context.Context, limit int) ([]domain.ListFlight, error)
	SearchLists(ctx context.Context, term string, limit int) ([]domain.ListFlight, error)
	DeleteList(ctx context.Context, id int64) error
}

type Submitter interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type ListHandler struct {
	processor  processing.ProcessUseCase
	lists      ListStore
	templates  render.Templates
	submitter  Submitter
	listsTopic string
}

type ListHandlerOption func(*ListHandler)

// WithSubmitter enables ?async=true submissions through the lists topic.
func WithSubmitter(s Submitter, listsTopic string) ListHandlerOption {
	return func(h *ListHandler) {
		h.submitter = s
		h.listsTopic = listsTopic
	}
}

type submitListRequest struct {
	Text string `json:"text" binding:"required"`
}

type submissionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func NewListHandler(processor processing.ProcessUseCase, lists ListStore, templates render.Templates, opts ...ListHandlerOption) *ListHandler {
	h := &ListHandler{processor: processor, lists: lists, templates: templates}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ListHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/text", h.text)
	router.GET("/:id/markdown", h.markdown)
	router.GET("/:id/xlsx", h.xlsx)
	router.POST("/:id/refresh", h.refresh)
	router.DELETE("/:id", h.delete)
}

func (h *ListHandler) create(c *gin.Context) {
	text, err := readListText(c)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if c.Query("async") == "true" {
		h.submit(c, text)
		return
	}

	out, err := h.processor.Process(c.Request.Context(), text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *ListHandler) submit(c *gin.Context, text string) {
	if h.submitter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "async processing is not configured"})
		return
	}
	id := uuid.NewString()
	event := kafka.ListSubmitted{ID: id, Text: text, SubmittedAt: time.Now().UTC()}
	if err := h.submitter.Publish(c.Request.Context(), h.listsTopic, id, event); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, submissionResponse{ID: id, Status: "queued"})
}

func (h *ListHandler) list(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	var (
		lists []domain.ListFlight
		err   error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		lists, err = h.lists.SearchLists(c.Request.Context(), q, limit)
	} else {
		lists, err = h.lists.RecentLists(c.Request.Context(), limit)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if lists == nil {
		lists = []domain.ListFlight{}
	}
	c.JSON(http.StatusOK, lists)
}

func (h *ListHandler) get(c *gin.Context) {
	list, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ListHandler) text(c *gin.Context) {
	list, ok := h.load(c)
	if !ok {
		return
	}
	text := list.ProcessedText
	if text == "" {
		text = list.RawText
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func (h *ListHandler) markdown(c *gin.Context) {
	list, ok := h.load(c)
	if !ok {
		return
	}
	md, err := render.Markdown(list, h.templates)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
}

func (h *ListHandler) xlsx(c *gin.Context) {
	list, ok := h.load(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.XLSX(&buf, list); err != nil {
		writeError(c, err)
		return
	}
	name := fmt.Sprintf("%s_%s.xlsx", list.FlightCode(), list.FlightDate.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *ListHandler) refresh(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	out, err := h.processor.Refresh(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *ListHandler) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.lists.DeleteList(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ListHandler) load(c *gin.Context) (*domain.ListFlight, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	list, err := h.lists.GetList(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return list, true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// readListText accepts either a JSON {"text": ...} body or the raw list.
func readListText(c *gin.Context) (string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxListBytes)
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req submitListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return "", err
		}
		return req.Text, nil
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("empty list")
	}
	return string(data), nil
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, processing.ErrInvalidList):
		status = http.StatusBadRequest
	case errors.Is(err, processing.ErrListBusy):
		status = http.StatusConflict
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
