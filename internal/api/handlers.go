package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/phuslu/log"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/factor-analysis-service/internal/factor"
	"github.com/trogers1052/factor-analysis-service/internal/models"
)

// Analyzer runs factor analyses
type Analyzer interface {
	AnalyzeStock(ctx context.Context, req factor.StockRequest) (*models.FactorAnalysisResult, error)
	AnalyzePortfolio(ctx context.Context, req factor.PortfolioRequest) (*models.PortfolioFactorAnalysisResult, error)
}

// Store is the persistence the handlers read and write
type Store interface {
	Ping(ctx context.Context) error
	GetStock(ctx context.Context, symbol string) (*models.Stock, error)
	CreatePortfolio(ctx context.Context, p *models.Portfolio) error
	GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error)
	GetHoldings(ctx context.Context, portfolioID string) ([]models.Holding, error)
	AddHolding(ctx context.Context, h *models.Holding) error
	ReplaceHoldings(ctx context.Context, portfolioID string, holdings []*models.Holding) error
}

// RequestPublisher queues analyses for the asynchronous worker
type RequestPublisher interface {
	PublishAnalysisRequest(ctx context.Context, event *models.AnalysisRequestEvent) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	analyzer  Analyzer
	store     Store
	publisher RequestPublisher
	validate  *validator.Validate
	logger    *log.Logger
}

// NewHandler creates a new Handler. publisher may be nil, which disables queued analyses.
func NewHandler(analyzer Analyzer, store Store, publisher RequestPublisher) *Handler {
	return &Handler{
		analyzer:  analyzer,
		store:     store,
		publisher: publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    &log.DefaultLogger,
	}
}

// WithLogger sets the logger
func (h *Handler) WithLogger(logger *log.Logger) *Handler {
	h.logger = logger
	return h
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type analysisQuery struct {
	LookbackDays int `validate:"gte=1,lte=2520"`
}

// AnalyzeStock handles GET /factors/stocks/{symbol}
func (h *Handler) AnalyzeStock(w http.ResponseWriter, r *http.Request) {
	lookback, ok := h.lookbackDays(w, r)
	if !ok {
		return
	}

	result, err := h.analyzer.AnalyzeStock(r.Context(), factor.StockRequest{
		Symbol:       mux.Vars(r)["symbol"],
		LookbackDays: lookback,
	})
	if err != nil {
		h.respondAnalysisError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// AnalyzePortfolio handles GET /factors/portfolios/{portfolioId}
func (h *Handler) AnalyzePortfolio(w http.ResponseWriter, r *http.Request) {
	lookback, ok := h.lookbackDays(w, r)
	if !ok {
		return
	}

	result, err := h.analyzer.AnalyzePortfolio(r.Context(), factor.PortfolioRequest{
		PortfolioID:  mux.Vars(r)["portfolioId"],
		LookbackDays: lookback,
	})
	if err != nil {
		h.respondAnalysisError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type queueAnalysisRequest struct {
	SubjectType  string `json:"subjectType"`
	Symbol       string `json:"symbol"`
	PortfolioID  string `json:"portfolioId"`
	LookbackDays int    `json:"lookbackDays"`
}

// QueueAnalysis handles POST /factors/requests
func (h *Handler) QueueAnalysis(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		respondError(w, http.StatusServiceUnavailable, "Unavailable", "asynchronous analysis is not configured")
		return
	}

	var req queueAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, factor.KindInvalidRequest.String(), "invalid request body")
		return
	}

	event := &models.AnalysisRequestEvent{
		EventType:    models.EventAnalysisRequested,
		RequestID:    uuid.NewString(),
		SubjectType:  req.SubjectType,
		Symbol:       strings.TrimSpace(req.Symbol),
		PortfolioID:  strings.TrimSpace(req.PortfolioID),
		LookbackDays: req.LookbackDays,
		Timestamp:    time.Now().UTC(),
	}
	if err := h.validate.Struct(event); err != nil {
		respondError(w, http.StatusBadRequest, factor.KindInvalidRequest.String(), err.Error())
		return
	}

	if err := h.publisher.PublishAnalysisRequest(r.Context(), event); err != nil {
		h.logger.Error().Err(err).Str("request_id", event.RequestID).Msg("Failed to queue analysis")
		respondError(w, http.StatusInternalServerError, factor.KindInternal.String(), "failed to queue analysis")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"requestId": event.RequestID})
}

// GetStock handles GET /stocks/{symbol}
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	stock, err := h.store.GetStock(r.Context(), symbol)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stock)
}

type holdingRequest struct {
	Code         string          `json:"code" validate:"required,max=16"`
	Quantity     decimal.Decimal `json:"quantity"`
	PurchaseDate string          `json:"purchaseDate" validate:"omitempty,datetime=2006-01-02"`
}

type portfolioRequest struct {
	Name        string           `json:"name" validate:"required,max=255"`
	Description string           `json:"description" validate:"max=2000"`
	Holdings    []holdingRequest `json:"holdings" validate:"dive"`
}

type holdingsRequest struct {
	Holdings []holdingRequest `json:"holdings" validate:"dive"`
}

type portfolioResponse struct {
	*models.Portfolio
	Holdings []models.Holding `json:"holdings"`
}

// CreatePortfolio handles POST /portfolios
func (h *Handler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	holdings, ok := toHoldings(w, req.Holdings)
	if !ok {
		return
	}

	p := &models.Portfolio{Name: req.Name, Description: req.Description}
	if err := h.store.CreatePortfolio(r.Context(), p); err != nil {
		h.respondStoreError(w, err)
		return
	}
	if err := h.store.ReplaceHoldings(r.Context(), p.ID, holdings); err != nil {
		h.respondStoreError(w, err)
		return
	}

	h.respondPortfolio(w, r, http.StatusCreated, p.ID)
}

// GetPortfolio handles GET /portfolios/{portfolioId}
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	h.respondPortfolio(w, r, http.StatusOK, mux.Vars(r)["portfolioId"])
}

// ReplaceHoldings handles PUT /portfolios/{portfolioId}/holdings
func (h *Handler) ReplaceHoldings(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["portfolioId"]

	var req holdingsRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	holdings, ok := toHoldings(w, req.Holdings)
	if !ok {
		return
	}

	if _, err := h.store.GetPortfolio(r.Context(), id); err != nil {
		h.respondStoreError(w, err)
		return
	}
	if err := h.store.ReplaceHoldings(r.Context(), id, holdings); err != nil {
		h.respondStoreError(w, err)
		return
	}

	h.respondPortfolio(w, r, http.StatusOK, id)
}

// AddHolding handles POST /portfolios/{portfolioId}/holdings
func (h *Handler) AddHolding(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["portfolioId"]

	var req holdingRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	holdings, ok := toHoldings(w, []holdingRequest{req})
	if !ok {
		return
	}

	if _, err := h.store.GetPortfolio(r.Context(), id); err != nil {
		h.respondStoreError(w, err)
		return
	}
	holding := holdings[0]
	holding.PortfolioID = id
	if err := h.store.AddHolding(r.Context(), holding); err != nil {
		h.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, holding)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) lookbackDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("lookbackDays")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, factor.KindInvalidRequest.String(), "lookbackDays must be an integer")
		return 0, false
	}
	if err := h.validate.Struct(analysisQuery{LookbackDays: n}); err != nil {
		respondError(w, http.StatusBadRequest, factor.KindInvalidRequest.String(), "lookbackDays must be between 1 and 2520")
		return 0, false
	}
	return n, true
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, factor.KindInvalidRequest.String(), "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, factor.KindInvalidRequest.String(), err.Error())
		return false
	}
	return true
}

func (h *Handler) respondPortfolio(w http.ResponseWriter, r *http.Request, status int, id string) {
	p, err := h.store.GetPortfolio(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	holdings, err := h.store.GetHoldings(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	respondJSON(w, status, portfolioResponse{Portfolio: p, Holdings: holdings})
}

func (h *Handler) respondAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	kind := factor.KindOf(err)
	status := statusFor(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Factor analysis failed")
		message = "internal error"
	}
	respondError(w, status, kind.String(), message)
}

func (h *Handler) respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrNotFound) {
		respondError(w, http.StatusNotFound, factor.KindNotFound.String(), err.Error())
		return
	}
	h.logger.Error().Err(err).Msg("Store operation failed")
	respondError(w, http.StatusInternalServerError, factor.KindInternal.String(), "internal error")
}

// statusFor maps an analysis failure kind to its HTTP status
func statusFor(kind factor.Kind) int {
	switch kind {
	case factor.KindNotFound:
		return http.StatusNotFound
	case factor.KindInvalidRequest:
		return http.StatusBadRequest
	case factor.KindInsufficientData, factor.KindNoValidStocks, factor.KindZeroPortfolioValue:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func toHoldings(w http.ResponseWriter, reqs []holdingRequest) ([]*models.Holding, bool) {
	holdings := make([]*models.Holding, 0, len(reqs))
	for _, req := range reqs {
		if req.Quantity.IsNegative() {
			respondError(w, http.StatusBadRequest, factor.KindInvalidRequest.String(), "quantity must not be negative: "+req.Code)
			return nil, false
		}
		holding := &models.Holding{Code: strings.TrimSpace(req.Code), Quantity: req.Quantity}
		if req.PurchaseDate != "" {
			d, _ := time.Parse(models.DateFormat, req.PurchaseDate)
			holding.PurchaseDate = &d
		}
		holdings = append(holdings, holding)
	}
	return holdings, true
}

func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, errorResponse{Error: kind, Message: message})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
