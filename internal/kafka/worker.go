package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"
	"github.com/segmentio/kafka-go"

	"github.com/trogers1052/factor-analysis-service/internal/factor"
	"github.com/trogers1052/factor-analysis-service/internal/models"
)

// Analyzer runs factor analyses
type Analyzer interface {
	AnalyzeStock(ctx context.Context, req factor.StockRequest) (*models.FactorAnalysisResult, error)
	AnalyzePortfolio(ctx context.Context, req factor.PortfolioRequest) (*models.PortfolioFactorAnalysisResult, error)
}

// ResultPublisher publishes analysis outcomes
type ResultPublisher interface {
	PublishAnalysisResult(ctx context.Context, event *models.AnalysisResultEvent) error
}

// Worker consumes analysis requests and publishes one result event per request
type Worker struct {
	reader   messageReader
	analyzer Analyzer
	results  ResultPublisher
	validate *validator.Validate
	logger   *log.Logger
	now      func() time.Time
}

// NewWorker creates a worker reading requests from topic
func NewWorker(brokers []string, topic, groupID string, analyzer Analyzer, results ResultPublisher) *Worker {
	return newWorker(newReader(brokers, topic, groupID), analyzer, results)
}

func newWorker(reader messageReader, analyzer Analyzer, results ResultPublisher) *Worker {
	return &Worker{
		reader:   reader,
		analyzer: analyzer,
		results:  results,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   &log.DefaultLogger,
		now:      time.Now,
	}
}

// WithLogger sets the logger
func (w *Worker) WithLogger(logger *log.Logger) *Worker {
	w.logger = logger
	return w
}

// Start consumes requests until ctx is cancelled
func (w *Worker) Start(ctx context.Context) error {
	return consume(ctx, w.reader, w.logger, w.processMessage)
}

// Close closes the request reader
func (w *Worker) Close() error {
	return w.reader.Close()
}

func (w *Worker) processMessage(ctx context.Context, msg kafka.Message) error {
	var req models.AnalysisRequestEvent
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("failed to unmarshal analysis request: %w", err)
	}

	if req.EventType != models.EventAnalysisRequested {
		w.logger.Debug().Str("event_type", req.EventType).Msg("Ignoring event type")
		return nil
	}

	result := &models.AnalysisResultEvent{
		RequestID:   req.RequestID,
		SubjectType: req.SubjectType,
		Subject:     req.Subject(),
	}

	if err := w.validate.Struct(req); err != nil {
		w.fail(result, &factor.Error{Kind: factor.KindInvalidRequest, Detail: err.Error()})
		return w.publish(ctx, result)
	}

	start := w.now()
	var err error
	switch req.SubjectType {
	case models.SubjectStock:
		result.StockResult, err = w.analyzer.AnalyzeStock(ctx, factor.StockRequest{
			Symbol:       req.Symbol,
			LookbackDays: req.LookbackDays,
		})
	case models.SubjectPortfolio:
		result.PortfolioResult, err = w.analyzer.AnalyzePortfolio(ctx, factor.PortfolioRequest{
			PortfolioID:  req.PortfolioID,
			LookbackDays: req.LookbackDays,
		})
	}

	// shutting down mid-analysis is not a failure of the request
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}

	if err != nil {
		w.fail(result, err)
	} else {
		result.EventType = models.EventAnalysisCompleted
	}

	w.logger.Info().
		Str("request_id", req.RequestID).
		Str("subject_type", req.SubjectType).
		Str("subject", result.Subject).
		Str("outcome", result.EventType).
		Dur("elapsed", w.now().Sub(start)).
		Msg("Processed analysis request")

	return w.publish(ctx, result)
}

func (w *Worker) fail(result *models.AnalysisResultEvent, err error) {
	kind := factor.KindOf(err)
	result.EventType = models.EventAnalysisFailed
	result.StockResult = nil
	result.PortfolioResult = nil
	result.ErrorKind = kind.String()
	result.ErrorMessage = err.Error()
	if kind == factor.KindInternal {
		w.logger.Error().Err(err).Str("request_id", result.RequestID).Msg("Analysis failed")
		result.ErrorMessage = "internal error"
	}
}

func (w *Worker) publish(ctx context.Context, result *models.AnalysisResultEvent) error {
	result.Timestamp = w.now().UTC()
	if err := w.results.PublishAnalysisResult(ctx, result); err != nil {
		return fmt.Errorf("failed to publish result for request %s: %w", result.RequestID, err)
	}
	return nil
}
