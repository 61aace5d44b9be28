package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/factor-analysis-service/internal/factor"
	"github.com/trogers1052/factor-analysis-service/internal/models"
)

type fakeAnalyzer struct {
	mu            sync.Mutex
	stockReqs     []factor.StockRequest
	portfolioReqs []factor.PortfolioRequest
	err           error
}

func (a *fakeAnalyzer) AnalyzeStock(_ context.Context, req factor.StockRequest) (*models.FactorAnalysisResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stockReqs = append(a.stockReqs, req)
	if a.err != nil {
		return nil, a.err
	}
	return &models.FactorAnalysisResult{StockCode: req.Symbol, MarketBeta: 1.1}, nil
}

func (a *fakeAnalyzer) AnalyzePortfolio(_ context.Context, req factor.PortfolioRequest) (*models.PortfolioFactorAnalysisResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.portfolioReqs = append(a.portfolioReqs, req)
	if a.err != nil {
		return nil, a.err
	}
	return &models.PortfolioFactorAnalysisResult{PortfolioID: req.PortfolioID, MarketBeta: 0.9}, nil
}

type fakeResults struct {
	mu     sync.Mutex
	events []*models.AnalysisResultEvent
	err    error
	called chan struct{}
}

func (r *fakeResults) PublishAnalysisResult(_ context.Context, event *models.AnalysisResultEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	if r.called != nil {
		select {
		case r.called <- struct{}{}:
		default:
		}
	}
	return nil
}

func (r *fakeResults) Events() []*models.AnalysisResultEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AnalysisResultEvent(nil), r.events...)
}

var fixedNow = time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC)

func newTestWorker(analyzer Analyzer, results ResultPublisher) *Worker {
	w := newWorker(newMockReader("factor-analysis-requests", 1), analyzer, results).WithLogger(quietLogger)
	w.now = func() time.Time { return fixedNow }
	return w
}

func requestMessage(t *testing.T, req models.AnalysisRequestEvent) kafka.Message {
	t.Helper()
	if req.EventType == "" {
		req.EventType = models.EventAnalysisRequested
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(req.Subject()), Value: b}
}

func TestWorker_StockRequestCompleted(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	results := &fakeResults{}
	w := newTestWorker(analyzer, results)

	msg := requestMessage(t, models.AnalysisRequestEvent{
		RequestID:    "req-1",
		SubjectType:  models.SubjectStock,
		Symbol:       "7203",
		LookbackDays: 120,
	})
	require.NoError(t, w.processMessage(context.Background(), msg))

	require.Len(t, analyzer.stockReqs, 1)
	assert.Equal(t, factor.StockRequest{Symbol: "7203", LookbackDays: 120}, analyzer.stockReqs[0])

	events := results.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, models.EventAnalysisCompleted, ev.EventType)
	assert.Equal(t, "req-1", ev.RequestID)
	assert.Equal(t, "7203", ev.Subject)
	require.NotNil(t, ev.StockResult)
	assert.Equal(t, 1.1, ev.StockResult.MarketBeta)
	assert.Nil(t, ev.PortfolioResult)
	assert.Empty(t, ev.ErrorKind)
	assert.Equal(t, fixedNow, ev.Timestamp)
}

func TestWorker_PortfolioRequestCompleted(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	results := &fakeResults{}
	w := newTestWorker(analyzer, results)

	msg := requestMessage(t, models.AnalysisRequestEvent{
		RequestID:   "req-2",
		SubjectType: models.SubjectPortfolio,
		PortfolioID: "5f0c4a57-4d59-4a7e-9d0b-0d6a1c0b2e11",
	})
	require.NoError(t, w.processMessage(context.Background(), msg))

	require.Len(t, analyzer.portfolioReqs, 1)
	events := results.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventAnalysisCompleted, events[0].EventType)
	require.NotNil(t, events[0].PortfolioResult)
	assert.Equal(t, "5f0c4a57-4d59-4a7e-9d0b-0d6a1c0b2e11", events[0].Subject)
}

func TestWorker_AnalysisFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{err: &factor.Error{Kind: factor.KindInsufficientData, Stage: "market regression", Detail: "5 aligned returns"}}
	results := &fakeResults{}
	w := newTestWorker(analyzer, results)

	msg := requestMessage(t, models.AnalysisRequestEvent{RequestID: "req-3", SubjectType: models.SubjectStock, Symbol: "7203"})
	require.NoError(t, w.processMessage(context.Background(), msg))

	events := results.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventAnalysisFailed, events[0].EventType)
	assert.Equal(t, "InsufficientData", events[0].ErrorKind)
	assert.Contains(t, events[0].ErrorMessage, "5 aligned returns")
	assert.Nil(t, events[0].StockResult)
}

func TestWorker_InternalFailureHidesDetails(t *testing.T) {
	cause := errors.New(`pq: password authentication failed for user "factors"`)
	analyzer := &fakeAnalyzer{err: &factor.Error{Kind: factor.KindInternal, Stage: "fetch prices", Err: cause}}
	results := &fakeResults{}
	w := newTestWorker(analyzer, results)

	msg := requestMessage(t, models.AnalysisRequestEvent{RequestID: "req-7", SubjectType: models.SubjectStock, Symbol: "7203"})
	require.NoError(t, w.processMessage(context.Background(), msg))

	events := results.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventAnalysisFailed, events[0].EventType)
	assert.Equal(t, "InternalError", events[0].ErrorKind)
	assert.Equal(t, "internal error", events[0].ErrorMessage)
	assert.NotContains(t, events[0].ErrorMessage, "password")
}

func TestWorker_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  models.AnalysisRequestEvent
	}{
		{"unknown subject type", models.AnalysisRequestEvent{RequestID: "r", SubjectType: "bond", Symbol: "7203"}},
		{"stock without symbol", models.AnalysisRequestEvent{RequestID: "r", SubjectType: models.SubjectStock}},
		{"portfolio without id", models.AnalysisRequestEvent{RequestID: "r", SubjectType: models.SubjectPortfolio}},
		{"negative lookback", models.AnalysisRequestEvent{RequestID: "r", SubjectType: models.SubjectStock, Symbol: "7203", LookbackDays: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &fakeAnalyzer{}
			results := &fakeResults{}
			w := newTestWorker(analyzer, results)

			require.NoError(t, w.processMessage(context.Background(), requestMessage(t, tt.req)))

			assert.Empty(t, analyzer.stockReqs)
			assert.Empty(t, analyzer.portfolioReqs)
			events := results.Events()
			require.Len(t, events, 1)
			assert.Equal(t, models.EventAnalysisFailed, events[0].EventType)
			assert.Equal(t, "InvalidRequest", events[0].ErrorKind)
		})
	}
}

func TestWorker_IgnoresOtherEvents(t *testing.T) {
	results := &fakeResults{}
	w := newTestWorker(&fakeAnalyzer{}, results)

	msg := requestMessage(t, models.AnalysisRequestEvent{EventType: models.EventAnalysisCompleted, RequestID: "r"})
	require.NoError(t, w.processMessage(context.Background(), msg))
	assert.Empty(t, results.Events())
}

func TestWorker_MalformedPayload(t *testing.T) {
	results := &fakeResults{}
	w := newTestWorker(&fakeAnalyzer{}, results)

	err := w.processMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	require.Error(t, err)
	assert.Empty(t, results.Events())
}

func TestWorker_PublishFailure(t *testing.T) {
	w := newTestWorker(&fakeAnalyzer{}, &fakeResults{err: errors.New("broker down")})

	msg := requestMessage(t, models.AnalysisRequestEvent{RequestID: "req-4", SubjectType: models.SubjectStock, Symbol: "7203"})
	err := w.processMessage(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "req-4")
}

func TestWorker_CancelledAnalysisNotReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := &fakeResults{}
	analyzer := &fakeAnalyzer{err: &factor.Error{Kind: factor.KindInternal, Err: context.Canceled}}
	w := newTestWorker(analyzer, results)

	msg := requestMessage(t, models.AnalysisRequestEvent{RequestID: "req-5", SubjectType: models.SubjectStock, Symbol: "7203"})
	err := w.processMessage(ctx, msg)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results.Events())
}

func TestWorker_StartProcessesUntilCancelled(t *testing.T) {
	reader := newMockReader("factor-analysis-requests", 1)
	results := &fakeResults{called: make(chan struct{}, 1)}
	w := newWorker(reader, &fakeAnalyzer{}, results).WithLogger(quietLogger)

	reader.msgs <- requestMessage(t, models.AnalysisRequestEvent{RequestID: "req-6", SubjectType: models.SubjectStock, Symbol: "6758"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	select {
	case <-results.called:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker to stop")
	}

	assert.Equal(t, 1, reader.CloseCalls())
	require.Len(t, results.Events(), 1)
	assert.Equal(t, "req-6", results.Events()[0].RequestID)
}
