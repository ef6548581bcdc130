package providers

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"patentflow/internal/models"
)

// CallRecorder persists one audited model call.
type CallRecorder interface {
	InsertLLMCall(ctx context.Context, rec models.LLMCall) error
}

// Audited records every Generate call of the wrapped provider. Recorder
// failures are logged and never fail the call.
type Audited struct {
	inner    LLMProvider
	recorder CallRecorder
	runID    string
	logger   *zap.Logger
}

func NewAudited(inner LLMProvider, recorder CallRecorder, runID string, logger *zap.Logger) LLMProvider {
	if recorder == nil {
		return inner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Audited{inner: inner, recorder: recorder, runID: runID, logger: logger}
}

func (a *Audited) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	start := time.Now()
	resp, info, err := a.inner.Generate(ctx, req)
	rec := models.LLMCall{
		CallID:       uuid.NewString(),
		RunID:        a.runID,
		Operation:    req.Operation,
		ProviderName: info.Name,
		Model:        info.Model,
		Status:       "ok",
		PromptChars:  utf8.RuneCountInString(req.Prompt),
		OutputChars:  utf8.RuneCountInString(resp.Text),
		Latency:      time.Since(start),
	}
	if err != nil {
		rec.Status = "error"
		rec.ErrorType = string(ClassifyError(err))
	}
	if recErr := a.recorder.InsertLLMCall(context.WithoutCancel(ctx), rec); recErr != nil {
		a.logger.Warn("record llm call", zap.String("operation", req.Operation), zap.Error(recErr))
	}
	return resp, info, err
}
