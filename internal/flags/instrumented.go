package flags

import (
	"context"
	"time"

	"github.com/tphakala/flagmigrate/internal/errors"
)

// Recorder receives per-call metrics. observability/metrics.FlagServiceMetrics implements it.
type Recorder interface {
	RecordOperation(operation, status string)
	RecordDuration(operation string, seconds float64)
	RecordError(operation, errorType string)
}

const (
	opCreate     = "create"
	opUpdate     = "update"
	opAppendNote = "append_note"

	statusSuccess        = "success"
	statusError          = "error"
	statusAlreadyFlagged = "already_flagged"
)

type instrumentedService struct {
	next     Service
	recorder Recorder
}

// Instrument wraps svc so every call is counted and timed. A nil recorder returns svc unchanged.
func Instrument(svc Service, recorder Recorder) Service {
	if recorder == nil {
		return svc
	}
	return &instrumentedService{next: svc, recorder: recorder}
}

func (s *instrumentedService) Create(ctx context.Context, targetType, targetID, reporter, reason string, datetime int64) (*Flag, error) {
	start := time.Now()
	flag, err := s.next.Create(ctx, targetType, targetID, reporter, reason, datetime)
	s.observe(opCreate, start, err)
	return flag, err
}

func (s *instrumentedService) Update(ctx context.Context, flagID int64, actor string, patch Patch) error {
	start := time.Now()
	err := s.next.Update(ctx, flagID, actor, patch)
	s.observe(opUpdate, start, err)
	return err
}

func (s *instrumentedService) AppendNote(ctx context.Context, flagID int64, actor, content string, datetime int64) error {
	start := time.Now()
	err := s.next.AppendNote(ctx, flagID, actor, content, datetime)
	s.observe(opAppendNote, start, err)
	return err
}

func (s *instrumentedService) observe(operation string, start time.Time, err error) {
	s.recorder.RecordDuration(operation, time.Since(start).Seconds())

	switch {
	case err == nil:
		s.recorder.RecordOperation(operation, statusSuccess)
	case errors.Is(err, ErrAlreadyFlagged):
		s.recorder.RecordOperation(operation, statusAlreadyFlagged)
	default:
		s.recorder.RecordOperation(operation, statusError)
		s.recorder.RecordError(operation, errorType(err))
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrFlagNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "backend"
	}
}
