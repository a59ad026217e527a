// internal/questionnaire/flow.go
package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	apperrors "cancercare-web/internal/common/errors"
	"cancercare-web/internal/common/logger"
	"cancercare-web/internal/prediction"
)

// Messages shown to the patient.
const (
	MsgIncomplete       = "Please answer all questions before submitting."
	MsgPredictionFailed = "Failed to make prediction. Please try again."
)

var (
	ErrUnknownField       = errors.New("unknown questionnaire field")
	ErrIncomplete         = errors.New("questionnaire incomplete")
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// Predictor is satisfied by *prediction.RiskClient.
type Predictor interface {
	Predict(ctx context.Context, req prediction.PredictionRequest) (string, error)
}

// Flow holds one patient's questionnaire and its submission state. It is
// safe for concurrent use; at most one submission runs at a time.
type Flow struct {
	predictor Predictor
	logger    logger.Logger

	mu         sync.Mutex
	answers    map[string]Answer
	text       map[string]string
	state      State
	prediction string
	errMsg     string
}

func NewFlow(predictor Predictor, log logger.Logger) *Flow {
	answers := make(map[string]Answer, len(Questions))
	for _, q := range Questions {
		answers[q.Key] = Unanswered
	}
	return &Flow{
		predictor: predictor,
		logger:    log,
		answers:   answers,
		text:      make(map[string]string, len(prediction.TextFields)),
		state:     Editing,
	}
}

// Set updates one field. Symptom keys take "yes" as Yes and anything else as
// No; profile fields store the raw string.
func (f *Flow) Set(field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.answers[field]; ok {
		if strings.EqualFold(strings.TrimSpace(value), "yes") {
			f.answers[field] = Yes
		} else {
			f.answers[field] = No
		}
		return nil
	}
	if prediction.IsTextField(field) {
		f.text[field] = value
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, field)
}

func (f *Flow) Answer(key string) Answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.answers[key]; ok {
		return a
	}
	return Unanswered
}

// Completion is the percentage of symptom questions answered.
func (f *Flow) Completion() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completion()
}

func (f *Flow) completion() float64 {
	answered := 0
	for _, a := range f.answers {
		if a != Unanswered {
			answered++
		}
	}
	return float64(answered) / float64(len(Questions)) * 100
}

func (f *Flow) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmit()
}

func (f *Flow) canSubmit() bool {
	return f.state != Submitting && f.completion() == 100
}

// Submit sends the questionnaire to the predictor. Incomplete answers are
// rejected without a network call.
func (f *Flow) Submit(ctx context.Context) (string, error) {
	f.mu.Lock()
	if f.state == Submitting {
		f.mu.Unlock()
		return "", ErrSubmissionInFlight
	}
	if f.completion() < 100 {
		f.errMsg = MsgIncomplete
		f.mu.Unlock()
		return "", apperrors.NewValidationError(MsgIncomplete, ErrIncomplete)
	}
	f.state = Submitting
	req := Request(f.answers, f.text)
	f.mu.Unlock()

	label, err := f.predictor.Predict(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = Failed
		f.prediction = ""
		f.errMsg = MsgPredictionFailed
		f.logger.Warn("questionnaire submission failed", map[string]interface{}{
			"error":         err.Error(),
			"errorCategory": apperrors.Classify(err),
		})
		return "", err
	}

	f.state = Predicted
	f.prediction = label
	f.errMsg = ""
	return label, nil
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	answers := make(map[string]Answer, len(f.answers))
	for k, v := range f.answers {
		answers[k] = v
	}
	text := make(map[string]string, len(f.text))
	for k, v := range f.text {
		text[k] = v
	}
	return View{
		Answers:    answers,
		Text:       text,
		Completion: math.Round(f.completion()),
		CanSubmit:  f.canSubmit(),
		State:      f.state,
		Prediction: f.prediction,
		Error:      f.errMsg,
	}
}
