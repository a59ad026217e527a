// internal/upload/flow.go
package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	apperrors "cancercare-web/internal/common/errors"
	"cancercare-web/internal/common/logger"
	"cancercare-web/internal/common/metrics"
	"cancercare-web/internal/prediction"
)

// Notices shown to the user.
const (
	MsgInvalidFileType  = "Invalid file type: please select an image file."
	MsgNoFileSelected   = "No file selected: please select a lung image before uploading."
	MsgAnalysisFailed   = "Analysis failed: there was an error processing your lung image. Please try again or contact support."
	MsgAnalysisComplete = "Analysis complete."
)

var (
	ErrInvalidFileType = errors.New("file is not an image")
	ErrNoFileSelected  = errors.New("no file selected")
	ErrUploadInFlight  = errors.New("upload already in flight")
	// ErrSuperseded is returned by an Upload whose file was replaced while it
	// was running. Its outcome is discarded.
	ErrSuperseded = errors.New("upload superseded by a newer selection")
)

// Classifier is satisfied by *prediction.ImageClient.
type Classifier interface {
	Classify(ctx context.Context, img prediction.Image, progress prediction.ProgressFunc) (*prediction.PredictionResult, error)
}

type State int

const (
	Idle State = iota
	FileSelected
	Uploading
	ResultReady
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FileSelected:
		return "selected"
	case Uploading:
		return "uploading"
	case ResultReady:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// View is a point-in-time copy of a Flow for rendering.
type View struct {
	UploadID  string
	State     State
	FileName  string
	Preview   string
	Progress  int
	Uploading bool
	Result    *prediction.PredictionResult
	Notice    string
}

// Flow is a single-file upload. Selecting a new file while an upload runs
// cancels that upload and discards its outcome.
type Flow struct {
	id         string
	classifier Classifier
	store      ProgressStore
	logger     logger.Logger

	mu       sync.Mutex
	state    State
	file     *prediction.Image
	preview  string
	progress int
	result   *prediction.PredictionResult
	notice   string
	attempt  uint64
	cancel   context.CancelFunc
}

// NewFlow creates a flow publishing progress under uploadID; an empty ID
// gets a fresh UUID. store may be nil.
func NewFlow(uploadID string, classifier Classifier, store ProgressStore, log logger.Logger) *Flow {
	if uploadID == "" {
		uploadID = uuid.NewString()
	}
	return &Flow{
		id:         uploadID,
		classifier: classifier,
		store:      store,
		logger:     log.WithFields(map[string]interface{}{"uploadId": uploadID}),
		state:      Idle,
	}
}

func (f *Flow) ID() string {
	return f.id
}

// DetectContentType returns the declared type, or the sniffed type when the
// declared one is empty or generic.
func DetectContentType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared == "" || strings.HasPrefix(declared, "application/octet-stream") {
		return mimetype.Detect(data).String()
	}
	return declared
}

// Select replaces the current file. Non-image files are rejected and leave
// the flow unchanged.
func (f *Flow) Select(ctx context.Context, file prediction.Image) error {
	contentType := DetectContentType(file.ContentType, file.Data)

	f.mu.Lock()
	if !strings.HasPrefix(contentType, "image/") {
		f.notice = MsgInvalidFileType
		f.mu.Unlock()
		f.logger.Info("rejected non-image file", map[string]interface{}{
			"fileName":    file.Filename,
			"contentType": contentType,
		})
		return apperrors.NewValidationError(MsgInvalidFileType, ErrInvalidFileType)
	}

	if f.state == Uploading && f.cancel != nil {
		f.cancel()
		f.cancel = nil
		f.logger.Info("upload restarted with a new file", map[string]interface{}{"attempt": f.attempt})
	}
	f.attempt++

	file.ContentType = contentType
	f.file = &file
	f.preview = "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(file.Data)
	f.state = FileSelected
	f.progress = 0
	f.result = nil
	f.notice = ""
	snapshot := f.snapshot()
	f.mu.Unlock()

	f.publish(ctx, snapshot)
	return nil
}

// Upload classifies the selected file. It blocks until the classifier
// answers or ctx ends.
func (f *Flow) Upload(ctx context.Context) (*prediction.PredictionResult, error) {
	f.mu.Lock()
	if f.file == nil {
		f.notice = MsgNoFileSelected
		f.mu.Unlock()
		return nil, apperrors.NewValidationError(MsgNoFileSelected, ErrNoFileSelected)
	}
	if f.state == Uploading {
		f.mu.Unlock()
		return nil, ErrUploadInFlight
	}

	f.attempt++
	attempt := f.attempt
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.state = Uploading
	f.progress = 0
	f.result = nil
	f.notice = ""
	img := *f.file
	snapshot := f.snapshot()
	f.mu.Unlock()
	defer cancel()

	metrics.UploadsInFlight.Inc()
	defer metrics.UploadsInFlight.Dec()

	f.publish(ctx, snapshot)

	result, err := f.classifier.Classify(ctx, img, func(sent, total int64) {
		f.onProgress(ctx, attempt, sent, total)
	})

	f.mu.Lock()
	if attempt != f.attempt {
		f.mu.Unlock()
		return nil, ErrSuperseded
	}
	f.cancel = nil
	f.progress = 0
	if err != nil {
		f.state = Failed
		f.notice = MsgAnalysisFailed
	} else {
		f.state = ResultReady
		f.result = result
		f.notice = MsgAnalysisComplete
	}
	snapshot = f.snapshot()
	f.mu.Unlock()

	f.publish(context.WithoutCancel(ctx), snapshot)

	if err != nil {
		f.logger.Error("image upload failed", map[string]interface{}{
			"error":         err.Error(),
			"errorCategory": apperrors.Classify(err),
			"fileName":      img.Filename,
		})
		return nil, err
	}
	return result, nil
}

func (f *Flow) onProgress(ctx context.Context, attempt uint64, sent, total int64) {
	f.mu.Lock()
	if attempt != f.attempt || f.state != Uploading {
		f.mu.Unlock()
		return
	}
	pct := Percent(sent, total)
	if pct <= f.progress {
		f.mu.Unlock()
		return
	}
	f.progress = pct
	snapshot := f.snapshot()
	f.mu.Unlock()

	f.publish(ctx, snapshot)
}

// Percent is round(sent/total*100) clamped to [0,100].
func Percent(sent, total int64) int {
	if total <= 0 || sent <= 0 {
		return 0
	}
	pct := int(math.Round(float64(sent) / float64(total) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

func (f *Flow) snapshot() Progress {
	return Progress{UploadID: f.id, Progress: f.progress, State: f.state.String()}
}

func (f *Flow) publish(ctx context.Context, p Progress) {
	if f.store == nil {
		return
	}
	if err := f.store.Put(ctx, p); err != nil {
		f.logger.Warn("failed to publish upload progress", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{
		UploadID:  f.id,
		State:     f.state,
		Preview:   f.preview,
		Progress:  f.progress,
		Uploading: f.state == Uploading,
		Notice:    f.notice,
	}
	if f.file != nil {
		v.FileName = f.file.Filename
	}
	if f.result != nil {
		r := *f.result
		v.Result = &r
	}
	return v
}
