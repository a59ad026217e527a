// internal/web/handler.go
package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xeipuuv/gojsonschema"

	"cancercare-web/internal/common/config"
	apperrors "cancercare-web/internal/common/errors"
	"cancercare-web/internal/common/logger"
	"cancercare-web/internal/common/observability"
	"cancercare-web/internal/notify"
	"cancercare-web/internal/prediction"
	"cancercare-web/internal/questionnaire"
	"cancercare-web/internal/upload"
)

var errNoNotifier = errors.New("notifier not configured")

// Relayer forwards an image to the classifier and returns its raw JSON.
type Relayer interface {
	Relay(ctx context.Context, img prediction.Image) ([]byte, error)
}

// Notifier delivers contact messages and appointment requests.
type Notifier interface {
	SendContact(ctx context.Context, msg notify.ContactMessage) error
	ScheduleAppointment(ctx context.Context, a notify.Appointment) (string, error)
}

// Deps are the collaborators the HTTP layer delegates to.
type Deps struct {
	Predictor     questionnaire.Predictor
	Classifier    upload.Classifier
	Relayer       Relayer
	ProgressStore upload.ProgressStore
	Notifier      Notifier
	Observability *observability.Observability
}

type Handler struct {
	cfg      *config.Config
	deps     Deps
	logger   logger.Logger
	errors   *apperrors.ErrorHandler
	pages    map[string]*template.Template
	schema   *gojsonschema.Schema
	apiProxy http.Handler
}

func NewHandler(cfg *config.Config, deps Deps, log logger.Logger) (*Handler, error) {
	if deps.Predictor == nil || deps.Classifier == nil || deps.Relayer == nil {
		return nil, errors.New("web: predictor, classifier and relayer are required")
	}
	if deps.ProgressStore == nil {
		deps.ProgressStore = upload.NewMemoryStore(config.GetDuration(cfg.Progress.TTL))
	}

	pages, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	schema, err := newQuestionnaireSchema()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		cfg:    cfg,
		deps:   deps,
		logger: log,
		errors: apperrors.NewErrorHandler(log),
		pages:  pages,
		schema: schema,
	}

	h.apiProxy, err = h.newAPIProxy(cfg.Backend.RiskURL)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Routes builds the router with all middleware applied.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(requestMetrics(h.deps.Observability))

	r.Get("/", h.Home)
	r.Post("/contact", h.Contact)
	r.Get("/role-selection", h.RoleSelection)
	r.Post("/role-selection", h.SelectRole)
	r.Get("/patient-dashboard", h.PatientDashboard)
	r.Get("/progress-tracking", h.ProgressTracking)
	r.Post("/progress-tracking/appointments", h.ScheduleAppointment)

	r.Get("/medical-profile", h.MedicalProfile)
	r.Post("/medical-profile", h.SubmitMedicalProfile)
	r.Post("/medical-profile/api", h.PredictRisk)

	r.Get("/upload-form", h.UploadForm)
	r.Post("/upload-form", h.SubmitUpload)
	r.Get("/upload-form/progress/{id}", h.UploadProgress)

	r.Post("/api-route", h.ProxyUpload)
	r.Handle("/api/*", h.apiProxy)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) maxUploadBytes() int64 {
	if h.cfg.Server.MaxUploadBytes > 0 {
		return h.cfg.Server.MaxUploadBytes
	}
	return 32 << 20
}
