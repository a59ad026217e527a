package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cancercare-web/internal/common/config"
	"cancercare-web/internal/common/logger"
	"cancercare-web/internal/notify"
	"cancercare-web/internal/prediction"
	"cancercare-web/internal/questionnaire"
	"cancercare-web/internal/upload"
)

// fakeBackend stands in for both prediction services.
type fakeBackend struct {
	mu          sync.Mutex
	calls       map[string]int
	lastPath    string
	predictBody string
	predictCode int
	uploadBody  string
	uploadCode  int
	server      *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{
		calls:       make(map[string]int),
		predictBody: `{"prediction":"Low Risk"}`,
		predictCode: http.StatusOK,
		uploadBody:  `{"prediction":"Benign","probability":0.87}`,
		uploadCode:  http.StatusOK,
	}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.lastPath = r.URL.Path
		predictBody, predictCode := b.predictBody, b.predictCode
		uploadBody, uploadCode := b.uploadBody, b.uploadCode
		b.mu.Unlock()

		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/upload":
			w.WriteHeader(uploadCode)
			io.WriteString(w, uploadBody)
		default:
			w.WriteHeader(predictCode)
			io.WriteString(w, predictBody)
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

func (b *fakeBackend) setPredict(code int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.predictCode, b.predictBody = code, body
}

func (b *fakeBackend) setUpload(code int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploadCode, b.uploadBody = code, body
}

func (b *fakeBackend) path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPath
}

func (b *fakeBackend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

type fakeNotifier struct {
	contacts     []notify.ContactMessage
	appointments []notify.Appointment
	err          error
}

func (n *fakeNotifier) SendContact(ctx context.Context, msg notify.ContactMessage) error {
	n.contacts = append(n.contacts, msg)
	return n.err
}

func (n *fakeNotifier) ScheduleAppointment(ctx context.Context, a notify.Appointment) (string, error) {
	n.appointments = append(n.appointments, a)
	if n.err != nil {
		return "", n.err
	}
	return "Your appointment has been scheduled for " + a.Date + ".", nil
}

type testEnv struct {
	backend  *fakeBackend
	notifier *fakeNotifier
	store    *upload.MemoryStore
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := newFakeBackend(t)

	cfg := &config.Config{}
	cfg.Backend.RiskURL = backend.server.URL
	cfg.Backend.ImageURL = backend.server.URL
	cfg.Backend.Timeout = 2000
	cfg.Server.MaxUploadBytes = 1 << 20
	cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}

	log := logger.NewTestLogger(t)
	pcfg := prediction.NewConfig(cfg.Backend)
	images := prediction.NewImageClient(pcfg, log)
	store := upload.NewMemoryStore(time.Minute)
	notifier := &fakeNotifier{}

	h, err := NewHandler(cfg, Deps{
		Predictor:     prediction.NewRiskClient(pcfg, log),
		Classifier:    images,
		Relayer:       images,
		ProgressStore: store,
		Notifier:      notifier,
	}, log)
	require.NoError(t, err)

	return &testEnv{backend: backend, notifier: notifier, store: store, router: h.Routes()}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func fullQuestionnaire(value int) map[string]interface{} {
	body := map[string]interface{}{"name": "Ada"}
	for _, k := range prediction.SymptomKeys {
		body[k] = value
	}
	return body
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestPages(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/", "/role-selection", "/patient-dashboard", "/progress-tracking", "/medical-profile", "/upload-form"} {
		t.Run(path, func(t *testing.T) {
			rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
			assert.Contains(t, rec.Body.String(), "<title>CancerCare - Advanced Lung Cancer Detection</title>")
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestSelectRole(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		role     string
		code     int
		location string
	}{
		{"patient", http.StatusSeeOther, "/patient-dashboard"},
		{"clinician", http.StatusSeeOther, "/upload-form"},
		{"admin", http.StatusBadRequest, ""},
		{"", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			rec := env.do(formRequest(http.MethodPost, "/role-selection", url.Values{"role": {tt.role}}))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}
}

func TestProxyUpload_NoFile(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, "", "", "", nil, map[string]string{"note": "no file here"})
	req := httptest.NewRequest(http.MethodPost, "/api-route", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeError(t, rec))
	assert.Zero(t, env.backend.total(), "no outbound call")
}

func TestProxyUpload_NotMultipart(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api-route", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeError(t, rec))
	assert.Zero(t, env.backend.total())
}

func TestProxyUpload_PassesBackendJSONThrough(t *testing.T) {
	env := newTestEnv(t)
	env.backend.setUpload(http.StatusOK, `{"prediction":"Malignant","probability":0.93,"model":"v2"}`)

	body, contentType := multipartBody(t, "file", "scan.png", "image/png", pngHeader, nil)
	req := httptest.NewRequest(http.MethodPost, "/api-route", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prediction":"Malignant","probability":0.93,"model":"v2"}`, rec.Body.String())
	assert.Equal(t, 1, env.backend.count("/upload"))
}

func TestProxyUpload_BackendFailures(t *testing.T) {
	t.Run("backend error status", func(t *testing.T) {
		env := newTestEnv(t)
		env.backend.setUpload(http.StatusBadRequest, `{"error":"Invalid file type"}`)

		body, contentType := multipartBody(t, "file", "scan.png", "image/png", pngHeader, nil)
		req := httptest.NewRequest(http.MethodPost, "/api-route", body)
		req.Header.Set("Content-Type", contentType)
		rec := env.do(req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Something went wrong", decodeError(t, rec))
		assert.NotContains(t, rec.Body.String(), "Invalid file type")
	})

	t.Run("backend unreachable", func(t *testing.T) {
		env := newTestEnv(t)
		env.backend.server.Close()

		body, contentType := multipartBody(t, "file", "scan.png", "image/png", pngHeader, nil)
		req := httptest.NewRequest(http.MethodPost, "/api-route", body)
		req.Header.Set("Content-Type", contentType)
		rec := env.do(req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Something went wrong", decodeError(t, rec))
	})
}

func TestAPIRewrite_StripsPrefix(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prediction":"Low Risk"}`, rec.Body.String())
	assert.Equal(t, 1, env.backend.count("/predict"))
	assert.Equal(t, "/predict", env.backend.path())
}

func TestAPIRewrite_BackendDown(t *testing.T) {
	env := newTestEnv(t)
	env.backend.server.Close()

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Something went wrong", decodeError(t, rec))
}

func TestPredictRisk_JSON(t *testing.T) {
	env := newTestEnv(t)

	payload, _ := json.Marshal(fullQuestionnaire(1))
	rec := env.do(httptest.NewRequest(http.MethodPost, "/medical-profile/api", bytes.NewReader(payload)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prediction":"Low Risk"}`, rec.Body.String())
	assert.Equal(t, 1, env.backend.count("/predict"))
}

func TestPredictRisk_SchemaRejection(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"missing key", func(m map[string]interface{}) { delete(m, "COUGHING") }},
		{"sentinel value", func(m map[string]interface{}) { m["FATIGUE"] = -1 }},
		{"text answer", func(m map[string]interface{}) { m["ALLERGY"] = "yes" }},
		{"unknown field", func(m map[string]interface{}) { m["SMOKING"] = 1 }},
		{"numeric name", func(m map[string]interface{}) { m["name"] = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			body := fullQuestionnaire(0)
			tt.mutate(body)
			payload, _ := json.Marshal(body)

			rec := env.do(httptest.NewRequest(http.MethodPost, "/medical-profile/api", bytes.NewReader(payload)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
			assert.Zero(t, env.backend.total())
		})
	}

	t.Run("not json", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(httptest.NewRequest(http.MethodPost, "/medical-profile/api", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, env.backend.total())
	})
}

func TestPredictRisk_BackendFailure(t *testing.T) {
	env := newTestEnv(t)
	env.backend.setPredict(http.StatusInternalServerError, `{"error":"model not loaded"}`)

	payload, _ := json.Marshal(fullQuestionnaire(0))
	rec := env.do(httptest.NewRequest(http.MethodPost, "/medical-profile/api", bytes.NewReader(payload)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, questionnaire.MsgPredictionFailed, decodeError(t, rec))
}

func TestSubmitMedicalProfile(t *testing.T) {
	t.Run("incomplete", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(formRequest(http.MethodPost, "/medical-profile", url.Values{"COUGHING": {"yes"}, "name": {"Ada"}}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), questionnaire.MsgIncomplete)
		assert.Contains(t, rec.Body.String(), "8% complete")
		assert.Zero(t, env.backend.total())
	})

	t.Run("complete", func(t *testing.T) {
		env := newTestEnv(t)
		values := url.Values{}
		for _, k := range prediction.SymptomKeys {
			values.Set(k, "no")
		}
		rec := env.do(formRequest(http.MethodPost, "/medical-profile", values))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Low Risk")
		assert.Contains(t, rec.Body.String(), "100% complete")
		assert.NotContains(t, rec.Body.String(), questionnaire.MsgPredictionFailed)
	})

	t.Run("backend failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.backend.setPredict(http.StatusBadGateway, `{"error":"upstream"}`)
		values := url.Values{}
		for _, k := range prediction.SymptomKeys {
			values.Set(k, "yes")
		}
		rec := env.do(formRequest(http.MethodPost, "/medical-profile", values))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), questionnaire.MsgPredictionFailed)
	})
}

func TestSubmitUpload(t *testing.T) {
	t.Run("non-image is rejected without preview", func(t *testing.T) {
		env := newTestEnv(t)
		body, contentType := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hello"), nil)
		req := httptest.NewRequest(http.MethodPost, "/upload-form", body)
		req.Header.Set("Content-Type", contentType)
		rec := env.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid file type")
		assert.NotContains(t, rec.Body.String(), "data:")
		assert.Zero(t, env.backend.total())
	})

	t.Run("no file", func(t *testing.T) {
		env := newTestEnv(t)
		body, contentType := multipartBody(t, "", "", "", nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/upload-form", body)
		req.Header.Set("Content-Type", contentType)
		rec := env.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "No file selected")
		assert.Zero(t, env.backend.total())
	})

	t.Run("image is classified and progress published", func(t *testing.T) {
		env := newTestEnv(t)
		uploadID := "6f1c2a8e-3f4b-4c1d-9a2e-5b7c8d9e0f12"
		body, contentType := multipartBody(t, "file", "scan.png", "image/png", pngHeader,
			map[string]string{"uploadId": uploadID})
		req := httptest.NewRequest(http.MethodPost, "/upload-form", body)
		req.Header.Set("Content-Type", contentType)
		rec := env.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Prediction: Benign")
		assert.Contains(t, rec.Body.String(), "87.00%")
		assert.Contains(t, rec.Body.String(), "data:image/png;base64,")

		rec = env.do(httptest.NewRequest(http.MethodGet, "/upload-form/progress/"+uploadID, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"uploadId":%q,"progress":0,"state":"complete"}`, uploadID), rec.Body.String())
	})

	t.Run("backend failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.backend.setUpload(http.StatusInternalServerError, `{"error":"boom"}`)
		body, contentType := multipartBody(t, "file", "scan.png", "image/png", pngHeader, nil)
		req := httptest.NewRequest(http.MethodPost, "/upload-form", body)
		req.Header.Set("Content-Type", contentType)
		rec := env.do(req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "Analysis failed")
	})
}

func TestUploadProgress_Unknown(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/upload-form/progress/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))
}

func TestContactAndAppointments(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(formRequest(http.MethodPost, "/contact", url.Values{
		"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"Hello"},
	}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Thank you for your message")
	require.Len(t, env.notifier.contacts, 1)
	assert.Equal(t, "Ada", env.notifier.contacts[0].Name)

	rec = env.do(formRequest(http.MethodPost, "/progress-tracking/appointments", url.Values{
		"date": {"2026-11-02"}, "reason": {"follow-up"},
	}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your appointment has been scheduled for 2026-11-02.")
	require.Len(t, env.notifier.appointments, 1)
}

func TestContact_NotifierFailure(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = fmt.Errorf("ses unavailable")

	rec := env.do(formRequest(http.MethodPost, "/contact", url.Values{
		"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"Hello"},
	}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "We could not send your message")
	assert.NotContains(t, rec.Body.String(), "ses unavailable")
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api-route", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := env.do(req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
