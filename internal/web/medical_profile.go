// internal/web/medical_profile.go
package web

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "cancercare-web/internal/common/errors"
	"cancercare-web/internal/prediction"
	"cancercare-web/internal/questionnaire"
)

type questionRow struct {
	Key  string
	Text string
	Yes  bool
	No   bool
}

type medicalProfileData struct {
	Completion int
	Questions  []questionRow
	Text       map[string]string
	Prediction string
}

func profileData(v questionnaire.View) medicalProfileData {
	rows := make([]questionRow, 0, len(questionnaire.Questions))
	for _, q := range questionnaire.Questions {
		a := v.Answers[q.Key]
		rows = append(rows, questionRow{
			Key:  q.Key,
			Text: q.Text,
			Yes:  a == questionnaire.Yes,
			No:   a == questionnaire.No,
		})
	}
	return medicalProfileData{
		Completion: int(math.Round(v.Completion)),
		Questions:  rows,
		Text:       v.Text,
		Prediction: v.Prediction,
	}
}

func (h *Handler) MedicalProfile(w http.ResponseWriter, r *http.Request) {
	flow := questionnaire.NewFlow(h.deps.Predictor, h.logger)
	h.render(w, r, http.StatusOK, pageMedicalProfile, page{Data: profileData(flow.View())})
}

// SubmitMedicalProfile handles the HTML form. Unanswered radios are simply
// absent from the form and stay unanswered.
func (h *Handler) SubmitMedicalProfile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	_ = r.ParseForm()

	flow := questionnaire.NewFlow(h.deps.Predictor, h.logger)
	for _, q := range questionnaire.Questions {
		if v := r.PostForm.Get(q.Key); v != "" {
			_ = flow.Set(q.Key, v)
		}
	}
	for _, field := range prediction.TextFields {
		_ = flow.Set(field, r.PostForm.Get(field))
	}

	_, err := flow.Submit(r.Context())
	view := flow.View()
	switch {
	case err == nil:
		h.render(w, r, http.StatusOK, pageMedicalProfile, page{Data: profileData(view)})
	case apperrors.IsCode(err, apperrors.ErrCodeValidationFailed):
		h.render(w, r, http.StatusBadRequest, pageMedicalProfile, page{Error: view.Error, Data: profileData(view)})
	default:
		h.render(w, r, http.StatusBadGateway, pageMedicalProfile, page{Error: view.Error, Data: profileData(view)})
	}
}

// PredictRisk is the JSON variant: the body is a flat PredictionRequest.
func (h *Handler) PredictRisk(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err != nil {
		apperrors.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	problems, err := h.validateQuestionnaire(body)
	if err != nil {
		apperrors.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(problems) > 0 {
		apperrors.WriteJSONError(w, http.StatusBadRequest,
			questionnaire.MsgIncomplete+" "+strings.Join(problems, "; "))
		return
	}

	var req prediction.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apperrors.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	flow := questionnaire.NewFlow(h.deps.Predictor, h.logger)
	for key, v := range req.Answers {
		answer := "no"
		if v == int(questionnaire.Yes) {
			answer = "yes"
		}
		_ = flow.Set(key, answer)
	}
	text := map[string]string{
		prediction.FieldName:           req.Name,
		prediction.FieldEmail:          req.Email,
		prediction.FieldDOB:            req.DOB,
		prediction.FieldGender:         req.Gender,
		prediction.FieldMedicalHistory: req.MedicalHistory,
	}
	for field, v := range text {
		_ = flow.Set(field, v)
	}

	label, err := flow.Submit(r.Context())
	if err != nil {
		h.errors.WriteJSON(w, r, http.StatusInternalServerError, questionnaire.MsgPredictionFailed, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"prediction": label})
}

// validateQuestionnaire returns one description per schema violation. A
// non-nil error means the body is not JSON at all.
func (h *Handler) validateQuestionnaire(body []byte) ([]string, error) {
	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return problems, nil
}

func newQuestionnaireSchema() (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{}, len(prediction.SymptomKeys)+len(prediction.TextFields))
	for _, key := range prediction.SymptomKeys {
		properties[key] = map[string]interface{}{
			"type": "integer",
			"enum": []int{int(questionnaire.No), int(questionnaire.Yes)},
		}
	}
	for _, field := range prediction.TextFields {
		properties[field] = map[string]interface{}{"type": "string"}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(map[string]interface{}{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           properties,
		"required":             prediction.SymptomKeys,
		"additionalProperties": false,
	}))
	if err != nil {
		return nil, fmt.Errorf("compile questionnaire schema: %w", err)
	}
	return schema, nil
}
