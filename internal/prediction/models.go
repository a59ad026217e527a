// internal/prediction/models.go
package prediction

import (
	"encoding/json"
	"fmt"
)

// SymptomKeys are the fixed questionnaire keys in display order.
var SymptomKeys = []string{
	"YELLOW_FINGERS",
	"ANXIETY",
	"PEER_PRESSURE",
	"CHRONIC_DISEASE",
	"FATIGUE",
	"ALLERGY",
	"WHEEZING",
	"ALCOHOL_CONSUMING",
	"COUGHING",
	"DIFFICULTY_SWALLOWING",
	"CHEST_PAIN",
	"ANXYELFIN",
	"SWALLOWING_DIFFICULTY",
}

// Free-text profile field names as they appear on the wire.
const (
	FieldName           = "name"
	FieldEmail          = "email"
	FieldDOB            = "dob"
	FieldGender         = "gender"
	FieldMedicalHistory = "medicalHistory"
)

var TextFields = []string{FieldName, FieldEmail, FieldDOB, FieldGender, FieldMedicalHistory}

// IsSymptomKey reports whether key is one of SymptomKeys.
func IsSymptomKey(key string) bool {
	for _, k := range SymptomKeys {
		if k == key {
			return true
		}
	}
	return false
}

// IsTextField reports whether field is one of TextFields.
func IsTextField(field string) bool {
	for _, f := range TextFields {
		if f == field {
			return true
		}
	}
	return false
}

// PredictionRequest is sent to the risk model as one flat JSON object:
// symptom keys map to 0 or 1, profile fields to strings.
type PredictionRequest struct {
	Answers        map[string]int
	Name           string
	Email          string
	DOB            string
	Gender         string
	MedicalHistory string
}

func (r PredictionRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Answers)+len(TextFields))
	for k, v := range r.Answers {
		out[k] = v
	}
	for field, value := range r.textValues() {
		if value != "" {
			out[field] = value
		}
	}
	return json.Marshal(out)
}

func (r *PredictionRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = PredictionRequest{}
	for key, value := range raw {
		switch key {
		case FieldName:
			if err := json.Unmarshal(value, &r.Name); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
		case FieldEmail:
			if err := json.Unmarshal(value, &r.Email); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
		case FieldDOB:
			if err := json.Unmarshal(value, &r.DOB); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
		case FieldGender:
			if err := json.Unmarshal(value, &r.Gender); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
		case FieldMedicalHistory:
			if err := json.Unmarshal(value, &r.MedicalHistory); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
		default:
			var n int
			if err := json.Unmarshal(value, &n); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			if r.Answers == nil {
				r.Answers = make(map[string]int)
			}
			r.Answers[key] = n
		}
	}
	return nil
}

func (r PredictionRequest) textValues() map[string]string {
	return map[string]string{
		FieldName:           r.Name,
		FieldEmail:          r.Email,
		FieldDOB:            r.DOB,
		FieldGender:         r.Gender,
		FieldMedicalHistory: r.MedicalHistory,
	}
}

// PredictionResult is the image classifier's answer.
type PredictionResult struct {
	Label       string  `json:"prediction"`
	Probability float64 `json:"probability"`
}

// Image is a single file to classify.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ProgressFunc receives byte counts as a request body is streamed.
type ProgressFunc func(sent, total int64)
