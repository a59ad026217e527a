// internal/questionnaire/models.go
package questionnaire

import "cancercare-web/internal/prediction"

// Answer is the tri-state value of one symptom question.
type Answer int

const (
	Unanswered Answer = -1
	No         Answer = 0
	Yes        Answer = 1
)

// Question pairs a symptom key with the text shown to the patient.
type Question struct {
	Key  string
	Text string
}

var Questions = []Question{
	{"YELLOW_FINGERS", "Do you have yellow fingers?"},
	{"ANXIETY", "Do you experience anxiety?"},
	{"PEER_PRESSURE", "Do you feel peer pressure?"},
	{"CHRONIC_DISEASE", "Do you have any chronic diseases?"},
	{"FATIGUE", "Do you often feel fatigue?"},
	{"ALLERGY", "Do you have any allergies?"},
	{"WHEEZING", "Do you experience wheezing?"},
	{"ALCOHOL_CONSUMING", "Do you consume alcohol?"},
	{"COUGHING", "Do you have a persistent cough?"},
	{"DIFFICULTY_SWALLOWING", "Do you have difficulty swallowing?"},
	{"CHEST_PAIN", "Do you experience chest pain?"},
	{"ANXYELFIN", "Do you have anxiety and yellow fingers at the same time?"},
	{"SWALLOWING_DIFFICULTY", "Do you have swallowing difficulty?"},
}

// State of a Flow.
type State int

const (
	Editing State = iota
	Submitting
	Predicted
	Failed
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case Predicted:
		return "predicted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// View is a point-in-time copy of a Flow for rendering.
type View struct {
	Answers    map[string]Answer
	Text       map[string]string
	Completion float64
	CanSubmit  bool
	State      State
	Prediction string
	Error      string
}

// Request converts fully answered values into the wire request. It does not
// check completeness.
func Request(answers map[string]Answer, text map[string]string) prediction.PredictionRequest {
	req := prediction.PredictionRequest{
		Answers:        make(map[string]int, len(answers)),
		Name:           text[prediction.FieldName],
		Email:          text[prediction.FieldEmail],
		DOB:            text[prediction.FieldDOB],
		Gender:         text[prediction.FieldGender],
		MedicalHistory: text[prediction.FieldMedicalHistory],
	}
	for k, v := range answers {
		req.Answers[k] = int(v)
	}
	return req
}
