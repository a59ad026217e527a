// cmd/cancercare-web/cli.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cancercare-web/internal/common/config"
	"cancercare-web/internal/common/logger"
	"cancercare-web/internal/prediction"
	"cancercare-web/internal/questionnaire"
	"cancercare-web/internal/upload"
)

var (
	answersPath string
	imagePath   string
)

var predictRiskCmd = &cobra.Command{
	Use:   "predict-risk",
	Short: "Submit a questionnaire from a YAML file",
	Long: `Read symptom answers and profile fields from a YAML file and print the
risk model's prediction.

  name: Jane Doe
  email: jane@example.com
  answers:
    YELLOW_FINGERS: yes
    ANXIETY: no
    ...

Answers accept yes/no, true/false or 1/0. Every symptom must be answered.`,
	Args: cobra.NoArgs,
	RunE: runPredictRisk,
}

var classifyImageCmd = &cobra.Command{
	Use:   "classify-image",
	Short: "Upload a scan to the image classifier",
	Long:  `Upload an image file to the classifier, printing progress, then print the label and probability.`,
	Args:  cobra.NoArgs,
	RunE:  runClassifyImage,
}

func init() {
	predictRiskCmd.Flags().StringVar(&answersPath, "answers", "", "YAML file with questionnaire answers")
	_ = predictRiskCmd.MarkFlagRequired("answers")

	classifyImageCmd.Flags().StringVar(&imagePath, "file", "", "image to classify")
	_ = classifyImageCmd.MarkFlagRequired("file")
}

// answersFile is the on-disk questionnaire.
type answersFile struct {
	Name           string            `yaml:"name"`
	Email          string            `yaml:"email"`
	DOB            string            `yaml:"dob"`
	Gender         string            `yaml:"gender"`
	MedicalHistory string            `yaml:"medicalHistory"`
	Answers        map[string]string `yaml:"answers"`
}

func (a answersFile) text() map[string]string {
	return map[string]string{
		prediction.FieldName:           a.Name,
		prediction.FieldEmail:          a.Email,
		prediction.FieldDOB:            a.DOB,
		prediction.FieldGender:         a.Gender,
		prediction.FieldMedicalHistory: a.MedicalHistory,
	}
}

func loadAnswers(r io.Reader) (answersFile, error) {
	var a answersFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&a); err != nil {
		return answersFile{}, fmt.Errorf("parse answers: %w", err)
	}
	return a, nil
}

// normalizeAnswer maps the accepted spellings onto "yes" or "no".
func normalizeAnswer(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1":
		return "yes", nil
	case "no", "n", "false", "0":
		return "no", nil
	default:
		return "", fmt.Errorf("answer %q is not yes or no", v)
	}
}

// fillQuestionnaire copies a into flow. Unknown symptom keys are rejected.
func fillQuestionnaire(flow *questionnaire.Flow, a answersFile) error {
	keys := make([]string, 0, len(a.Answers))
	for k := range a.Answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !prediction.IsSymptomKey(key) {
			return fmt.Errorf("%w: %s", questionnaire.ErrUnknownField, key)
		}
		v, err := normalizeAnswer(a.Answers[key])
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := flow.Set(key, v); err != nil {
			return err
		}
	}
	for field, v := range a.text() {
		if err := flow.Set(field, v); err != nil {
			return err
		}
	}
	return nil
}

func runPredictRisk(cmd *cobra.Command, args []string) error {
	cfg, log, err := cliSetup()
	if err != nil {
		return err
	}
	defer log.Sync()

	f, err := os.Open(answersPath)
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := loadAnswers(f)
	if err != nil {
		return err
	}

	flow := questionnaire.NewFlow(prediction.NewRiskClient(prediction.NewConfig(cfg.Backend), log), log)
	if err := fillQuestionnaire(flow, a); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Questionnaire %.0f%% complete\n", flow.Completion())

	label, err := flow.Submit(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s: %w", flow.View().Error, err)
	}
	fmt.Fprintf(out, "Prediction: %s\n", label)
	return nil
}

func runClassifyImage(cmd *cobra.Command, args []string) error {
	cfg, log, err := cliSetup()
	if err != nil {
		return err
	}
	defer log.Sync()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := &progressPrinter{w: cmd.ErrOrStderr()}
	flow := upload.NewFlow("", prediction.NewImageClient(prediction.NewConfig(cfg.Backend), log), printer, log)

	img := prediction.Image{
		Filename:    filepath.Base(imagePath),
		ContentType: upload.DetectContentType("", data),
		Data:        data,
	}
	if err := flow.Select(cmd.Context(), img); err != nil {
		return fmt.Errorf("%s: %w", flow.View().Notice, err)
	}

	result, err := flow.Upload(cmd.Context())
	printer.done()
	if err != nil {
		return fmt.Errorf("%s: %w", flow.View().Notice, err)
	}

	fmt.Fprintf(out, "Prediction: %s\n", result.Label)
	fmt.Fprintf(out, "Probability: %.2f%%\n", result.Probability*100)
	return nil
}

// cliSetup loads config and a logger that keeps stdout free for results.
func cliSetup() (*config.Config, logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, "stderr"), nil
}

// progressPrinter is a ProgressStore that draws upload progress on a
// terminal line instead of storing it.
type progressPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last upload.Progress
	seen bool
}

func (p *progressPrinter) Put(_ context.Context, pr upload.Progress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pr.State == upload.Uploading.String() {
		fmt.Fprintf(p.w, "\rUploading... %3d%%", pr.Progress)
		p.seen = true
	}
	p.last = pr
	return nil
}

func (p *progressPrinter) Get(_ context.Context, uploadID string) (upload.Progress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last.UploadID != uploadID {
		return upload.Progress{}, upload.ErrProgressNotFound
	}
	return p.last, nil
}

func (p *progressPrinter) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen {
		fmt.Fprintln(p.w)
	}
}
