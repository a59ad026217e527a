// internal/web/templates.go
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

const siteTitle = "CancerCare - Advanced Lung Cancer Detection"

// Page template names.
const (
	pageIndex            = "index"
	pageRoleSelection    = "role_selection"
	pagePatientDashboard = "patient_dashboard"
	pageProgressTracking = "progress_tracking"
	pageMedicalProfile   = "medical_profile"
	pageUploadForm       = "upload_form"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"percent": func(p float64) string {
		return fmt.Sprintf("%.2f%%", p*100)
	},
}

// page is the data every template receives.
type page struct {
	Title  string
	Notice string
	Error  string
	Data   interface{}
}

func loadTemplates() (map[string]*template.Template, error) {
	names := []string{
		pageIndex,
		pageRoleSelection,
		pagePatientDashboard,
		pageProgressTracking,
		pageMedicalProfile,
		pageUploadForm,
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// render executes the named page into a buffer so a template error never
// produces a half-written response.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	t, ok := h.pages[name]
	if !ok {
		h.errors.Log(r, fmt.Errorf("unknown page %q", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if p.Title == "" {
		p.Title = siteTitle
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		h.errors.Log(r, fmt.Errorf("render %s: %w", name, err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
