// internal/web/proxy.go
package web

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	apperrors "cancercare-web/internal/common/errors"
	"cancercare-web/internal/common/metrics"
)

const (
	msgNoFile         = "No file provided"
	msgSomethingWrong = "Something went wrong"
	apiRewritePrefix  = "/api"
)

// ProxyUpload relays the "file" part of a multipart upload to the image
// classifier. Backend failures are logged with their classification and
// answered with a generic 500.
func (h *Handler) ProxyUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())
	if err := r.ParseMultipartForm(h.maxUploadBytes()); err != nil {
		h.proxyRespond(w, r, http.StatusBadRequest, msgNoFile, nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	img, err := readFormFile(r)
	if err != nil {
		h.proxyRespond(w, r, http.StatusBadRequest, msgNoFile, nil)
		return
	}

	body, err := h.deps.Relayer.Relay(r.Context(), img)
	if err != nil {
		h.proxyRespond(w, r, http.StatusInternalServerError, msgSomethingWrong, err)
		return
	}

	metrics.ProxyRequests.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) proxyRespond(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	metrics.ProxyRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	h.errors.WriteJSON(w, r, status, message, err)
}

// newAPIProxy forwards /api/* to the risk backend with the prefix removed.
func (h *Handler) newAPIProxy(rawURL string) (http.Handler, error) {
	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid risk backend url %q", rawURL)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			path := strings.TrimPrefix(pr.In.URL.Path, apiRewritePrefix)
			if path == "" {
				path = "/"
			}
			pr.Out.URL.Path = path
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			h.errors.WriteJSON(w, r, http.StatusBadGateway, msgSomethingWrong,
				apperrors.NewTransportError("risk model", err))
		},
	}, nil
}
