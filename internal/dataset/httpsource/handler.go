package httpsource

import (
	"net/http"
	"strconv"

	"github.com/banshee-data/slamview/internal/dataset"
	"github.com/banshee-data/slamview/internal/httputil"
	"github.com/banshee-data/slamview/internal/monitoring"
)

var logf = monitoring.Tagged("httpsource")

// Handler serves a Source and, if non-nil, a ResultSource.
type Handler struct {
	src     dataset.Source
	results dataset.ResultSource
	mux     *http.ServeMux
}

// NewHandler returns a handler for the dataset API.
func NewHandler(src dataset.Source, results dataset.ResultSource) *Handler {
	h := &Handler{src: src, results: results, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /api/datasets/{id}/frames/{n}/points", h.handlePoints)
	h.mux.HandleFunc("GET /api/datasets/{id}/trajectory", h.handleTrajectory)
	h.mux.HandleFunc("GET /api/datasets/{id}/frames/{n}/images/{sensor}", h.handleImage)
	h.mux.HandleFunc("GET /api/results/{id}", h.handleResult)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func parseFrame(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	n, err := strconv.ParseUint(r.PathValue("n"), 10, 32)
	if err != nil {
		httputil.BadRequest(w, "invalid frame index")
		return 0, false
	}
	return uint32(n), true
}

func writeSourceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status != http.StatusNotFound {
		logf("%v", err)
	}
	httputil.WriteJSONError(w, status, err.Error())
}

func (h *Handler) handlePoints(w http.ResponseWriter, r *http.Request) {
	frame, ok := parseFrame(w, r)
	if !ok {
		return
	}
	resolution := 0
	if s := r.URL.Query().Get("resolution"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			httputil.BadRequest(w, "invalid resolution")
			return
		}
		resolution = v
	}
	fp, err := h.src.FramePoints(r.Context(), r.PathValue("id"), frame, resolution)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	httputil.WriteJSONOK(w, fp)
}

func (h *Handler) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	tr, err := h.src.Trajectory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeSourceError(w, err)
		return
	}
	httputil.WriteJSONOK(w, tr)
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	frame, ok := parseFrame(w, r)
	if !ok {
		return
	}
	img, err := h.src.FrameImage(r.Context(), r.PathValue("id"), frame, r.PathValue("sensor"))
	if err != nil {
		writeSourceError(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(img))
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Write(img)
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		httputil.NotFound(w, "results are not served here")
		return
	}
	res, err := h.results.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		writeSourceError(w, err)
		return
	}
	httputil.WriteJSONOK(w, res)
}
