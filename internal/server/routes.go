package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"diet-coach/internal/dietplan"
	"diet-coach/internal/extraction"
	"diet-coach/internal/metrics"

	"go.uber.org/zap"
)

// uploadField is the multipart field carrying the plan screenshots.
const uploadField = "diet-images"

func (s *Server) registerRoutes(mux *http.ServeMux) {
	auth := s.cfg.Auth
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/meal/new", auth.Require(s.handleNewMeal))
	mux.HandleFunc("GET /api/v1/meal/history/{clientId}", auth.Require(s.handleHistory))
	mux.HandleFunc("POST /api/v1/meal/history/{clientId}", auth.Require(s.handleHistory))
	mux.HandleFunc("GET /api/v1/meal/plans/{id}", auth.Require(s.handleGetPlan))
	mux.HandleFunc("GET /api/v1/meal/plans/{id}/table", auth.Require(s.handlePlanTable))
	mux.HandleFunc("GET /api/v1/metrics/usage", auth.Require(s.handleUsage))
}

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status string            `json:"status"`
	System metrics.SysHealth `json:"system"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		System: metrics.GetSysHealth(s.cfg.DataDir, s.cfg.Uploads.Dir()),
	})
}

// PlanResponse is a stored plan as returned by the API.
type PlanResponse struct {
	ID        int64                    `json:"id"`
	ClientID  string                   `json:"clientId"`
	CreatedBy string                   `json:"createdBy"`
	CreatedAt time.Time                `json:"createdAt"`
	Meals     *dietplan.WeeklyMealPlan `json:"meals"`
}

func toPlanResponse(p dietplan.StoredPlan) (PlanResponse, error) {
	plan, err := p.Plan()
	if err != nil {
		return PlanResponse{}, err
	}
	return PlanResponse{
		ID:        p.ID,
		ClientID:  p.ClientID,
		CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt,
		Meals:     plan,
	}, nil
}

func (s *Server) handleNewMeal(w http.ResponseWriter, r *http.Request) {
	maxRequest := s.cfg.MaxUploadBytes*int64(s.cfg.MaxUploadImages) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxRequest)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeEnvelope(w, http.StatusRequestEntityTooLarge, nil, "Upload too large.", err.Error())
			return
		}
		writeEnvelope(w, http.StatusBadRequest, nil, "No files uploaded.", "Please upload the images to extract the data from.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		writeExtractionError(w, extraction.ErrNoImagesProvided)
		return
	}

	clientID := strings.TrimSpace(r.FormValue("clientId"))
	if clientID == "" {
		writeEnvelope(w, http.StatusBadRequest, nil, "Please select client", "Client need to be selected")
		return
	}

	if len(files) > s.cfg.MaxUploadImages {
		writeEnvelope(w, http.StatusBadRequest, nil, "Too many files.",
			"Upload at most "+strconv.Itoa(s.cfg.MaxUploadImages)+" images.")
		return
	}
	for _, fh := range files {
		if !extraction.IsAllowedMIMEType(fh.Header.Get("Content-Type")) {
			writeEnvelope(w, http.StatusUnsupportedMediaType, nil, "Unsupported file type.",
				fh.Filename+" is not a supported image.")
			return
		}
	}

	images := make([]extraction.Image, 0, len(files))
	for _, fh := range files {
		img, err := s.saveUpload(fh)
		if err != nil {
			if discardErr := s.cfg.Uploads.Discard(images); discardErr != nil {
				s.logger.Warn("failed to discard uploads", zap.Error(discardErr))
			}
			s.logger.Error("failed to store upload", zap.String("file", fh.Filename), zap.Error(err))
			writeExtractionError(w, err)
			return
		}
		images = append(images, img)
	}

	ctx := r.Context()
	if s.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ExtractTimeout)
		defer cancel()
	}

	// The extractor owns and removes the saved images from here on.
	res, err := s.cfg.Extractor.Extract(ctx, extraction.Request{Images: images, ClientID: clientID})
	s.recordUsage(context.WithoutCancel(r.Context()), res)
	if err != nil {
		s.logger.Warn("diet plan extraction failed", zap.String("client_id", clientID), zap.Error(err))
		writeExtractionError(w, err)
		return
	}

	actor, _ := ActorFrom(r.Context())
	stored, err := s.cfg.Plans.Save(r.Context(), clientID, actor, res.Plan)
	if err != nil {
		s.logger.Error("failed to save meal plan", zap.String("client_id", clientID), zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, nil, "Server error", "Server error")
		return
	}

	writeEnvelope(w, http.StatusOK, PlanResponse{
		ID:        stored.ID,
		ClientID:  stored.ClientID,
		CreatedBy: stored.CreatedBy,
		CreatedAt: stored.CreatedAt,
		Meals:     res.Plan,
	}, "Meal plan extracted", "")
}

func (s *Server) saveUpload(fh *multipart.FileHeader) (extraction.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return extraction.Image{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return s.cfg.Uploads.Save(f, fh.Header.Get("Content-Type"))
}

func (s *Server) recordUsage(ctx context.Context, res extraction.Result) {
	if s.cfg.Usage == nil {
		return
	}
	if err := s.cfg.Usage.RecordMeta(ctx, res.Meta); err != nil {
		s.logger.Warn("failed to record usage", zap.Error(err))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientId")
	stored, err := s.cfg.Plans.ListByClient(r.Context(), clientID)
	if err != nil {
		s.logger.Error("failed to list meal plans", zap.String("client_id", clientID), zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, nil, "Server error", "Server error")
		return
	}

	history := make([]PlanResponse, 0, len(stored))
	for _, p := range stored {
		resp, err := toPlanResponse(p)
		if err != nil {
			s.logger.Error("failed to decode stored plan", zap.Int64("id", p.ID), zap.Error(err))
			writeEnvelope(w, http.StatusInternalServerError, nil, "Server error", "Server error")
			return
		}
		history = append(history, resp)
	}
	writeEnvelope(w, http.StatusOK, history, "History retrieved", "")
}

// lookupPlan resolves the {id} path value. It writes the error response
// itself and returns nil when the plan cannot be served.
func (s *Server) lookupPlan(w http.ResponseWriter, r *http.Request) *dietplan.StoredPlan {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeEnvelope(w, http.StatusBadRequest, nil, "Invalid plan id", "Plan id must be a positive number")
		return nil
	}
	stored, err := s.cfg.Plans.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get meal plan", zap.Int64("id", id), zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, nil, "Server error", "Server error")
		return nil
	}
	if stored == nil {
		writeEnvelope(w, http.StatusNotFound, nil, "Meal plan not found", "No meal plan with id "+strconv.FormatInt(id, 10))
		return nil
	}
	return stored
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	stored := s.lookupPlan(w, r)
	if stored == nil {
		return
	}
	resp, err := toPlanResponse(*stored)
	if err != nil {
		s.logger.Error("failed to decode stored plan", zap.Int64("id", stored.ID), zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, nil, "Server error", "Server error")
		return
	}
	writeEnvelope(w, http.StatusOK, resp, "Meal plan retrieved", "")
}

func (s *Server) handlePlanTable(w http.ResponseWriter, r *http.Request) {
	stored := s.lookupPlan(w, r)
	if stored == nil {
		return
	}
	plan, err := stored.Plan()
	if err != nil {
		s.logger.Error("failed to decode stored plan", zap.Int64("id", stored.ID), zap.Error(err))
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderPlanTable(w, *stored, plan); err != nil {
		s.logger.Error("failed to render meal plan table", zap.Int64("id", stored.ID), zap.Error(err))
	}
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Usage == nil {
		writeEnvelope(w, http.StatusNotFound, nil, "Usage metrics disabled", "No usage store configured")
		return
	}
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeEnvelope(w, http.StatusBadRequest, nil, "Invalid days", "days must be a positive number")
			return
		}
		days = n
	}
	usage, err := s.cfg.Usage.GetDailyUsage(r.Context(), days)
	if err != nil {
		s.logger.Error("failed to read usage", zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, nil, "Server error", "Server error")
		return
	}
	if usage == nil {
		usage = []metrics.DailyUsage{}
	}
	writeEnvelope(w, http.StatusOK, usage, "Usage retrieved", "")
}
