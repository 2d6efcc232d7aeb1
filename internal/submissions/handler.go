package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/telemetry/tracing"
	"github.com/2beens/fitanalysis/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=submissions

type service interface {
	Submit(ctx context.Context, n NewSubmission) (*Submission, error)
	Get(ctx context.Context, id string) (*View, error)
	Progress(ctx context.Context, id string) (*Progress, error)
	Retry(ctx context.Context, id string) (*Submission, error)
	Cancel(ctx context.Context, id string) error
	AthleteResults(ctx context.Context, athleteID string, page, size int) (*ResultsPage, error)
	FlaggedResults(ctx context.Context, page, size int) (*ResultsPage, error)
	Stats(ctx context.Context) (*ResultStats, error)
	Tests() []analysis.TestDescriptor
}

const maxPageSize = 100

type Handler struct {
	service service
}

func NewHandler(service service) *Handler {
	return &Handler{
		service: service,
	}
}

// writeError maps service errors onto status codes; analysis errors keep
// their kind in the response body.
func writeError(w http.ResponseWriter, err error, fallbackMsg string) {
	if aErr, ok := analysis.AsError(err); ok {
		status := http.StatusUnprocessableEntity
		if aErr.Kind.Retryable() {
			status = http.StatusServiceUnavailable
		}
		pkg.WriteJSONError(w, status, aErr.Error(), string(aErr.Kind))
		return
	}

	switch {
	case errors.Is(err, ErrInvalidSubmission):
		pkg.WriteJSONError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, analysis.ErrTestNotFound):
		pkg.WriteJSONError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, ErrSubmissionNotFound):
		pkg.WriteJSONError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrNotRetryable),
		errors.Is(err, ErrAlreadyFinished),
		errors.Is(err, ErrNotCancellable):
		pkg.WriteJSONError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, ErrQueueFull):
		w.Header().Set("Retry-After", "30")
		pkg.WriteJSONError(w, http.StatusServiceUnavailable, err.Error(), "")
	default:
		pkg.WriteJSONError(w, http.StatusInternalServerError, fallbackMsg, "")
	}
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.submit")
	defer span.End()

	if r.Header.Get("Content-Type") != pkg.ContentType.JSON {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var newSubmission NewSubmission
	if err := json.NewDecoder(r.Body).Decode(&newSubmission); err != nil {
		log.Errorf("new submission, unmarshal json params: %s", err)
		http.Error(w, "invalid submission", http.StatusBadRequest)
		return
	}

	submission, err := h.service.Submit(ctx, newSubmission)
	if err != nil {
		log.Errorf("new submission [%s/%s]: %s", newSubmission.AthleteID, newSubmission.TestID, err)
		writeError(w, err, "submit failed")
		return
	}

	w.Header().Set("Location", "/submissions/"+submission.ID)
	pkg.WriteJSON(w, http.StatusAccepted, submission)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.get")
	defer span.End()

	id := mux.Vars(r)["id"]
	view, err := h.service.Get(ctx, id)
	if err != nil {
		log.Tracef("get submission [%s]: %s", id, err)
		writeError(w, err, "get submission failed")
		return
	}
	pkg.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.progress")
	defer span.End()

	id := mux.Vars(r)["id"]
	progress, err := h.service.Progress(ctx, id)
	if err != nil {
		log.Tracef("get progress [%s]: %s", id, err)
		writeError(w, err, "get progress failed")
		return
	}
	pkg.WriteJSON(w, http.StatusOK, progress)
}

func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.retry")
	defer span.End()

	id := mux.Vars(r)["id"]
	submission, err := h.service.Retry(ctx, id)
	if err != nil {
		log.Errorf("retry submission [%s]: %s", id, err)
		writeError(w, err, "retry failed")
		return
	}
	pkg.WriteJSON(w, http.StatusAccepted, submission)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.cancel")
	defer span.End()

	id := mux.Vars(r)["id"]
	if err := h.service.Cancel(ctx, id); err != nil {
		log.Errorf("cancel submission [%s]: %s", id, err)
		writeError(w, err, "cancel failed")
		return
	}
	pkg.WriteResponse(w, pkg.ContentType.Text, "cancellation requested", http.StatusAccepted)
}

// pageParams reads the page and size path params, writing the 400 response
// itself when they are invalid.
func pageParams(w http.ResponseWriter, r *http.Request) (page, size int, ok bool) {
	vars := mux.Vars(r)
	page, err := strconv.Atoi(vars["page"])
	if err != nil {
		log.Tracef("handle %s, from <page> param: %s", r.URL.Path, err)
		http.Error(w, "parse form error, parameter <page>", http.StatusBadRequest)
		return 0, 0, false
	}
	size, err = strconv.Atoi(vars["size"])
	if err != nil {
		log.Tracef("handle %s, from <size> param: %s", r.URL.Path, err)
		http.Error(w, "parse form error, parameter <size>", http.StatusBadRequest)
		return 0, 0, false
	}
	if page < 1 {
		http.Error(w, "invalid page (has to be non-zero value)", http.StatusBadRequest)
		return 0, 0, false
	}
	if size < 1 || size > maxPageSize {
		http.Error(w, "invalid size (has to be in [1, 100])", http.StatusBadRequest)
		return 0, 0, false
	}
	return page, size, true
}

func (h *Handler) HandleAthleteResults(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.athleteresults")
	defer span.End()

	page, size, ok := pageParams(w, r)
	if !ok {
		return
	}

	athleteID := mux.Vars(r)["id"]
	resultsPage, err := h.service.AthleteResults(ctx, athleteID, page, size)
	if err != nil {
		log.Errorf("athlete results [%s]: %s", athleteID, err)
		http.Error(w, "failed to get results", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSON(w, http.StatusOK, resultsPage)
}

func (h *Handler) HandleFlaggedResults(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.flaggedresults")
	defer span.End()

	page, size, ok := pageParams(w, r)
	if !ok {
		return
	}

	resultsPage, err := h.service.FlaggedResults(ctx, page, size)
	if err != nil {
		log.Errorf("flagged results: %s", err)
		http.Error(w, "failed to get results", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSON(w, http.StatusOK, resultsPage)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.stats")
	defer span.End()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		log.Errorf("result stats: %s", err)
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleTests(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSON(w, http.StatusOK, h.service.Tests())
}
