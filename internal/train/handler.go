package train

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-sod/knn/internal/dataset"
	"github.com/go-sod/knn/internal/dispatcher"
	"github.com/go-sod/knn/internal/geom"
	"github.com/go-sod/knn/internal/httputil"
	"github.com/go-sod/knn/internal/logging"
	"github.com/go-sod/knn/internal/sample/model"
)

type request struct {
	ModelID string `json:"model"`
	Data    []struct {
		Vec       []float64 `json:"vector"`
		Label     string    `json:"label"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"data"`
}

type response struct {
	ModelID  string   `json:"model"`
	Samples  int      `json:"samples"`
	Features int      `json:"features"`
	Labels   []string `json:"labels"`
}

func NewHandler(cfg *Config, trainer dispatcher.Trainer) (http.Handler, error) {
	return &handler{
		cfg:     cfg,
		trainer: trainer,
	}, nil
}

type handler struct {
	trainer dispatcher.Trainer
	cfg     *Config
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()
	logger := logging.FromContext(ctx)

	if !httputil.AcceptJSONPost(ctx, w, r) {
		return
	}

	defer r.Body.Close()

	if !httputil.DecodeBody(ctx, w, r, &req) {
		return
	}
	if req.ModelID == "" {
		httputil.RespBadRequest(ctx, w, "model is required")
		return
	}

	// keep the request order when samples come without a timestamp
	base := time.Now().UTC()
	samples := make([]model.Sample, len(req.Data))
	for i, dat := range req.Data {
		createdAt := dat.CreatedAt
		if createdAt.IsZero() {
			createdAt = base.Add(time.Duration(i))
		}
		samples[i] = model.NewSample(req.ModelID, geom.NewPoint(dat.Vec), dat.Label, createdAt)
	}

	summary, err := h.trainer.Train(ctx, req.ModelID, samples)
	switch {
	case err == nil:
	case errors.Is(err, dispatcher.ErrNoSamples),
		errors.Is(err, dataset.ErrNoFeatures),
		errors.Is(err, dataset.ErrRaggedSamples),
		errors.Is(err, dataset.ErrEmptyStore),
		errors.Is(err, dataset.ErrLabelsMismatch):
		httputil.RespBadRequest(ctx, w, "invalid training set, %v", err)
		return
	case errors.Is(err, dispatcher.ErrClosed):
		httputil.RespUnavailable(ctx, w, "%v", err)
		return
	default:
		httputil.RespInternalError(ctx, w, "train processing error, %v", err)
		return
	}

	logger.Infof("Trained model %s on %d samples", summary.ModelID, summary.Samples)
	httputil.RespJSON(ctx, w, response{
		ModelID:  summary.ModelID,
		Samples:  summary.Samples,
		Features: summary.Features,
		Labels:   summary.Labels,
	})
}
