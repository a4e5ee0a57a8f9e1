package predict

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-sod/knn/internal/dispatcher"
	"github.com/go-sod/knn/internal/httputil"
	"github.com/go-sod/knn/internal/knn"
	"github.com/go-sod/knn/internal/logging"
)

type request struct {
	ModelID string `json:"model"`
	Data    []struct {
		Vec   []float64   `json:"vector"`
		Extra interface{} `json:"extra"`
	} `json:"data"`
}

type item struct {
	Vec   []float64   `json:"vector"`
	Label string      `json:"label"`
	Extra interface{} `json:"extra"`
}

type response struct {
	ModelID string `json:"model"`
	Data    []item `json:"data"`
}

func NewHandler(cfg *Config, predictor dispatcher.Predictor) (http.Handler, error) {
	return &handler{
		cfg:       cfg,
		predictor: predictor,
	}, nil
}

type handler struct {
	predictor dispatcher.Predictor
	cfg       *Config
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

	if len(req.Data) > h.cfg.MaxDataItemsLen {
		httputil.RespBadRequest(ctx, w, "data items is too large, max allowed len is %d", h.cfg.MaxDataItemsLen)
		return
	}

	queries := make([][]float64, len(req.Data))
	for i := range req.Data {
		queries[i] = req.Data[i].Vec
	}
	labels, err := h.predictor.Predict(ctx, req.ModelID, queries)
	if err != nil {
		respPredictErr(ctx, w, err)
		return
	}

	resp := response{
		ModelID: req.ModelID,
		Data:    make([]item, len(labels)),
	}
	for i := range labels {
		resp.Data[i] = item{Vec: req.Data[i].Vec, Label: labels[i], Extra: req.Data[i].Extra}
	}
	logger.Debugf("Predicted %d labels with model %s", len(labels), req.ModelID)
	httputil.RespJSON(ctx, w, resp)
}

func respPredictErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, knn.ErrShape), errors.Is(err, knn.ErrDimensionMismatch):
		httputil.RespBadRequest(ctx, w, "%v", err)
	case errors.Is(err, knn.ErrNotTrained), errors.Is(err, dispatcher.ErrUnknownModel):
		httputil.RespConflict(ctx, w, "%v", err)
	case errors.Is(err, dispatcher.ErrClosed):
		httputil.RespUnavailable(ctx, w, "%v", err)
	default:
		httputil.RespInternalError(ctx, w, "predict processing error, %v", err)
	}
}
