package collect

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

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

func NewHandler(cfg *Config, collector dispatcher.Collector) (http.Handler, error) {
	s := &handler{
		collector: collector,
		cfg:       cfg,
	}
	return s, nil
}

type handler struct {
	collector dispatcher.Collector
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
	if req.ModelID == "" {
		httputil.RespBadRequest(ctx, w, "model is required")
		return
	}
	if len(req.Data) > h.cfg.MaxDataItemsLen {
		httputil.RespBadRequest(ctx, w, "data items is too large, max allowed len is %d", h.cfg.MaxDataItemsLen)
		return
	}
	for i, dat := range req.Data {
		if len(dat.Vec) == 0 {
			httputil.RespBadRequest(ctx, w, "data item %d has no features", i)
			return
		}
	}

	base := time.Now().UTC()
	samples := make([]model.Sample, len(req.Data))
	for i, dat := range req.Data {
		createdAt := dat.CreatedAt
		if createdAt.IsZero() {
			createdAt = base.Add(time.Duration(i))
		}
		samples[i] = model.NewSample(req.ModelID, geom.NewPoint(dat.Vec), dat.Label, createdAt)
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].CreatedAt.Before(samples[j].CreatedAt)
	})

	go func() {
		if err := h.collector.Collect(samples...); err != nil {
			logger.Errorf("error sending to collect service: %v", err)
			return
		}
		logger.Infof("Collected %d samples for model %s", len(samples), req.ModelID)
	}()
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status": "ok"}`)
}
