package collect

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-sod/knn/internal/sample/model"
)

type collectorMock struct {
	mtx     sync.Mutex
	samples []model.Sample
	done    chan struct{}
}

func (c *collectorMock) Collect(in ...model.Sample) error {
	c.mtx.Lock()
	c.samples = append(c.samples, in...)
	c.mtx.Unlock()
	close(c.done)
	return nil
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		code   int
		count  int
	}{
		{
			name:   "positive",
			method: http.MethodPost,
			body: `{"model": "m", "data": [
				{"vector": [1, 2], "label": "A", "createdAt": "2020-01-01T00:00:02Z"},
				{"vector": [3, 4], "label": "B", "createdAt": "2020-01-01T00:00:01Z"}
			]}`,
			code:  http.StatusOK,
			count: 2,
		},
		{name: "negative_method", method: http.MethodPut, body: `{}`, code: http.StatusMethodNotAllowed},
		{name: "negative_no_model", method: http.MethodPost, body: `{"data": []}`, code: http.StatusBadRequest},
		{name: "negative_empty_vector", method: http.MethodPost, body: `{"model": "m", "data": [{"vector": []}]}`, code: http.StatusBadRequest},
		{
			name:   "negative_too_many_items",
			method: http.MethodPost,
			body:   `{"model": "m", "data": [{"vector": [1]}, {"vector": [2]}, {"vector": [3]}, {"vector": [4]}]}`,
			code:   http.StatusBadRequest,
		},
		{name: "negative_malformed", method: http.MethodPost, body: `{"model": "m", "data": [`, code: http.StatusBadRequest},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			mock := &collectorMock{done: make(chan struct{})}
			h, err := NewHandler(&Config{RequestTimeout: time.Second, MaxDataItemsLen: 3}, mock)
			if err != nil {
				t.Fatalf("the error should not be returned: %v", err)
			}
			r := httptest.NewRequest(test.method, "/collect", strings.NewReader(test.body))
			r.Header.Set("content-type", "application/json")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != test.code {
				t.Fatalf("status code got: %v, expected: %v, body: %s", w.Code, test.code, w.Body.String())
			}
			if test.count == 0 {
				return
			}
			select {
			case <-mock.done:
			case <-time.After(time.Second):
				t.Fatalf("samples were not collected")
			}
			mock.mtx.Lock()
			defer mock.mtx.Unlock()
			if len(mock.samples) != test.count {
				t.Fatalf("collected samples got: %v, expected: %v", len(mock.samples), test.count)
			}
			if mock.samples[0].Label != "B" || mock.samples[0].ModelID != "m" {
				t.Errorf("samples must be collected oldest first, got: %+v", mock.samples[0])
			}
		})
	}
}
