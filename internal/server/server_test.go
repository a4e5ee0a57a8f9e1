package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHandleHealth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := HandleHealth(ctx)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status code got: %v, expected: %v", w.Code, http.StatusOK)
	}

	cancel()
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status code after shutdown got: %v, expected: %v", w.Code, http.StatusServiceUnavailable)
	}
}

func TestServeHTTPHandler(t *testing.T) {
	srv, err := New("127.0.0.1:0")
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ServeHTTPHandler(ctx, HandleHealth(ctx))
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code got: %v, expected: %v, body: %s", resp.StatusCode, http.StatusOK, body)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("the error should not be returned: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestServeGRPCHealth(t *testing.T) {
	srv, err := New("127.0.0.1:0")
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	grpcSrv, hs := NewGRPCHealth()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ServeGRPC(ctx, grpcSrv)
	}()

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	conn, err := grpc.DialContext(dialCtx, srv.Addr(), grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(dialCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status before load got: %v, expected: %v", resp.Status, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	resp, err = client.Check(dialCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status after load got: %v, expected: %v", resp.Status, healthpb.HealthCheckResponse_SERVING)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("the error should not be returned: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("grpc server did not stop")
	}
}
