package control

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	method string
	path   string
	ip     string
}

func restServer(t *testing.T, status int) (*RESTClient, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			ip:     r.URL.Query().Get("ip"),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	client, err := NewRESTClient(RESTConfig{
		Host: strings.TrimPrefix(srv.URL, "http://"),
	})
	if err != nil {
		t.Fatalf("NewRESTClient failed: %v", err)
	}

	return client, &requests
}

func TestRESTStartStream(t *testing.T) {
	client, requests := restServer(t, http.StatusOK)

	if err := client.StartStream(context.Background(), StreamVideo, "10.0.0.5", 11000, 0); err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}

	if len(*requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(*requests))
	}
	req := (*requests)[0]
	if req.method != http.MethodPost {
		t.Errorf("Expected POST, got %s", req.method)
	}
	if req.path != "/v1/streams/video" {
		t.Errorf("Expected /v1/streams/video, got %s", req.path)
	}
	if req.ip != "10.0.0.5:11000" {
		t.Errorf("Expected ip 10.0.0.5:11000, got %s", req.ip)
	}
}

func TestRESTStopStream(t *testing.T) {
	client, requests := restServer(t, http.StatusOK)

	if err := client.StopStream(context.Background(), StreamAudio); err != nil {
		t.Fatalf("StopStream failed: %v", err)
	}

	if len(*requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(*requests))
	}
	req := (*requests)[0]
	if req.method != http.MethodDelete {
		t.Errorf("Expected DELETE, got %s", req.method)
	}
	if req.path != "/v1/streams/audio" {
		t.Errorf("Expected /v1/streams/audio, got %s", req.path)
	}
}

func TestRESTErrorStatus(t *testing.T) {
	client, _ := restServer(t, http.StatusInternalServerError)

	err := client.StartStream(context.Background(), StreamVideo, "10.0.0.5", 11000, 0)
	if err == nil {
		t.Fatal("Expected error for HTTP 500")
	}
	if !strings.Contains(err.Error(), "HTTP error 500") {
		t.Errorf("Expected HTTP error 500 in message, got: %v", err)
	}
}

func TestNewRESTClientValidation(t *testing.T) {
	if _, err := NewRESTClient(RESTConfig{}); err == nil {
		t.Error("Expected error for empty host")
	}
}
