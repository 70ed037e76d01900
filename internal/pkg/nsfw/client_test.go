package nsfw

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Detect_Safe(t *testing.T) {
	imageData := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("Expected /predict, got %s", r.URL.Path)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected multipart file field: %v", err)
			return
		}
		got, _ := io.ReadAll(file)
		if string(got) != string(imageData) {
			t.Errorf("Expected uploaded bytes %v, got %v", imageData, got)
		}

		resp := apiResponse{
			IsNSFW:      false,
			NSFWScore:   0.05,
			NormalScore: 0.95,
			Label:       "normal",
			Confidence:  0.95,
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(HTTPConfig{BaseURL: server.URL})

	result, err := client.Detect(context.Background(), imageData)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !result.IsSafe() {
		t.Error("Expected image to be safe")
	}
	if result.NSFWScore > 0.1 {
		t.Errorf("Expected low NSFW score, got %f", result.NSFWScore)
	}
}

func TestClient_Detect_Unsafe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := apiResponse{
			IsNSFW:      true,
			NSFWScore:   0.92,
			NormalScore: 0.08,
			Label:       "nsfw",
			Confidence:  0.92,
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(HTTPConfig{BaseURL: server.URL})

	result, err := client.Detect(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !result.IsNSFW {
		t.Error("Expected image to be NSFW")
	}
	if result.Label != "nsfw" {
		t.Errorf("Expected label nsfw, got %s", result.Label)
	}
}

func TestClient_Detect_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(HTTPConfig{BaseURL: server.URL})

	if _, err := client.Detect(context.Background(), []byte{1}); err == nil {
		t.Error("Expected error for 503 response")
	}
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected /health, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	}))
	defer server.Close()

	client := NewClient(HTTPConfig{BaseURL: server.URL})

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestDefaultHTTPConfig(t *testing.T) {
	config := DefaultHTTPConfig()

	if config.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected BaseURL http://localhost:8080, got %s", config.BaseURL)
	}
}

func TestDetectionResult_IsSafe(t *testing.T) {
	safeResult := &DetectionResult{IsNSFW: false}
	if !safeResult.IsSafe() {
		t.Error("Expected IsSafe() to return true for non-NSFW")
	}

	unsafeResult := &DetectionResult{IsNSFW: true}
	if unsafeResult.IsSafe() {
		t.Error("Expected IsSafe() to return false for NSFW")
	}
}
