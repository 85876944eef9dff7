package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestClient_RequestSlot_Success(t *testing.T) {
	var received SlotRequest
	var requestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != SlotPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q, want application/json", ct)
		}
		requestID = r.Header.Get(RequestIDHeader)
		json.NewDecoder(r.Body).Decode(&received)

		json.NewEncoder(w).Encode(Slot{
			PresignedURL: "https://store.example/vids/lecture.mp4?sig=1",
			Bucket:       "sunhacks25",
			Key:          "vids/lecture.mp4",
			ExpiresIn:    3600,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 0, testLogger())
	slot, err := client.RequestSlot(context.Background(), "lecture.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received.Filename != "lecture.mp4" {
		t.Errorf("filename = %q, want %q", received.Filename, "lecture.mp4")
	}
	if requestID == "" {
		t.Error("expected request id header")
	}
	if slot.Key != "vids/lecture.mp4" {
		t.Errorf("key = %q, want %q", slot.Key, "vids/lecture.mp4")
	}
	if slot.Expiry().Seconds() != 3600 {
		t.Errorf("expiry = %v, want 1h", slot.Expiry())
	}
}

func TestClient_RequestSlot_Failures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     error
		wantStatus  int
		unavailable bool
	}{
		{name: "server error", status: 500, body: `{"error":"boom"}`, wantStatus: 500, unavailable: true},
		{name: "bad gateway", status: 502, body: "bad gateway", wantStatus: 502, unavailable: true},
		{name: "bad request", status: 400, body: `{"error":"No filename provided"}`, wantStatus: 400},
		{name: "missing url", status: 200, body: `{"bucket":"b","key":"k"}`, wantErr: ErrMissingWriteURL},
		{name: "empty url", status: 200, body: `{"presigned_url":""}`, wantErr: ErrMissingWriteURL},
		{name: "malformed", status: 200, body: `not json`, wantErr: ErrMalformedSlot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, 0, testLogger())
			_, err := client.RequestSlot(context.Background(), "a.mp4")
			if err == nil {
				t.Fatal("expected error")
			}

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantStatus != 0 {
				var se *StatusError
				if !errors.As(err, &se) {
					t.Fatalf("expected StatusError, got %T", err)
				}
				if se.StatusCode != tt.wantStatus {
					t.Fatalf("status_code = %d, want %d", se.StatusCode, tt.wantStatus)
				}
			}
			if got := IsUnavailable(err); got != tt.unavailable {
				t.Errorf("IsUnavailable = %v, want %v", got, tt.unavailable)
			}
		})
	}
}

func TestClient_RequestSlot_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, 0, testLogger())
	_, err := client.RequestSlot(context.Background(), "a.mp4")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
	if !IsUnavailable(err) {
		t.Fatal("expected transport failure to count as unavailable")
	}
}

func TestClient_RequestSlot_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Slot{PresignedURL: "http://x"})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, 0, testLogger())
	_, err := client.RequestSlot(ctx, "a.mp4")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if IsUnavailable(err) {
		t.Fatal("cancellation must not count as unavailable")
	}
}

func TestClient_PutPayload_Success(t *testing.T) {
	var gotBody string
	var gotType string
	var gotLength int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.URL.Query().Get("sig") != "abc" {
			t.Errorf("presigned query not preserved: %s", r.URL.RawQuery)
		}
		gotType = r.Header.Get("Content-Type")
		gotLength = r.ContentLength
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient("http://unused", 0, testLogger())
	slot := &Slot{PresignedURL: server.URL + "/vids/a.mp4?sig=abc", Key: "vids/a.mp4"}

	payload := "fake video bytes"
	if err := client.PutPayload(context.Background(), slot, strings.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotType != "application/octet-stream" {
		t.Errorf("content-type = %q, want application/octet-stream", gotType)
	}
	if gotLength != int64(len(payload)) {
		t.Errorf("content-length = %d, want %d", gotLength, len(payload))
	}
	if gotBody != payload {
		t.Errorf("body = %q, want %q", gotBody, payload)
	}
}

func TestClient_PutPayload_Forbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("<Error><Code>SignatureDoesNotMatch</Code></Error>"))
	}))
	defer server.Close()

	client := NewClient("http://unused", 0, testLogger())
	err := client.PutPayload(context.Background(), &Slot{PresignedURL: server.URL}, strings.NewReader("x"), 1)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if !strings.Contains(se.Body, "SignatureDoesNotMatch") {
		t.Errorf("body = %q, want to contain SignatureDoesNotMatch", se.Body)
	}
	if IsUnavailable(err) {
		t.Error("403 must not count as unavailable")
	}
}

func TestClient_PutPayload_MissingURL(t *testing.T) {
	client := NewClient("http://unused", 0, testLogger())
	err := client.PutPayload(context.Background(), &Slot{}, strings.NewReader("x"), 1)
	if !errors.Is(err, ErrMissingWriteURL) {
		t.Fatalf("err = %v, want ErrMissingWriteURL", err)
	}
}
