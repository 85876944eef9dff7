package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/studyslice/studyslice/internal/db"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu         sync.Mutex
	objects    map[string]string
	presignErr error
	existsErr  error
	getErr     error
	presigned  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]string{}}
}

func (f *fakeStore) Bucket() string { return "test-bucket" }

func (f *fakeStore) PresignPut(_ context.Context, key string, expiry time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.presigned = append(f.presigned, key)
	return "https://test-bucket.s3.amazonaws.com/" + key + "?X-Amz-Expires=" + expiry.String(), nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(v)), nil
}

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "coordinator.db"), testLogger())
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewRepository(database)
}

func newTestRouter(t *testing.T, store ObjectStore) (http.Handler, *SQLiteRepository) {
	t.Helper()
	repo := newTestRepository(t)
	return NewRouter(ServerConfig{
		Store:      store,
		Repository: repo,
		Prefix:     "vids",
		Logger:     testLogger(),
		StartTime:  time.Now(),
	}), repo
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestUploadHandler_IssuesSlot(t *testing.T) {
	store := newFakeStore()
	h, repo := newTestRouter(t, store)

	rr := post(t, h, "/upload", `{"filename":"lecture.mp4"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp UploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.PresignedURL, "https://test-bucket.s3.amazonaws.com/vids/lecture.mp4?") {
		t.Errorf("presigned_url = %q", resp.PresignedURL)
	}
	if resp.Key != "vids/lecture.mp4" || resp.Bucket != "test-bucket" || resp.ExpiresIn != 3600 {
		t.Errorf("slot = %+v", resp.Slot)
	}

	rec, err := repo.GetSlot(context.Background(), resp.SlotID)
	if err != nil || rec == nil {
		t.Fatalf("GetSlot() = %v, %v", rec, err)
	}
	if rec.Status != SlotStatusIssued || rec.Filename != "lecture.mp4" || rec.Key != "vids/lecture.mp4" {
		t.Errorf("ledger record = %+v", rec)
	}
	if d := time.Until(rec.ExpiresAt); d < 59*time.Minute || d > 61*time.Minute {
		t.Errorf("expires in %v, want ~1h", d)
	}
}

func TestUploadHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing filename", `{}`},
		{"empty filename", `{"filename":"   "}`},
		{"path traversal", `{"filename":"../secret.mp4"}`},
		{"nested path", `{"filename":"a/b.mp4"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			h, _ := newTestRouter(t, store)

			rr := post(t, h, "/upload", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if body := decodeJSONBody(t, rr); body["code"] != "BAD_REQUEST" {
				t.Errorf("code = %v", body["code"])
			}
			if len(store.presigned) != 0 {
				t.Errorf("presigned %v on bad request", store.presigned)
			}
		})
	}
}

func TestUploadHandler_PresignFailure(t *testing.T) {
	store := newFakeStore()
	store.presignErr = errors.New("no credentials")
	h, _ := newTestRouter(t, store)

	rr := post(t, h, "/upload", `{"filename":"lecture.mp4"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "PRESIGN_FAILED" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestVideoStatusHandler(t *testing.T) {
	tests := []struct {
		name    string
		objects []string
		want    string
	}{
		{"nothing", nil, VideoStatusNotFound},
		{"uploaded", []string{"vids/lec.mp4"}, VideoStatusTranscribing},
		{"transcribed", []string{"vids/lec.mp4", "transcripts/lec.mp4-transcript.json"}, VideoStatusProcessingClips},
		{"clips only", []string{"clips/lec.mp4-clips.json"}, VideoStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			for _, k := range tt.objects {
				store.objects[k] = "{}"
			}
			h, _ := newTestRouter(t, store)

			rr := get(t, h, "/video-status/lec.mp4")
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			var resp VideoStatusResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.want || resp.VideoName != "lec.mp4" {
				t.Errorf("resp = %+v, want status %s", resp, tt.want)
			}
		})
	}
}

func TestVideoStatusHandler_IncludesLatestSlot(t *testing.T) {
	store := newFakeStore()
	h, _ := newTestRouter(t, store)

	if rr := post(t, h, "/upload", `{"filename":"lec.mp4"}`); rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rr.Code)
	}

	rr := get(t, h, "/video-status/lec.mp4")
	var resp VideoStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.LatestSlot == nil || resp.LatestSlot.Key != "vids/lec.mp4" || resp.LatestSlot.Status != SlotStatusIssued {
		t.Errorf("latest_slot = %+v", resp.LatestSlot)
	}

	rr = get(t, h, "/video-status/other.mp4")
	if body := decodeJSONBody(t, rr); body["latest_slot"] != nil {
		t.Errorf("unexpected latest_slot for unknown file: %v", body["latest_slot"])
	}
}

func TestVideoStatusHandler_StoreError(t *testing.T) {
	store := newFakeStore()
	store.existsErr = errors.New("access denied")
	h, _ := newTestRouter(t, store)

	if rr := get(t, h, "/video-status/lec.mp4"); rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

func TestGetClipsHandler(t *testing.T) {
	store := newFakeStore()
	doc := `{"lecture_id":"lec","clips":[{"index_id":1,"concept_title":"A","start_s":0,"end_s":10}]}`
	store.objects["clips/lec-clips.json"] = doc
	h, _ := newTestRouter(t, store)

	rr := get(t, h, "/get-clips/lec")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Body.String() != doc {
		t.Errorf("body = %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	if rr := get(t, h, "/get-clips/missing"); rr.Code != http.StatusNotFound {
		t.Errorf("missing clips status = %d, want 404", rr.Code)
	}

	store.getErr = errors.New("throttled")
	if rr := get(t, h, "/get-clips/lec"); rr.Code != http.StatusInternalServerError {
		t.Errorf("store error status = %d, want 500", rr.Code)
	}
}

func TestGetSlotHandler(t *testing.T) {
	h, repo := newTestRouter(t, newFakeStore())

	rec := &SlotRecord{Filename: "a.mp4", Bucket: "b", Key: "vids/a.mp4", ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.CreateSlot(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	rr := get(t, h, "/slots/"+rec.ID)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["id"] != rec.ID || body["status"] != SlotStatusIssued || body["key"] != "vids/a.mp4" {
		t.Errorf("body = %v", body)
	}

	if rr := get(t, h, "/slots/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown slot status = %d, want 404", rr.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	h, _ := newTestRouter(t, newFakeStore())

	rr := get(t, h, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestRepository_ExpireAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	stale := &SlotRecord{Filename: "a.mp4", Bucket: "b", Key: "vids/a.mp4", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-2 * time.Hour)}
	fresh := &SlotRecord{Filename: "a.mp4", Bucket: "b", Key: "vids/a.mp4", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	for _, s := range []*SlotRecord{stale, fresh} {
		if err := repo.CreateSlot(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	n, err := repo.ExpireSlots(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("ExpireSlots() = %d, %v, want 1", n, err)
	}

	slots, err := repo.ListSlotsByFilename(ctx, "a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 {
		t.Fatalf("len = %d, want 2", len(slots))
	}
	if slots[0].ID != fresh.ID || slots[0].Status != SlotStatusIssued {
		t.Errorf("newest = %+v", slots[0])
	}
	if slots[1].ID != stale.ID || slots[1].Status != SlotStatusExpired {
		t.Errorf("oldest = %+v", slots[1])
	}
}

func TestSweepSlots_StopsOnCancel(t *testing.T) {
	repo := newTestRepository(t)
	ctx, cancel := context.WithCancel(context.Background())

	stale := &SlotRecord{Filename: "a.mp4", Bucket: "b", Key: "k", ExpiresAt: time.Now().Add(-time.Minute)}
	if err := repo.CreateSlot(context.Background(), stale); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		SweepSlots(ctx, repo, 10*time.Millisecond, testLogger())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, err := repo.GetSlot(context.Background(), stale.ID)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Status == SlotStatusExpired {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("slot was never expired")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	h, _ := newTestRouter(t, newFakeStore())

	rr := get(t, h, "/health")
	if id := rr.Header().Get("X-Request-ID"); len(id) != 8 {
		t.Errorf("X-Request-ID = %q, want 8 chars", id)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if id := rr.Header().Get("X-Request-ID"); id != "client-abc" {
		t.Errorf("X-Request-ID = %q, want client-abc", id)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/upload", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rr.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "INTERNAL_ERROR" {
		t.Errorf("body = %v", body)
	}
}

func TestObjectKeys(t *testing.T) {
	if got := ObjectKey("vids", "a.mp4"); got != "vids/a.mp4" {
		t.Errorf("ObjectKey = %q", got)
	}
	if got := ObjectKey("", "a.mp4"); got != "a.mp4" {
		t.Errorf("ObjectKey without prefix = %q", got)
	}
	if got := TranscriptKey("a.mp4"); got != "transcripts/a.mp4-transcript.json" {
		t.Errorf("TranscriptKey = %q", got)
	}
	if got := ClipsKey("a.mp4"); got != "clips/a.mp4-clips.json" {
		t.Errorf("ClipsKey = %q", got)
	}
}
