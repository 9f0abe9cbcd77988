package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/ingestion"
)

type fakeIngester struct {
	err error
	got *ingestion.IngestRequest
}

func (f *fakeIngester) Ingest(_ context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &ingestion.IngestResponse{Name: req.Name, Status: "ACCEPTED", ShardID: 1}, nil
}

func post(h *Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Ingest(rec, httptest.NewRequest(http.MethodPost, "/api/v1/index", strings.NewReader(body)))
	return rec
}

func TestIngestAccepted(t *testing.T) {
	ing := &fakeIngester{}
	rec := post(New(ing), `{"name":"doc-1","body":"hello world"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp ingestion.IngestResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Name != "doc-1" || ing.got.Body != "hello world" {
		t.Errorf("response = %+v", resp)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	h := New(&fakeIngester{})
	if rec := post(h, `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}
	rec := post(h, `{"body":"text"}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "name") {
		t.Errorf("validation status = %d body = %s", rec.Code, rec.Body)
	}
}

func TestIngestPublishFailure(t *testing.T) {
	rec := post(New(&fakeIngester{err: errors.New("broker down")}), `{"name":"d","body":"b"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
