package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestWriteBadRequest_EmitsProblemDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteBadRequest(w, "missing tenantId")

	if w.Code != 400 {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem+json content type, got %s", ct)
	}

	var problem ProblemDetail
	if err := json.Unmarshal(w.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decoding problem detail: %v", err)
	}
	if problem.Status != 400 || problem.Detail != "missing tenantId" {
		t.Errorf("unexpected problem detail: %+v", problem)
	}
}

func TestWriteInternal_NeverLeaksErrorDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternal(w, errBoom)

	var problem ProblemDetail
	if err := json.Unmarshal(w.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decoding problem detail: %v", err)
	}
	if problem.Detail == errBoom.Error() {
		t.Error("expected the internal error detail to be replaced with a generic message")
	}
}

var errBoom = boomError("db connection string leaked")

type boomError string

func (e boomError) Error() string { return string(e) }
