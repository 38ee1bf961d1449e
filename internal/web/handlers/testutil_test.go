package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/faceattend/faceattend/internal/attendance"
	"github.com/faceattend/faceattend/internal/engine"
	"github.com/faceattend/faceattend/internal/identity"
)

const (
	testMaxUpload = 1 << 20
	testMaxDim    = 1600
)

// stubEngine returns canned results so handler tests never touch OpenCV.
type stubEngine struct {
	registerIdent  *identity.Identity
	registerErr    error
	recognizeRes   *engine.RecognitionResult
	recognizeErr   error
	lastRegister   engine.RegisterRequest
	lastDirection  string
	lastImage      []byte
	recognizeCalls int
}

func (s *stubEngine) Register(ctx context.Context, req engine.RegisterRequest) (*identity.Identity, error) {
	s.lastRegister = req
	return s.registerIdent, s.registerErr
}

func (s *stubEngine) RecognizeIn(ctx context.Context, image []byte) (*engine.RecognitionResult, error) {
	s.lastDirection = "in"
	s.lastImage = image
	s.recognizeCalls++
	return s.recognizeRes, s.recognizeErr
}

func (s *stubEngine) RecognizeOut(ctx context.Context, image []byte) (*engine.RecognitionResult, error) {
	s.lastDirection = "out"
	s.lastImage = image
	s.recognizeCalls++
	return s.recognizeRes, s.recognizeErr
}

// multipartRequest builds a request with an image file and form fields.
func multipartRequest(t *testing.T, url string, fields map[string]string, image []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if image != nil {
		fw, err := mw.CreateFormFile("image", "face.jpg")
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		if _, err := fw.Write(image); err != nil {
			t.Fatalf("writing form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("writing form field: %v", err)
		}
	}
	mw.Close()

	req := httptest.NewRequest("POST", url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func assertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("expected status %d, got %d (body: %s)", want, rec.Code, rec.Body.String())
	}
}

func parseJSONResponse(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("parsing response JSON: %v (body: %s)", err, rec.Body.String())
	}
}

func markedInResult() *engine.RecognitionResult {
	in := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	return &engine.RecognitionResult{
		Username: "alice",
		Distance: 0.42,
		Outcome:  attendance.MarkedIn,
		Record: &attendance.Record{
			ID:       "rec-1",
			Username: "alice",
			Name:     "Alice A",
			Phone:    5550001111,
			Date:     "2026-09-01",
			InTime:   in,
		},
	}
}
