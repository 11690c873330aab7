package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	phttp "hushcut/internal/platform/net/http"
	"hushcut/internal/services/moderation/domain"
)

type fakeService struct {
	in     *domain.ModerateInput
	result domain.ModerationResult
}

func (f *fakeService) Moderate(_ context.Context, in domain.ModerateInput) (domain.ModerationResult, error) {
	f.in = &in
	return f.result, nil
}

func (f *fakeService) GetRun(context.Context, string) (domain.ModerationResult, error) {
	return f.result, nil
}

func postJSON(t *testing.T, h phttp.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(stdhttp.MethodPost, "/moderations/json", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestCreateJSON(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString([]byte("pcm bytes"))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCalled bool
	}{
		{
			name:       "valid submission",
			body:       `{"filename":"meeting.wav","mode":"classify","audio_base64":"` + audio + `"}`,
			wantStatus: stdhttp.StatusOK,
			wantCalled: true,
		},
		{
			name:       "missing audio",
			body:       `{"filename":"meeting.wav"}`,
			wantStatus: stdhttp.StatusBadRequest,
		},
		{
			name:       "missing filename",
			body:       `{"audio_base64":"` + audio + `"}`,
			wantStatus: stdhttp.StatusBadRequest,
		},
		{
			name:       "unknown mode",
			body:       `{"filename":"meeting.wav","mode":"loud","audio_base64":"` + audio + `"}`,
			wantStatus: stdhttp.StatusBadRequest,
		},
		{
			name:       "not base64",
			body:       `{"filename":"meeting.wav","audio_base64":"%%%"}`,
			wantStatus: stdhttp.StatusBadRequest,
		},
		{
			name:       "disallowed extension",
			body:       `{"filename":"meeting.exe","audio_base64":"` + audio + `"}`,
			wantStatus: stdhttp.StatusUnsupportedMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{result: domain.ModerationResult{ID: "run-1", Status: domain.StatusClean}}
			h := &handlers{svc: svc, maxUpload: DefaultMaxUpload}
			handler := phttp.JSONHandler(h.createJSON)

			rec := postJSON(t, handler, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCalled != (svc.in != nil) {
				t.Fatalf("service called = %v, want %v", svc.in != nil, tt.wantCalled)
			}
		})
	}
}

func TestCreateJSON_DecodesAudio(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04}
	body := `{"filename":"meeting.wav","mode":"redact","language":"en","audio_base64":"` +
		base64.StdEncoding.EncodeToString(raw) + `"}`

	svc := &fakeService{result: domain.ModerationResult{ID: "run-2", Status: domain.StatusSuccess}}
	h := &handlers{svc: svc, maxUpload: DefaultMaxUpload}

	rec := postJSON(t, phttp.JSONHandler(h.createJSON), body)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.in == nil {
		t.Fatal("service never called")
	}
	if string(svc.in.Audio) != string(raw) {
		t.Errorf("decoded audio = %v, want %v", svc.in.Audio, raw)
	}
	if svc.in.Mode != domain.ModeRedact || svc.in.Language != "en" {
		t.Errorf("input = %+v", svc.in)
	}

	var envelope struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Data.ID != "run-2" {
		t.Errorf("envelope id = %q", envelope.Data.ID)
	}
}

func TestCreateJSON_EnforcesUploadLimit(t *testing.T) {
	big := base64.StdEncoding.EncodeToString(make([]byte, 64))
	body := `{"filename":"meeting.wav","audio_base64":"` + big + `"}`

	svc := &fakeService{}
	h := &handlers{svc: svc, maxUpload: 16}

	rec := postJSON(t, phttp.JSONHandler(h.createJSON), body)
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.in != nil {
		t.Error("oversized upload reached the service")
	}
}
