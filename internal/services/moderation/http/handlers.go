// Package http provides http transport for moderation runs
package http

import (
	"encoding/base64"
	"io"
	stdhttp "net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"hushcut/internal/modkit/httpkit"
	perr "hushcut/internal/platform/errors"
	"hushcut/internal/services/moderation/domain"
	svc "hushcut/internal/services/moderation/service"
)

// DefaultMaxUpload caps the multipart body at 100 MiB
const DefaultMaxUpload = 100 << 20

var allowedExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".m4a":  {},
	".ogg":  {},
	".flac": {},
	".webm": {},
}

// Register mounts moderation endpoints on the given router
func Register(r httpkit.Router, s svc.Service, maxUpload int64) {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	h := &handlers{svc: s, maxUpload: maxUpload}
	r.Post("/", httpkit.Handle(h.create))
	httpkit.PostJSON(r, "/json", h.createJSON)
	r.Get("/{id}", httpkit.Handle(h.get))
}

type handlers struct {
	svc       svc.Service
	maxUpload int64
}

// audioResponse carries the sanitized track inline
type audioResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	DataBase64  string `json:"data_base64"`
}

type runResponse struct {
	domain.ModerationResult
	Audio *audioResponse `json:"audio,omitempty"`
}

func (h *handlers) create(r *stdhttp.Request) httpkit.Response {
	r.Body = stdhttp.MaxBytesReader(nil, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return httpkit.Error(perr.InvalidArgf("parse multipart form: %v", err))
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return httpkit.Error(perr.InvalidArgf("missing file field"))
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return httpkit.Error(perr.UnsupportedMediaf("unsupported audio extension %q", ext))
	}

	audio, err := io.ReadAll(file)
	if err != nil {
		return httpkit.Error(perr.InvalidArgf("read upload: %v", err))
	}

	res, err := h.svc.Moderate(r.Context(), domain.ModerateInput{
		Filename: header.Filename,
		Audio:    audio,
		Mode:     domain.Mode(r.FormValue("mode")),
		Language: r.FormValue("language"),
	})
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.OK(toResponse(res))
}

// CreateRequest is the JSON submission body, for callers that cannot send
// multipart. The audio travels base64 encoded
type CreateRequest struct {
	Filename    string `json:"filename" validate:"required"`
	Mode        string `json:"mode" validate:"omitempty,oneof=classify redact"`
	Language    string `json:"language" validate:"omitempty,max=16"`
	AudioBase64 string `json:"audio_base64" validate:"required,base64"`
}

func (h *handlers) createJSON(r *stdhttp.Request, in CreateRequest) (any, error) {
	ext := strings.ToLower(filepath.Ext(in.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, perr.UnsupportedMediaf("unsupported audio extension %q", ext)
	}

	audio, err := base64.StdEncoding.DecodeString(in.AudioBase64)
	if err != nil {
		return nil, perr.InvalidArgf("decode audio_base64: %v", err)
	}
	if int64(len(audio)) > h.maxUpload {
		return nil, perr.InvalidArgf("audio exceeds upload limit")
	}

	res, err := h.svc.Moderate(r.Context(), domain.ModerateInput{
		Filename: in.Filename,
		Audio:    audio,
		Mode:     domain.Mode(in.Mode),
		Language: in.Language,
	})
	if err != nil {
		return nil, err
	}
	return toResponse(res), nil
}

func (h *handlers) get(r *stdhttp.Request) httpkit.Response {
	id := chi.URLParam(r, "id")
	if id == "" {
		return httpkit.Error(perr.InvalidArgf("missing run id"))
	}
	res, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.OK(toResponse(res))
}

func toResponse(res domain.ModerationResult) runResponse {
	out := runResponse{ModerationResult: res}
	if res.Audio != nil && len(res.Audio.Bytes) > 0 {
		out.Audio = &audioResponse{
			Filename:    res.Audio.Filename,
			ContentType: res.Audio.ContentType,
			DataBase64:  base64.StdEncoding.EncodeToString(res.Audio.Bytes),
		}
	}
	out.ModerationResult.Audio = nil
	return out
}
