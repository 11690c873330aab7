// Package module wires the moderation pipeline into the API using modkit
package module

import (
	"context"
	"net/http"

	"hushcut/internal/adapters/asr"
	"hushcut/internal/adapters/diarize"
	modkit "hushcut/internal/modkit"
	"hushcut/internal/modkit/httpkit"
	str "hushcut/internal/platform/strings"
	moderationhttp "hushcut/internal/services/moderation/http"
	moderationrepo "hushcut/internal/services/moderation/repo"
	moderationsvc "hushcut/internal/services/moderation/service"
)

// Pinger is satisfied by collaborator clients that expose a health probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ports exposed by the moderation module
type Ports struct {
	Moderator moderationsvc.Service

	// Pingers exposes collaborator health probes for readiness checks
	Pingers map[string]Pinger
}

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws   []func(http.Handler) http.Handler
	ports Ports

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc moderationsvc.Service
}

// New constructs a moderation module with the provided dependencies and options
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("moderation"),
		modkit.WithPrefix("/moderations"),
	}, opts...)...)

	o := FromConfig(deps.Cfg)
	o.Service.SynthSampleRate = pcmRate(o.Synth.OutputFormat)
	if len(o.Service.Policy.Removal) == 0 {
		panic("moderation: MODERATION_REMOVAL_LABELS resolved to an empty set")
	}
	if len(o.Service.Flagged) == 0 {
		panic("moderation: MODERATION_FLAGGED_LABELS resolved to an empty set")
	}

	var runs moderationsvc.RunStore
	if deps.PG != nil {
		runs = moderationrepo.NewRuns(deps.PG)
	}

	asrClient := asr.NewClient(o.ASR)
	diaClient := diarize.NewClient(o.Diarize)

	svc := moderationsvc.New(
		o.Service,
		transcriberAdapter{c: asrClient},
		diarizerAdapter{c: diaClient, minOverlap: o.MinOverlap},
		newClassifier(o),
		newRewriter(o),
		newSynthesizer(o),
		runs,
	)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = Ports{
		Moderator: svc,
		Pingers: map[string]Pinger{
			"asr":     asrClient,
			"diarize": diaClient,
		},
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		moderationhttp.Register(r, m.svc, o.MaxUploadBytes)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns the module ports for cross-module wiring
func (m *Module) Ports() any { return m.ports }
