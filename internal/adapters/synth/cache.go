package synth

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cloner is the subset of the synthesis client the cache needs
type Cloner interface {
	CloneVoice(ctx context.Context, name string, reference []byte) (string, error)
	DeleteVoice(ctx context.Context, voiceID string) error
}

// VoiceCache maps speaker ids to cloned voice ids. Concurrent requests for
// the same speaker share one clone call; a failed clone is not cached, so
// the next segment for that speaker retries
type VoiceCache struct {
	cloner Cloner
	group  singleflight.Group

	mu     sync.Mutex
	voices map[string]string
}

// NewVoiceCache creates an empty cache backed by cloner
func NewVoiceCache(cloner Cloner) *VoiceCache {
	return &VoiceCache{
		cloner: cloner,
		voices: make(map[string]string),
	}
}

// VoiceFor returns the voice id for speaker, cloning from reference on first
// use. reference is called lazily so callers do not cut audio for speakers
// that already have a voice
func (vc *VoiceCache) VoiceFor(ctx context.Context, speaker string, reference func() ([]byte, error)) (string, error) {
	vc.mu.Lock()
	if id, ok := vc.voices[speaker]; ok {
		vc.mu.Unlock()
		return id, nil
	}
	vc.mu.Unlock()

	v, err, _ := vc.group.Do(speaker, func() (any, error) {
		vc.mu.Lock()
		if id, ok := vc.voices[speaker]; ok {
			vc.mu.Unlock()
			return id, nil
		}
		vc.mu.Unlock()

		ref, err := reference()
		if err != nil {
			return "", err
		}
		id, err := vc.cloner.CloneVoice(ctx, "speaker_"+speaker, ref)
		if err != nil {
			return "", err
		}

		vc.mu.Lock()
		vc.voices[speaker] = id
		vc.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Cleanup deletes every cloned voice and empties the cache. Errors are
// returned but deletion continues past them
func (vc *VoiceCache) Cleanup(ctx context.Context) error {
	vc.mu.Lock()
	ids := make([]string, 0, len(vc.voices))
	for _, id := range vc.voices {
		ids = append(ids, id)
	}
	vc.voices = make(map[string]string)
	vc.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := vc.cloner.DeleteVoice(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len reports how many speakers currently have a cloned voice
func (vc *VoiceCache) Len() int {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return len(vc.voices)
}
