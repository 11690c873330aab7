package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeCloner struct {
	mu      sync.Mutex
	clones  int32
	deletes []string
	fail    bool
}

func (f *fakeCloner) CloneVoice(_ context.Context, name string, _ []byte) (string, error) {
	n := atomic.AddInt32(&f.clones, 1)
	if f.fail {
		return "", errors.New("clone failed")
	}
	return fmt.Sprintf("voice-%s-%d", name, n), nil
}

func (f *fakeCloner) DeleteVoice(_ context.Context, voiceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, voiceID)
	return nil
}

func ref(b []byte) func() ([]byte, error) {
	return func() ([]byte, error) { return b, nil }
}

func TestVoiceCache_CloneOncePerSpeaker(t *testing.T) {
	fc := &fakeCloner{}
	vc := NewVoiceCache(fc)
	ctx := context.Background()

	first, err := vc.VoiceFor(ctx, "spk_0", ref([]byte("audio")))
	if err != nil {
		t.Fatalf("first VoiceFor: %v", err)
	}
	second, err := vc.VoiceFor(ctx, "spk_0", ref([]byte("audio")))
	if err != nil {
		t.Fatalf("second VoiceFor: %v", err)
	}
	if first != second {
		t.Errorf("voice ids differ: %q vs %q", first, second)
	}
	if n := atomic.LoadInt32(&fc.clones); n != 1 {
		t.Errorf("clones = %d, want 1", n)
	}

	other, err := vc.VoiceFor(ctx, "spk_1", ref([]byte("audio")))
	if err != nil {
		t.Fatalf("other speaker VoiceFor: %v", err)
	}
	if other == first {
		t.Errorf("different speakers share voice id %q", other)
	}
	if n := atomic.LoadInt32(&fc.clones); n != 2 {
		t.Errorf("clones = %d, want 2", n)
	}
}

func TestVoiceCache_ConcurrentSingleClone(t *testing.T) {
	fc := &fakeCloner{}
	vc := NewVoiceCache(fc)
	ctx := context.Background()

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			id, err := vc.VoiceFor(ctx, "spk_0", ref([]byte("audio")))
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	if n := atomic.LoadInt32(&fc.clones); n != 1 {
		t.Errorf("clones = %d, want 1", n)
	}
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("worker %d got %q, worker 0 got %q", i, ids[i], ids[0])
		}
	}
}

func TestVoiceCache_FailedCloneNotCached(t *testing.T) {
	fc := &fakeCloner{fail: true}
	vc := NewVoiceCache(fc)
	ctx := context.Background()

	if _, err := vc.VoiceFor(ctx, "spk_0", ref([]byte("audio"))); err == nil {
		t.Fatal("expected clone error")
	}
	if vc.Len() != 0 {
		t.Fatalf("failed clone cached, len = %d", vc.Len())
	}

	fc.fail = false
	id, err := vc.VoiceFor(ctx, "spk_0", ref([]byte("audio")))
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if id == "" {
		t.Fatal("empty voice id after retry")
	}
}

func TestVoiceCache_ReferenceNotCalledWhenCached(t *testing.T) {
	fc := &fakeCloner{}
	vc := NewVoiceCache(fc)
	ctx := context.Background()

	if _, err := vc.VoiceFor(ctx, "spk_0", ref([]byte("audio"))); err != nil {
		t.Fatalf("seed VoiceFor: %v", err)
	}

	called := false
	_, err := vc.VoiceFor(ctx, "spk_0", func() ([]byte, error) {
		called = true
		return nil, errors.New("should not be called")
	})
	if err != nil {
		t.Fatalf("cached VoiceFor: %v", err)
	}
	if called {
		t.Error("reference cut for already cloned speaker")
	}
}

func TestVoiceCache_Cleanup(t *testing.T) {
	fc := &fakeCloner{}
	vc := NewVoiceCache(fc)
	ctx := context.Background()

	for _, spk := range []string{"spk_0", "spk_1", "spk_2"} {
		if _, err := vc.VoiceFor(ctx, spk, ref([]byte("audio"))); err != nil {
			t.Fatalf("VoiceFor(%s): %v", spk, err)
		}
	}

	if err := vc.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(fc.deletes) != 3 {
		t.Errorf("deletes = %d, want 3", len(fc.deletes))
	}
	if vc.Len() != 0 {
		t.Errorf("cache not emptied, len = %d", vc.Len())
	}
}
