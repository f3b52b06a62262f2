package social

import (
	"context"
	"errors"
	"testing"

	"github.com/trustscope/trustscope/internal/domain"
)

func TestSimulatedResolverDeterministic(t *testing.T) {
	r := NewSimulatedResolver()
	a, err := r.Resolve(context.Background(), "0xdAC17F958D2ee523a2206206994597C13D831ec7", 80)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, _ := r.Resolve(context.Background(), "  0xdac17f958d2ee523a2206206994597c13d831ec7 ", 80)
	if a != b {
		t.Errorf("same query must yield the same signal: %+v vs %+v", a, b)
	}
}

func TestSimulatedResolverBounds(t *testing.T) {
	r := NewSimulatedResolver()
	for _, seed := range []int{0, 5, 50, 95, 100} {
		sig, err := r.Resolve(context.Background(), "vitalik.eth", seed)
		if err != nil {
			t.Fatalf("Resolve(seed=%d): %v", seed, err)
		}
		if sig.Score < 0 || sig.Score > 100 {
			t.Errorf("seed %d: score %d out of range", seed, sig.Score)
		}
		if sig.Mentions < 0 {
			t.Errorf("seed %d: negative mentions %d", seed, sig.Mentions)
		}
	}
}

func TestSimulatedResolverExtremeSeedsAmplifyVolume(t *testing.T) {
	r := NewSimulatedResolver()
	mid, _ := r.Resolve(context.Background(), "someaddress", 50)
	high, _ := r.Resolve(context.Background(), "someaddress", 100)
	low, _ := r.Resolve(context.Background(), "someaddress", 0)

	if high.Mentions <= mid.Mentions {
		t.Errorf("high seed must amplify mentions: %d <= %d", high.Mentions, mid.Mentions)
	}
	if low.Mentions <= mid.Mentions {
		t.Errorf("very low seed must also amplify mentions: %d <= %d", low.Mentions, mid.Mentions)
	}
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) Fetch(context.Context, string) (domain.SocialSignal, error) {
	return domain.SocialSignal{}, errors.New("upstream down")
}

type fixedSource struct {
	sig domain.SocialSignal
}

func (fixedSource) Name() string { return "fixed" }
func (s fixedSource) Fetch(context.Context, string) (domain.SocialSignal, error) {
	return s.sig, nil
}

func TestMultiSourceToleratesFailingSource(t *testing.T) {
	m := NewMultiSourceResolverWith(NewSimulatedResolver(),
		failingSource{},
		fixedSource{sig: domain.SocialSignal{Score: 60, Mentions: 120}},
		fixedSource{sig: domain.SocialSignal{Score: 80, Mentions: 300, Trending: true}},
	)
	sig, err := m.Resolve(context.Background(), "q", 50)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sig.Mentions != 420 {
		t.Errorf("mentions = %d, want sum of healthy sources 420", sig.Mentions)
	}
	if sig.Score != 70 {
		t.Errorf("score = %d, want mean of healthy sources 70", sig.Score)
	}
	if !sig.Trending {
		t.Error("trending must propagate from any source")
	}
}

func TestMultiSourceAllSourcesDownFallsBack(t *testing.T) {
	m := NewMultiSourceResolverWith(NewSimulatedResolver(), failingSource{}, failingSource{})
	sig, err := m.Resolve(context.Background(), "q", 75)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want, _ := NewSimulatedResolver().Resolve(context.Background(), "q", 75)
	if sig != want {
		t.Errorf("fallback signal = %+v, want simulated %+v", sig, want)
	}
}

func TestMultiSourceDefaultWiring(t *testing.T) {
	m := NewMultiSourceResolver()
	a, err := m.Resolve(context.Background(), "trustscope", 50)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, _ := m.Resolve(context.Background(), "trustscope", 50)
	if a != b {
		t.Errorf("default wiring must stay deterministic: %+v vs %+v", a, b)
	}
}
