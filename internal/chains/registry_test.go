package chains

import (
	"io"
	"log/slog"
	"sort"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryLookupKnownChains(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	for _, key := range []string{"1", "56", "137", "solana", "sui", "aptos", "ton", "bitcoin", "liquid", "lightning", "stacks", "cosmos", "polkadot", "near"} {
		spec, ok := r.Lookup(key)
		if !ok {
			t.Fatalf("Lookup(%q): not found", key)
		}
		if spec.Key != key {
			t.Errorf("Lookup(%q): got key %q", key, spec.Key)
		}
	}
}

func TestRegistryUnknownNumericFallsBackToTestnet(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	spec, ok := r.Lookup("999999")
	if !ok {
		t.Fatal("numeric lookup must be total")
	}
	if spec.Key != defaultTestnetKey || !spec.Testnet {
		t.Errorf("got %q (testnet=%v), want testnet fallback %q", spec.Key, spec.Testnet, defaultTestnetKey)
	}
}

func TestRegistryUnknownSymbolicKey(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	if _, ok := r.Lookup("dogecoin"); ok {
		t.Error("unknown symbolic key must report !ok")
	}
	if _, ok := r.EngineFor("dogecoin"); ok {
		t.Error("EngineFor must report !ok for unknown symbolic key")
	}
}

func TestRegistryRPCOverride(t *testing.T) {
	r := NewRegistry(map[string]string{"1": "http://localhost:8545"}, testLogger())
	spec, _ := r.Lookup("1")
	if spec.RPCURL != "http://localhost:8545" {
		t.Errorf("override not applied: %q", spec.RPCURL)
	}
	other, _ := r.Lookup("solana")
	if other.RPCURL == "http://localhost:8545" {
		t.Error("override leaked to other chains")
	}
}

func TestRegistryEngineReuse(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	a, ok := r.EngineFor("bitcoin")
	if !ok {
		t.Fatal("bitcoin engine missing")
	}
	b, _ := r.EngineFor("bitcoin")
	if a != b {
		t.Error("engines must be cached and reused")
	}
	if a.Spec().Key != "bitcoin" {
		t.Errorf("engine spec key = %q", a.Spec().Key)
	}
}

func TestRegistrySpecsSorted(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	specs := r.Specs()
	if len(specs) != len(defaultSpecs) {
		t.Fatalf("got %d specs, want %d", len(specs), len(defaultSpecs))
	}
	if !sort.SliceIsSorted(specs, func(i, j int) bool { return specs[i].Key < specs[j].Key }) {
		t.Error("Specs() must be sorted by key")
	}
}

func TestEveryFamilyBuildable(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	seen := map[Family]bool{}
	for _, s := range defaultSpecs {
		if seen[s.Family] {
			continue
		}
		seen[s.Family] = true
		if _, ok := r.EngineFor(s.Key); !ok {
			t.Errorf("no engine for family %q (key %q)", s.Family, s.Key)
		}
	}
}
