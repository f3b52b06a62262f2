package scoring

import (
	"reflect"
	"testing"

	"github.com/trustscope/trustscope/internal/domain"
)

func TestBaseline_NeutralBands(t *testing.T) {
	// tx count and balance both inside the neutral bands: only the EOA
	// bonus applies and no flags are emitted.
	got := Baseline(Input{TransactionCount: 100, BalanceNative: 0.5})

	if got.BaselineScore != 60 {
		t.Errorf("expected score 60, got %d", got.BaselineScore)
	}
	if len(got.Flags) != 0 {
		t.Errorf("expected no flags, got %v", got.Flags)
	}
}

func TestBaseline_TokenContractClampsTo100(t *testing.T) {
	// 50 + 20 + 15 - 10 + 30 = 105, clamped.
	got := Baseline(Input{TransactionCount: 600, BalanceNative: 2.0, IsContract: true, IsToken: true})

	if got.BaselineScore != 100 {
		t.Errorf("expected score 100, got %d", got.BaselineScore)
	}
	want := []string{FlagHighActivity, FlagSignificantBalance, FlagTokenContract}
	if !reflect.DeepEqual(got.Flags, want) {
		t.Errorf("expected flags %v, got %v", want, got.Flags)
	}
}

func TestBaseline_LowActivityEmptyWallet(t *testing.T) {
	// 50 - 10 - 5 + 10 = 45.
	got := Baseline(Input{TransactionCount: 0, BalanceNative: 0})

	if got.BaselineScore != 45 {
		t.Errorf("expected score 45, got %d", got.BaselineScore)
	}
	want := []string{FlagLowActivity}
	if !reflect.DeepEqual(got.Flags, want) {
		t.Errorf("expected flags %v, got %v", want, got.Flags)
	}
}

func TestBaseline_UnverifiedContract(t *testing.T) {
	// 50 - 10 with no token metadata: contract penalty, no EOA bonus.
	got := Baseline(Input{TransactionCount: 100, BalanceNative: 0.5, IsContract: true})

	if got.BaselineScore != 40 {
		t.Errorf("expected score 40, got %d", got.BaselineScore)
	}
	want := []string{FlagUnverifiedContract}
	if !reflect.DeepEqual(got.Flags, want) {
		t.Errorf("expected flags %v, got %v", want, got.Flags)
	}
}

func TestBaseline_Deterministic(t *testing.T) {
	in := Input{TransactionCount: 501, BalanceNative: 1.5, IsContract: true, IsToken: false}
	first := Baseline(in)
	for i := 0; i < 10; i++ {
		if got := Baseline(in); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

func TestBaseline_ScoreBounds(t *testing.T) {
	inputs := []Input{
		{TransactionCount: -1, BalanceNative: -5},
		{TransactionCount: 0, BalanceNative: 0, IsContract: true},
		{TransactionCount: 1_000_000, BalanceNative: 1e9, IsContract: true, IsToken: true},
		{TransactionCount: 4, BalanceNative: 0},
		{TransactionCount: 5, BalanceNative: 1.0},
	}
	for _, in := range inputs {
		got := Baseline(in)
		if got.BaselineScore < 0 || got.BaselineScore > 100 {
			t.Errorf("score out of bounds for %+v: %d", in, got.BaselineScore)
		}
	}
}

func TestApplyKnownOverride(t *testing.T) {
	signals := domain.BaselineSignals{BaselineScore: 60, Flags: []string{FlagHighActivity}}
	known := domain.KnownEntity{Name: "Tether USD", Score: 95}

	got := ApplyKnownOverride(signals, known)
	if got.BaselineScore != 95 {
		t.Errorf("expected overridden score 95, got %d", got.BaselineScore)
	}
	want := []string{FlagHighActivity, FlagVerifiedEntity}
	if !reflect.DeepEqual(got.Flags, want) {
		t.Errorf("expected flags %v, got %v", want, got.Flags)
	}

	// Applying twice must not duplicate the verified flag.
	again := ApplyKnownOverride(got, known)
	if !reflect.DeepEqual(again.Flags, want) {
		t.Errorf("verified flag duplicated: %v", again.Flags)
	}
}

func TestLookupKnown_CaseInsensitive(t *testing.T) {
	entry, ok := LookupKnown("1", "0xDAC17F958D2ee523a2206206994597C13D831ec7")
	if !ok {
		t.Fatal("expected known entity for mainnet USDT")
	}
	if entry.Symbol != "USDT" {
		t.Errorf("expected symbol USDT, got %s", entry.Symbol)
	}

	if _, ok := LookupKnown("999", "0xdac17f958d2ee523a2206206994597c13d831ec7"); ok {
		t.Error("expected no match on unknown chain")
	}
}
