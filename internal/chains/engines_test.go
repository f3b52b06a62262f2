package chains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/trustscope/trustscope/internal/domain"
)

const (
	btcAddr      = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	aptAddr      = "0x1d8727df513fa2a8785d0834e40b34223daff1affc079574082baadb74b66ee4"
	cosmosAddr   = "cosmos1huydeevpz37sd9snkgul6070mstupukw00xkw9"
	nearAddr     = "alice.near"
	lightningKey = "03864ef025fde8fb587d989186ce6a4a186895ee44a926bfc370e2c366597a3f8f"
	stacksAddr   = "SP000000000000000000002Q6VF78"
	solAddr      = "11111111111111111111111111111111"
)

var (
	tonAddr = "0:" + strings.Repeat("a", 64)
	suiAddr = "0x" + strings.Repeat("ab", 32)
)

func TestBitcoinEngineFetchData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/address/"+btcAddr) {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{
			"chain_stats": {"funded_txo_sum": 250000000, "spent_txo_sum": 100000000, "tx_count": 612},
			"mempool_stats": {"funded_txo_sum": 0, "spent_txo_sum": 0, "tx_count": 1}
		}`))
	}))
	defer srv.Close()

	e := newBitcoinEngine(Spec{Key: "bitcoin", Name: "Bitcoin", Family: FamilyBitcoin, NativeSymbol: "BTC", Decimals: 8, MaxFractionDigits: 8, RPCURL: srv.URL}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), " "+btcAddr+" ")
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if data == nil {
		t.Fatal("expected data")
	}
	if data.Balance != "1.5" {
		t.Errorf("balance = %q, want 1.5", data.Balance)
	}
	if data.TransactionCount != 613 {
		t.Errorf("tx count = %d, want 613", data.TransactionCount)
	}
	if data.IsContract {
		t.Error("utxo chains have no contracts")
	}
}

func TestBitcoinEngineRejectsMalformedAddress(t *testing.T) {
	e := newBitcoinEngine(Spec{Key: "bitcoin", Family: FamilyBitcoin, Decimals: 8, MaxFractionDigits: 8, RPCURL: "http://unreachable.invalid"}, http.DefaultClient, testLogger())
	data, err := e.FetchData(context.Background(), "definitely-not-an-address")
	if err != nil || data != nil {
		t.Fatalf("malformed address: got (%v, %v), want (nil, nil)", data, err)
	}
}

func TestAptosEngineFetchData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/accounts/"+aptAddr):
			w.Write([]byte(`{"sequence_number": "742"}`))
		case strings.Contains(r.URL.Path, "/resource/"):
			w.Write([]byte(`{"data": {"coin": {"value": "312500000"}}}`))
		case strings.HasSuffix(r.URL.Path, "/modules"):
			w.Write([]byte(`[{"bytecode": "0xa11ce0"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := newAptosEngine(Spec{Key: "aptos", Name: "Aptos", Family: FamilyAptos, NativeSymbol: "APT", Decimals: 8, MaxFractionDigits: 6, RPCURL: srv.URL}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), aptAddr)
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if data == nil {
		t.Fatal("expected data")
	}
	if data.Balance != "3.125" {
		t.Errorf("balance = %q, want 3.125", data.Balance)
	}
	if data.TransactionCount != 742 {
		t.Errorf("tx count = %d, want 742", data.TransactionCount)
	}
	if !data.IsContract {
		t.Error("account with modules must be a contract")
	}
}

func TestAptosEngineUnknownAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := newAptosEngine(Spec{Key: "aptos", Family: FamilyAptos, Decimals: 8, MaxFractionDigits: 6, RPCURL: srv.URL}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), aptAddr)
	if err != nil || data != nil {
		t.Fatalf("unknown account: got (%v, %v), want (nil, nil)", data, err)
	}
}

func TestCosmosEngineFetchData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/bank/"):
			w.Write([]byte(`{"balances": [{"denom": "ibc/27394FB0", "amount": "5"}, {"denom": "uatom", "amount": "2500000"}]}`))
		case strings.Contains(r.URL.Path, "/auth/"):
			w.Write([]byte(`{"account": {"sequence": "37"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := newCosmosEngine(Spec{Key: "cosmos", Name: "Cosmos Hub", Family: FamilyCosmos, NativeSymbol: "ATOM", Decimals: 6, MaxFractionDigits: 6, RPCURL: srv.URL}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), cosmosAddr)
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if data == nil {
		t.Fatal("expected data")
	}
	if data.Balance != "2.5" {
		t.Errorf("balance = %q, want 2.5 (native denom only)", data.Balance)
	}
	if data.TransactionCount != 37 {
		t.Errorf("tx count = %d, want 37", data.TransactionCount)
	}
}

func TestNearEngineFetchData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": {"amount": "1250000000000000000000000", "code_hash": "11111111111111111111111111111111"}}`))
	}))
	defer srv.Close()

	e := newNearEngine(Spec{Key: "near", Name: "NEAR", Family: FamilyNear, NativeSymbol: "NEAR", Decimals: 24, MaxFractionDigits: 6, RPCURL: srv.URL}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), nearAddr)
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if data == nil {
		t.Fatal("expected data")
	}
	if data.Balance != "1.25" {
		t.Errorf("balance = %q, want 1.25", data.Balance)
	}
}

func TestNearEngineUnknownAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"cause": {"name": "UNKNOWN_ACCOUNT"}}}`))
	}))
	defer srv.Close()

	e := newNearEngine(Spec{Key: "near", Family: FamilyNear, Decimals: 24, MaxFractionDigits: 6, RPCURL: srv.URL}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), "nobody.near")
	if err != nil || data != nil {
		t.Fatalf("unknown account: got (%v, %v), want (nil, nil)", data, err)
	}
}

func TestLightningEngineFetchData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pub_key": "` + lightningKey + `", "alias": "ACINQ", "capacity": 550000000, "channelcount": 2781}`))
	}))
	defer srv.Close()

	e := newLightningEngine(Spec{Key: "lightning", Name: "Lightning Network", Family: FamilyLightning, NativeSymbol: "BTC", Decimals: 8, MaxFractionDigits: 8, RPCURL: srv.URL}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), lightningKey)
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if data == nil {
		t.Fatal("expected data")
	}
	if data.ResolvedName != "ACINQ" {
		t.Errorf("alias = %q", data.ResolvedName)
	}
	if data.Balance != "5.5" {
		t.Errorf("capacity = %q, want 5.5", data.Balance)
	}
	if data.TransactionCount != 2781 {
		t.Errorf("channel count = %d", data.TransactionCount)
	}
}

func TestStacksEngineContractPrincipal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/balances"):
			w.Write([]byte(`{"stx": {"balance": "42000000"}}`))
		case strings.Contains(r.URL.Path, "/transactions"):
			w.Write([]byte(`{"total": 9}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := newStacksEngine(Spec{Key: "stacks", Name: "Stacks", Family: FamilyStacks, NativeSymbol: "STX", Decimals: 6, MaxFractionDigits: 6, RPCURL: srv.URL}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), stacksAddr+".pox")
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if data == nil {
		t.Fatal("expected data")
	}
	if !data.IsContract {
		t.Error("dotted principal must be a contract")
	}
	if data.Balance != "42" {
		t.Errorf("balance = %q, want 42", data.Balance)
	}
}

func TestStacksEngineTransactionFetchFailureIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/balances"):
			w.Write([]byte(`{"stx": {"balance": "42000000"}}`))
		default:
			http.Error(w, "upstream down", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	e := newStacksEngine(Spec{Key: "stacks", Family: FamilyStacks, Decimals: 6, MaxFractionDigits: 6, RPCURL: srv.URL}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), stacksAddr)
	if err != nil || data != nil {
		t.Fatalf("failed tx lookup: got (%v, %v), want (nil, nil)", data, err)
	}
}

func tonTxPage(n int) string {
	entries := make([]string, n)
	for i := range entries {
		entries[i] = fmt.Sprintf(`{"transaction_id": {"lt": "%d", "hash": "h%d"}}`, i, i)
	}
	return `{"ok": true, "result": [` + strings.Join(entries, ",") + `]}`
}

func tonServer(txHandler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/getAddressInformation":
			w.Write([]byte(`{"ok": true, "result": {"balance": "5000000000", "state": "active", "code": ""}}`))
		case "/getWalletInformation":
			w.Write([]byte(`{"ok": true, "result": {"wallet": true}}`))
		case "/getTransactions":
			txHandler(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestTONEngineFetchData(t *testing.T) {
	srv := tonServer(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tonTxPage(3)))
	})
	defer srv.Close()

	e := newTONEngine(Spec{Key: "ton", Name: "TON", Family: FamilyTON, NativeSymbol: "TON", Decimals: 9, MaxFractionDigits: 6, RPCURL: srv.URL, TxPageCap: 1000}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), tonAddr)
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if data == nil {
		t.Fatal("expected data")
	}
	if data.Balance != "5" {
		t.Errorf("balance = %q, want 5", data.Balance)
	}
	if data.TransactionCount != 3 {
		t.Errorf("tx count = %d, want 3", data.TransactionCount)
	}
	if data.IsContract {
		t.Error("an active wallet is not a contract")
	}
}

func TestTONEngineTransactionPageFailureIsNotFound(t *testing.T) {
	srv := tonServer(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	})
	defer srv.Close()

	e := newTONEngine(Spec{Key: "ton", Family: FamilyTON, Decimals: 9, MaxFractionDigits: 6, RPCURL: srv.URL, TxPageCap: 1000}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), tonAddr)
	if err != nil || data != nil {
		t.Fatalf("failed tx page: got (%v, %v), want (nil, nil)", data, err)
	}
}

func TestTONEngineWalletLookupFailureIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/getAddressInformation":
			w.Write([]byte(`{"ok": true, "result": {"balance": "5000000000", "state": "active", "code": ""}}`))
		default:
			http.Error(w, "upstream down", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	e := newTONEngine(Spec{Key: "ton", Family: FamilyTON, Decimals: 9, MaxFractionDigits: 6, RPCURL: srv.URL, TxPageCap: 1000}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), tonAddr)
	if err != nil || data != nil {
		t.Fatalf("failed wallet lookup: got (%v, %v), want (nil, nil)", data, err)
	}
}

func TestTONEngineCapsTransactionCount(t *testing.T) {
	srv := tonServer(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tonTxPage(100)))
	})
	defer srv.Close()

	e := newTONEngine(Spec{Key: "ton", Family: FamilyTON, Decimals: 9, MaxFractionDigits: 6, RPCURL: srv.URL, TxPageCap: 250}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), tonAddr)
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if data == nil {
		t.Fatal("expected data")
	}
	if data.TransactionCount != 250 {
		t.Errorf("tx count = %d, want the 250 cap", data.TransactionCount)
	}
}

func signaturePage(n int) string {
	entries := make([]string, n)
	for i := range entries {
		entries[i] = fmt.Sprintf(`{"signature": "sig%d"}`, i)
	}
	return "[" + strings.Join(entries, ",") + "]"
}

func solanaServer(sigPage string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Method {
		case "getAccountInfo":
			w.Write([]byte(`{"jsonrpc": "2.0", "id": 1, "result": {"value": {"lamports": 1500000000, "executable": false, "data": ["", "base64"]}}}`))
		case "getSignaturesForAddress":
			w.Write([]byte(`{"jsonrpc": "2.0", "id": 1, "result": ` + sigPage + `}`))
		default:
			http.Error(w, "unknown method", http.StatusBadRequest)
		}
	}))
}

func TestSolanaEngineFetchData(t *testing.T) {
	srv := solanaServer(signaturePage(42))
	defer srv.Close()

	e := newSolanaEngine(Spec{Key: "solana", Name: "Solana", Family: FamilySolana, NativeSymbol: "SOL", Decimals: 9, MaxFractionDigits: 6, RPCURL: srv.URL, TxPageCap: 5000}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), solAddr)
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if data == nil {
		t.Fatal("expected data")
	}
	if data.Balance != "1.5" {
		t.Errorf("balance = %q, want 1.5", data.Balance)
	}
	if data.TransactionCount != 42 {
		t.Errorf("tx count = %d, want 42", data.TransactionCount)
	}
	if data.IsContract {
		t.Error("non-executable account is not a contract")
	}
}

func TestSolanaEngineCapsSignatureCount(t *testing.T) {
	srv := solanaServer(signaturePage(1000))
	defer srv.Close()

	e := newSolanaEngine(Spec{Key: "solana", Family: FamilySolana, Decimals: 9, MaxFractionDigits: 6, RPCURL: srv.URL, TxPageCap: 2500}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), solAddr)
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if data == nil {
		t.Fatal("expected data")
	}
	if data.TransactionCount != 2500 {
		t.Errorf("tx count = %d, want the 2500 cap", data.TransactionCount)
	}
}

func TestSuiEngineCapsDistinctDigests(t *testing.T) {
	digest := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Method {
		case "suix_getBalance":
			w.Write([]byte(`{"jsonrpc": "2.0", "id": 1, "result": {"totalBalance": "2000000000"}}`))
		case "suix_queryTransactionBlocks":
			entries := make([]string, 50)
			for i := range entries {
				digest++
				entries[i] = fmt.Sprintf(`{"digest": "d%d"}`, digest)
			}
			w.Write([]byte(`{"jsonrpc": "2.0", "id": 1, "result": {"data": [` + strings.Join(entries, ",") + `], "nextCursor": "c", "hasNextPage": true}}`))
		default:
			http.Error(w, "unknown method", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	e := newSuiEngine(Spec{Key: "sui", Name: "Sui", Family: FamilySui, NativeSymbol: "SUI", Decimals: 9, MaxFractionDigits: 6, RPCURL: srv.URL, TxPageCap: 120}, srv.Client(), testLogger())
	data, err := e.FetchData(context.Background(), suiAddr)
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	if data == nil {
		t.Fatal("expected data")
	}
	if data.Balance != "2" {
		t.Errorf("balance = %q, want 2", data.Balance)
	}
	if data.TransactionCount != 120 {
		t.Errorf("tx count = %d, want the 120 cap", data.TransactionCount)
	}
}

// Analyze composes fetch and the baseline scoring rules; check one engine
// end to end through a fake upstream.
func TestAnalyzeScoresFetchedData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"chain_stats": {"funded_txo_sum": 300000000, "spent_txo_sum": 0, "tx_count": 900},
			"mempool_stats": {"funded_txo_sum": 0, "spent_txo_sum": 0, "tx_count": 0}
		}`))
	}))
	defer srv.Close()

	e := newBitcoinEngine(Spec{Key: "bitcoin", Name: "Bitcoin", Family: FamilyBitcoin, NativeSymbol: "BTC", Decimals: 8, MaxFractionDigits: 8, RPCURL: srv.URL}, srv.Client(), testLogger())
	res, err := e.Analyze(context.Background(), btcAddr)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	// 50 + 20 (high activity) + 15 (significant balance) + 10 (non-contract) = 95
	if res.Score != 95 {
		t.Errorf("score = %d, want 95", res.Score)
	}
	if res.RiskLevel != domain.RiskSafe {
		t.Errorf("risk level = %q, want %q", res.RiskLevel, domain.RiskSafe)
	}
	if len(res.Flags) != 2 || res.Flags[0] != "High Activity" || res.Flags[1] != "Significant Balance" {
		t.Errorf("flags = %v", res.Flags)
	}
}

func TestAnalyzeNotFound(t *testing.T) {
	e := newBitcoinEngine(Spec{Key: "bitcoin", Name: "Bitcoin", Family: FamilyBitcoin, Decimals: 8, MaxFractionDigits: 8, RPCURL: "http://unreachable.invalid"}, http.DefaultClient, testLogger())
	_, err := e.Analyze(context.Background(), "garbage")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
