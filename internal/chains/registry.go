package chains

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Family selects the generic engine implementation used for a chain.
type Family string

const (
	FamilyEVM       Family = "evm"
	FamilySolana    Family = "solana"
	FamilySui       Family = "sui"
	FamilyAptos     Family = "aptos"
	FamilyTON       Family = "ton"
	FamilyBitcoin   Family = "bitcoin" // Bitcoin and Liquid via an Esplora-style API
	FamilyLightning Family = "lightning"
	FamilyStacks    Family = "stacks"
	FamilyCosmos    Family = "cosmos"
	FamilyPolkadot  Family = "polkadot"
	FamilyNear      Family = "near"
)

// Spec is the data-driven configuration for one chain: a single generic
// engine per family is parameterized by this value rather than one type per
// chain.
type Spec struct {
	ChainID           int    // EVM numeric chain ID, 0 for non-EVM chains
	Key               string // canonical identifier ("1", "solana", "ton", ...)
	Name              string
	Family            Family
	NativeSymbol      string
	Decimals          int
	MaxFractionDigits int
	RPCURL            string
	TxPageCap         int    // paginated tx counting stops here; 0 = no paging
	CoinID            string // price-lookup identifier for the native currency
	Testnet           bool
}

// defaultSpecs is the built-in chain table. RPC endpoints default to public
// infrastructure and can be overridden per key from configuration.
var defaultSpecs = []Spec{
	{ChainID: 1, Key: "1", Name: "Ethereum", Family: FamilyEVM, NativeSymbol: "ETH", Decimals: 18, MaxFractionDigits: 6, RPCURL: "https://eth.llamarpc.com", CoinID: "ethereum"},
	{ChainID: 10, Key: "10", Name: "Optimism", Family: FamilyEVM, NativeSymbol: "ETH", Decimals: 18, MaxFractionDigits: 6, RPCURL: "https://mainnet.optimism.io", CoinID: "ethereum"},
	{ChainID: 56, Key: "56", Name: "BNB Smart Chain", Family: FamilyEVM, NativeSymbol: "BNB", Decimals: 18, MaxFractionDigits: 6, RPCURL: "https://bsc-dataseed.binance.org", CoinID: "binancecoin"},
	{ChainID: 137, Key: "137", Name: "Polygon", Family: FamilyEVM, NativeSymbol: "POL", Decimals: 18, MaxFractionDigits: 6, RPCURL: "https://polygon-rpc.com", CoinID: "polygon-ecosystem-token"},
	{ChainID: 8453, Key: "8453", Name: "Base", Family: FamilyEVM, NativeSymbol: "ETH", Decimals: 18, MaxFractionDigits: 6, RPCURL: "https://mainnet.base.org", CoinID: "ethereum"},
	{ChainID: 42161, Key: "42161", Name: "Arbitrum One", Family: FamilyEVM, NativeSymbol: "ETH", Decimals: 18, MaxFractionDigits: 6, RPCURL: "https://arb1.arbitrum.io/rpc", CoinID: "ethereum"},
	{ChainID: 43114, Key: "43114", Name: "Avalanche C-Chain", Family: FamilyEVM, NativeSymbol: "AVAX", Decimals: 18, MaxFractionDigits: 6, RPCURL: "https://api.avax.network/ext/bc/C/rpc", CoinID: "avalanche-2"},
	{ChainID: 11155111, Key: "11155111", Name: "Sepolia", Family: FamilyEVM, NativeSymbol: "ETH", Decimals: 18, MaxFractionDigits: 6, RPCURL: "https://rpc.sepolia.org", CoinID: "", Testnet: true},

	{Key: "solana", Name: "Solana", Family: FamilySolana, NativeSymbol: "SOL", Decimals: 9, MaxFractionDigits: 6, RPCURL: "https://api.mainnet-beta.solana.com", TxPageCap: 5000, CoinID: "solana"},
	{Key: "sui", Name: "Sui", Family: FamilySui, NativeSymbol: "SUI", Decimals: 9, MaxFractionDigits: 6, RPCURL: "https://fullnode.mainnet.sui.io", TxPageCap: 2000, CoinID: "sui"},
	{Key: "aptos", Name: "Aptos", Family: FamilyAptos, NativeSymbol: "APT", Decimals: 8, MaxFractionDigits: 6, RPCURL: "https://fullnode.mainnet.aptoslabs.com/v1", CoinID: "aptos"},
	{Key: "ton", Name: "TON", Family: FamilyTON, NativeSymbol: "TON", Decimals: 9, MaxFractionDigits: 6, RPCURL: "https://toncenter.com/api/v2", TxPageCap: 1000, CoinID: "the-open-network"},
	{Key: "bitcoin", Name: "Bitcoin", Family: FamilyBitcoin, NativeSymbol: "BTC", Decimals: 8, MaxFractionDigits: 8, RPCURL: "https://blockstream.info/api", CoinID: "bitcoin"},
	{Key: "liquid", Name: "Liquid Network", Family: FamilyBitcoin, NativeSymbol: "L-BTC", Decimals: 8, MaxFractionDigits: 8, RPCURL: "https://blockstream.info/liquid/api", CoinID: "bitcoin"},
	{Key: "lightning", Name: "Lightning Network", Family: FamilyLightning, NativeSymbol: "BTC", Decimals: 8, MaxFractionDigits: 8, RPCURL: "https://1ml.com", CoinID: "bitcoin"},
	{Key: "stacks", Name: "Stacks", Family: FamilyStacks, NativeSymbol: "STX", Decimals: 6, MaxFractionDigits: 6, RPCURL: "https://api.hiro.so", CoinID: "blockstack"},
	{Key: "cosmos", Name: "Cosmos Hub", Family: FamilyCosmos, NativeSymbol: "ATOM", Decimals: 6, MaxFractionDigits: 6, RPCURL: "https://cosmos-rest.publicnode.com", CoinID: "cosmos"},
	{Key: "polkadot", Name: "Polkadot", Family: FamilyPolkadot, NativeSymbol: "DOT", Decimals: 10, MaxFractionDigits: 6, RPCURL: "https://polkadot-public-sidecar.parity-chains.parity.io", CoinID: "polkadot"},
	{Key: "near", Name: "NEAR", Family: FamilyNear, NativeSymbol: "NEAR", Decimals: 24, MaxFractionDigits: 6, RPCURL: "https://rpc.mainnet.near.org", CoinID: "near"},
}

// defaultTestnetKey is the engine unknown numeric chain IDs fall back to, so
// registry lookups are total functions.
const defaultTestnetKey = "11155111"

// familyByKey resolves a chain key to its address-encoding family without a
// Registry. Cache and audit key builders use it to normalize queries.
var familyByKey = func() map[string]Family {
	m := make(map[string]Family, len(defaultSpecs))
	for _, s := range defaultSpecs {
		m[s.Key] = s.Family
	}
	return m
}()

// NormalizeQuery canonicalizes a query for this chain's address encoding.
func (s Spec) NormalizeQuery(query string) string {
	return normalizeQuery(s.Family, query)
}

// Registry maps chain identifiers (decimal EVM chain IDs or symbolic keys)
// to engines. Engines are constructed lazily and reused.
type Registry struct {
	specs      map[string]Spec
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	engines map[string]Engine
}

// NewRegistry builds a Registry from the built-in chain table with per-key
// RPC URL overrides applied.
func NewRegistry(rpcOverrides map[string]string, logger *slog.Logger) *Registry {
	specs := make(map[string]Spec, len(defaultSpecs))
	for _, s := range defaultSpecs {
		if url, ok := rpcOverrides[s.Key]; ok && url != "" {
			s.RPCURL = url
		}
		specs[s.Key] = s
	}
	return &Registry{
		specs:      specs,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With(slog.String("component", "chains")),
		engines:    make(map[string]Engine),
	}
}

// Lookup resolves a chain identifier to its Spec. Unknown numeric IDs fall
// back to the default testnet spec; unknown symbolic keys report !ok.
func (r *Registry) Lookup(identifier string) (Spec, bool) {
	if s, ok := r.specs[identifier]; ok {
		return s, true
	}
	if _, err := strconv.Atoi(identifier); err == nil {
		return r.specs[defaultTestnetKey], true
	}
	return Spec{}, false
}

// EngineFor returns the engine for a chain identifier. For numeric IDs the
// lookup is total (unknown IDs resolve to the default testnet engine);
// unknown symbolic keys report !ok.
func (r *Registry) EngineFor(identifier string) (Engine, bool) {
	spec, ok := r.Lookup(identifier)
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[spec.Key]; ok {
		return e, true
	}

	e := r.build(spec)
	r.engines[spec.Key] = e
	return e, true
}

// Specs returns every configured chain, sorted by key for stable listings.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (r *Registry) build(spec Spec) Engine {
	switch spec.Family {
	case FamilyEVM:
		return newEVMEngine(spec, r.logger)
	case FamilySolana:
		return newSolanaEngine(spec, r.httpClient, r.logger)
	case FamilySui:
		return newSuiEngine(spec, r.httpClient, r.logger)
	case FamilyAptos:
		return newAptosEngine(spec, r.httpClient, r.logger)
	case FamilyTON:
		return newTONEngine(spec, r.httpClient, r.logger)
	case FamilyBitcoin:
		return newBitcoinEngine(spec, r.httpClient, r.logger)
	case FamilyLightning:
		return newLightningEngine(spec, r.httpClient, r.logger)
	case FamilyStacks:
		return newStacksEngine(spec, r.httpClient, r.logger)
	case FamilyCosmos:
		return newCosmosEngine(spec, r.httpClient, r.logger)
	case FamilyPolkadot:
		return newPolkadotEngine(spec, r.httpClient, r.logger)
	case FamilyNear:
		return newNearEngine(spec, r.httpClient, r.logger)
	default:
		// Unreachable with the built-in table; fall back to the testnet
		// EVM engine to keep EngineFor total.
		return newEVMEngine(r.specs[defaultTestnetKey], r.logger)
	}
}
