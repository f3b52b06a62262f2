package chains

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"

	"github.com/trustscope/trustscope/internal/domain"
)

// ensRegistryAddr is the ENS registry, identical across deployments.
var ensRegistryAddr = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

// 4-byte selectors for the calls the engine issues directly.
var (
	selResolver    = crypto.Keccak256([]byte("resolver(bytes32)"))[:4]
	selAddr        = crypto.Keccak256([]byte("addr(bytes32)"))[:4]
	selName        = crypto.Keccak256([]byte("name()"))[:4]
	selSymbol      = crypto.Keccak256([]byte("symbol()"))[:4]
	selDecimals    = crypto.Keccak256([]byte("decimals()"))[:4]
	selTotalSupply = crypto.Keccak256([]byte("totalSupply()"))[:4]
)

// evmEngine serves every EVM chain; the Spec carries everything that differs
// between them. Name resolution runs only on the canonical chain (ID 1).
type evmEngine struct {
	spec   Spec
	logger *slog.Logger

	dialOnce sync.Once
	client   *ethclient.Client
	dialErr  error
}

func newEVMEngine(spec Spec, logger *slog.Logger) *evmEngine {
	return &evmEngine{
		spec:   spec,
		logger: logger.With(slog.String("chain", spec.Key)),
	}
}

func (e *evmEngine) Spec() Spec { return e.spec }

func (e *evmEngine) Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error) {
	return analyze(ctx, e, identifier)
}

// FetchData resolves the identifier (hex address, or an ENS name on chain 1),
// then fetches balance, transaction count, and bytecode concurrently. For
// contracts it additionally attempts ERC-20 metadata reads, tolerating
// partial failure of any single field.
func (e *evmEngine) FetchData(ctx context.Context, identifier string) (*domain.EntityData, error) {
	client, err := e.dial()
	if err != nil {
		e.logger.Warn("rpc dial failed", slog.String("error", err.Error()))
		return nil, nil
	}

	query := normalizeQuery(FamilyEVM, identifier)
	addr, resolvedName, ok := e.resolveIdentifier(ctx, client, query)
	if !ok {
		return nil, nil
	}

	var (
		balance *big.Int
		nonce   uint64
		code    []byte
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = client.BalanceAt(gctx, addr, nil)
		return err
	})
	g.Go(func() error {
		var err error
		nonce, err = client.NonceAt(gctx, addr, nil)
		return err
	})
	g.Go(func() error {
		var err error
		code, err = client.CodeAt(gctx, addr, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		e.logger.Warn("entity fetch failed",
			slog.String("address", addr.Hex()),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	data := &domain.EntityData{
		Address:          addr.Hex(),
		ResolvedName:     resolvedName,
		Balance:          FormatUnits(balance, e.spec.Decimals, e.spec.MaxFractionDigits),
		TransactionCount: int(nonce),
		IsContract:       len(code) > 0,
		CodeSize:         len(code),
	}
	if data.IsContract {
		data.Token = e.readTokenMetadata(ctx, client, addr)
	}
	return data, nil
}

// resolveIdentifier turns the query into a concrete address. ENS-style names
// resolve only on the canonical chain; an unresolvable name is not-found,
// never a fabricated substitute.
func (e *evmEngine) resolveIdentifier(ctx context.Context, client *ethclient.Client, query string) (common.Address, string, bool) {
	if common.IsHexAddress(query) {
		return common.HexToAddress(query), "", true
	}
	if e.spec.ChainID != 1 || !strings.Contains(query, ".") {
		return common.Address{}, "", false
	}

	addr, err := e.resolveENS(ctx, client, query)
	if err != nil {
		e.logger.Debug("name resolution failed",
			slog.String("name", query),
			slog.String("error", err.Error()),
		)
		return common.Address{}, "", false
	}
	return addr, query, true
}

// resolveENS performs the two-step registry/resolver lookup with raw
// eth_call, avoiding a contract-binding dependency for two fixed methods.
func (e *evmEngine) resolveENS(ctx context.Context, client *ethclient.Client, name string) (common.Address, error) {
	node := namehash(name)

	out, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &ensRegistryAddr,
		Data: append(append([]byte{}, selResolver...), node[:]...),
	}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("registry call: %w", err)
	}
	resolver := wordToAddress(out)
	if resolver == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no resolver for %s", name)
	}

	out, err = client.CallContract(ctx, ethereum.CallMsg{
		To:   &resolver,
		Data: append(append([]byte{}, selAddr...), node[:]...),
	}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolver call: %w", err)
	}
	addr := wordToAddress(out)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("name %s resolves to zero address", name)
	}
	return addr, nil
}

// readTokenMetadata reads the four ERC-20 views. Each read may fail on its
// own; a contract exposing none of them is simply not a token.
func (e *evmEngine) readTokenMetadata(ctx context.Context, client *ethclient.Client, addr common.Address) *domain.TokenMetadata {
	call := func(selector []byte) []byte {
		out, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: selector}, nil)
		if err != nil {
			return nil
		}
		return out
	}

	meta := domain.TokenMetadata{
		Name:   decodeABIString(call(selName)),
		Symbol: decodeABIString(call(selSymbol)),
	}
	if out := call(selDecimals); len(out) >= 32 {
		meta.Decimals = int(new(big.Int).SetBytes(out[:32]).Int64())
	}
	if out := call(selTotalSupply); len(out) >= 32 {
		supply := new(big.Int).SetBytes(out[:32])
		meta.TotalSupply = FormatUnits(supply, meta.Decimals, e.spec.MaxFractionDigits)
	}

	// A contract with neither a symbol nor a supply is not a token.
	if meta.Symbol == "" && meta.TotalSupply == "" {
		return nil
	}
	return &meta
}

func (e *evmEngine) dial() (*ethclient.Client, error) {
	e.dialOnce.Do(func() {
		e.client, e.dialErr = ethclient.Dial(e.spec.RPCURL)
	})
	return e.client, e.dialErr
}

// namehash implements the ENS name hashing algorithm (EIP-137).
func namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		copy(node[:], crypto.Keccak256(node[:], labelHash))
	}
	return node
}

// wordToAddress extracts an address from a 32-byte ABI word.
func wordToAddress(out []byte) common.Address {
	if len(out) < 32 {
		return common.Address{}
	}
	return common.BytesToAddress(out[12:32])
}

// decodeABIString decodes a dynamically-encoded ABI string return value,
// falling back to treating the payload as a right-padded bytes32 (older
// tokens like MKR encode name/symbol that way).
func decodeABIString(out []byte) string {
	if len(out) == 0 {
		return ""
	}
	if len(out) >= 64 {
		offset := new(big.Int).SetBytes(out[:32]).Uint64()
		if offset+32 <= uint64(len(out)) {
			length := new(big.Int).SetBytes(out[offset : offset+32]).Uint64()
			if offset+32+length <= uint64(len(out)) {
				return strings.ToValidUTF8(string(out[offset+32:offset+32+length]), "")
			}
		}
	}
	// bytes32 fallback: trim zero padding.
	trimmed := strings.TrimRight(string(out[:min(32, len(out))]), "\x00")
	return strings.ToValidUTF8(trimmed, "")
}
