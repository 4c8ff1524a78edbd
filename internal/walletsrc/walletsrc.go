// ======================================
// File: internal/walletsrc/walletsrc.go
// ======================================
// Package walletsrc implements the read-only wallet source interface the
// Orchestrator consumes: it lists the fleet and fetches on-chain balances,
// but it never hands a private key to anything other than DexClient.execute,
// and never persists one beyond the provider closure below.
package walletsrc

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"

	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

// PrivateKeyProvider yields a wallet's signing key just-in-time. DexClient
// is the only caller; the Source never exposes the key itself.
type PrivateKeyProvider func() (solana.PrivateKey, error)

// Entry is one fleet member as returned by List.
type Entry struct {
	Index              int
	Address            string
	PrivateKeyProvider PrivateKeyProvider
}

// Source is the read-only query interface consumed by the Orchestrator.
// The core never persists keys; it requests them just-in-time from the
// provider on execute.
type Source interface {
	List() []Entry
	Balance(ctx context.Context, address, mint string) (uint64, error)
}

// csvSource loads wallets once from a CSV file with columns
// [name, private_key_base58] and serves balances from a Solana RPC.
type csvSource struct {
	entries   []Entry
	keys      map[int]solana.PrivateKey
	rpcClient *rpc.Client
}

// Load reads path and constructs a Source backed by rpcEndpoint for
// balance lookups.
func Load(path, rpcEndpoint string) (Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wallet file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read wallet CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("wallet CSV is empty or missing data")
	}

	src := &csvSource{
		keys:      make(map[int]solana.PrivateKey),
		rpcClient: rpc.New(rpcEndpoint),
	}
	index := 0
	for _, record := range records[1:] {
		if len(record) != 2 {
			continue
		}
		key, err := decodePrivateKey(record[1])
		if err != nil {
			continue
		}
		idx := index
		src.keys[idx] = key
		src.entries = append(src.entries, Entry{
			Index:              idx,
			Address:            key.PublicKey().String(),
			PrivateKeyProvider: func() (solana.PrivateKey, error) { return src.keys[idx], nil },
		})
		index++
	}
	if len(src.entries) == 0 {
		return nil, fmt.Errorf("wallet CSV produced no usable wallets")
	}
	return src, nil
}

func (s *csvSource) List() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Balance fetches the base-unit balance of mint for address. The native
// SOL mint ("So11111111111111111111111111111111111111112" by convention,
// or the empty string) is special-cased to the lamport balance; any other
// mint is resolved through the associated token account.
func (s *csvSource) Balance(ctx context.Context, address, mint string) (uint64, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid wallet address %q: %w", address, err)
	}

	if mint == "" || mint == solana.SolMint.String() {
		out, err := s.rpcClient.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
		if err != nil {
			return 0, fmt.Errorf("get lamport balance: %w", err)
		}
		return out.Value, nil
	}

	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint %q: %w", mint, err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mintKey)
	if err != nil {
		return 0, fmt.Errorf("derive associated token account: %w", err)
	}
	out, err := s.rpcClient.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get token account balance: %w", err)
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token balance amount: %w", err)
	}
	return amount, nil
}

// decodePrivateKey accepts the base58 form the wallet CSV stores keys in.
// Base64-vs-base58 confusion is handled only at DexClient.execute's edge
// adapter, per the design notes; this loader expects the canonical form.
func decodePrivateKey(privateKeyBase58 string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(raw))
	}
	return solana.PrivateKey(raw), nil
}

// ToSwapWallets projects Source entries into the swap package's Wallet
// view used by AmountPlanner, dropping the signing key entirely.
func ToSwapWallets(entries []Entry) []swap.Wallet {
	out := make([]swap.Wallet, len(entries))
	for i, e := range entries {
		out[i] = swap.Wallet{
			Index:         e.Index,
			Address:       e.Address,
			HasSigningKey: e.PrivateKeyProvider != nil,
		}
	}
	return out
}
