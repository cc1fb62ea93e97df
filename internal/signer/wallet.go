package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	werr "github.com/ggonzalez94/walletd/internal/errors"
)

// Wallet is a transaction-capable signing handle bound to one RPC endpoint.
// It holds the only in-memory copy of a decrypted custodial key; callers
// must not retain it beyond the operation that needed it, and nothing here
// ever logs or serializes the key.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	rpcURL     string
}

// NewWallet parses a hex-encoded private key and binds it to rpcURL.
func NewWallet(privateKeyHex, rpcURL string) (*Wallet, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if clean == "" {
		return nil, werr.New(werr.CodeUsage, "empty private key")
	}
	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, werr.Wrap(werr.CodeUsage, "parse private key", err)
	}
	pub, ok := pk.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, werr.New(werr.CodeInternal, "invalid ECDSA public key")
	}
	return &Wallet{
		privateKey: pk,
		address:    crypto.PubkeyToAddress(*pub),
		rpcURL:     strings.TrimSpace(rpcURL),
	}, nil
}

// AddressFor derives the account address of a hex-encoded private key
// without building a signing handle.
func AddressFor(privateKeyHex string) (common.Address, error) {
	w, err := NewWallet(privateKeyHex, "")
	if err != nil {
		return common.Address{}, err
	}
	return w.Address(), nil
}

func (w *Wallet) Address() common.Address {
	return w.address
}

func (w *Wallet) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if w == nil || w.privateKey == nil {
		return nil, werr.New(werr.CodeInternal, "signer is not initialized")
	}
	eip155 := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, eip155, w.privateKey)
}

// RPCURL returns the endpoint the wallet is bound to.
func (w *Wallet) RPCURL() string {
	return w.rpcURL
}

// Dial connects to the bound RPC endpoint. Callers own the client and must
// Close it.
func (w *Wallet) Dial(ctx context.Context) (*ethclient.Client, error) {
	if w.rpcURL == "" {
		return nil, werr.New(werr.CodeUsage, "wallet has no RPC endpoint configured")
	}
	return Dial(ctx, w.rpcURL)
}

// Dial connects to an RPC endpoint without a signing key, for read-only
// queries like balances.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, werr.Wrap(werr.CodeUnavailable, "connect rpc", err)
	}
	return client, nil
}
