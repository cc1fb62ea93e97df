package signer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const testPrivateKey = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

func TestNewWalletDerivesAddress(t *testing.T) {
	w, err := NewWallet(testPrivateKey, "https://mainnet.base.org")
	if err != nil {
		t.Fatalf("NewWallet failed: %v", err)
	}
	if w.Address() == (common.Address{}) {
		t.Fatal("expected non-zero address")
	}

	// 0x prefix is accepted and yields the same account.
	prefixed, err := NewWallet("0x"+testPrivateKey, "")
	if err != nil {
		t.Fatalf("NewWallet with prefix failed: %v", err)
	}
	if prefixed.Address() != w.Address() {
		t.Fatal("prefix changed derived address")
	}
}

func TestAddressForMatchesWallet(t *testing.T) {
	w, err := NewWallet(testPrivateKey, "")
	if err != nil {
		t.Fatalf("NewWallet failed: %v", err)
	}
	addr, err := AddressFor(testPrivateKey)
	if err != nil {
		t.Fatalf("AddressFor failed: %v", err)
	}
	if addr != w.Address() {
		t.Fatalf("AddressFor = %s, wallet address = %s", addr.Hex(), w.Address().Hex())
	}
}

func TestSignTx(t *testing.T) {
	w, err := NewWallet(testPrivateKey, "")
	if err != nil {
		t.Fatalf("NewWallet failed: %v", err)
	}
	to := common.HexToAddress("0x0000000000000000000000000000000000000001")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(8453),
		Nonce:     0,
		To:        &to,
		Value:     big.NewInt(0),
		Gas:       21_000,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
	})
	signed, err := w.SignTx(big.NewInt(8453), tx)
	if err != nil {
		t.Fatalf("SignTx failed: %v", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), signed)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if sender != w.Address() {
		t.Fatalf("recovered sender %s, want %s", sender.Hex(), w.Address().Hex())
	}
}

func TestNewWalletRejectsBadKeys(t *testing.T) {
	for _, input := range []string{"", "0x", "nothex", "abc123"} {
		if _, err := NewWallet(input, ""); err == nil {
			t.Errorf("NewWallet(%q) expected error", input)
		}
	}
}
