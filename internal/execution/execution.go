// Package execution submits signed transactions and waits for their
// confirmation. Every fund-moving path in the service (approvals, swaps,
// transfers) goes through Submit and WaitMined so fee handling and receipt
// polling behave identically everywhere.
package execution

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	werr "github.com/ggonzalez94/walletd/internal/errors"
	"github.com/ggonzalez94/walletd/internal/signer"
)

type Options struct {
	PollInterval       time.Duration
	StepTimeout        time.Duration
	GasMultiplier      float64
	MaxFeeGwei         string
	MaxPriorityFeeGwei string
}

func DefaultOptions() Options {
	return Options{
		PollInterval:  2 * time.Second,
		StepTimeout:   2 * time.Minute,
		GasMultiplier: 1.2,
	}
}

func (o Options) normalized() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.StepTimeout <= 0 {
		o.StepTimeout = 2 * time.Minute
	}
	if o.GasMultiplier <= 1 {
		o.GasMultiplier = 1.2
	}
	return o
}

// Call performs a read-only contract call.
func Call(ctx context.Context, client *ethclient.Client, from common.Address, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{From: from, To: &to, Data: data}
	out, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, werr.Wrap(werr.CodeUnavailable, "contract call", err)
	}
	return out, nil
}

// Submit builds an EIP-1559 transaction to target, signs it and broadcasts
// it. It returns the transaction hash without waiting for confirmation.
func Submit(ctx context.Context, client *ethclient.Client, txSigner signer.Signer, target common.Address, value *big.Int, data []byte, gasHint uint64, opts Options) (common.Hash, error) {
	opts = opts.normalized()
	if value == nil {
		value = new(big.Int)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return common.Hash{}, werr.Wrap(werr.CodeUnavailable, "read chain id", err)
	}

	gasLimit := gasHint
	if gasLimit == 0 {
		msg := ethereum.CallMsg{From: txSigner.Address(), To: &target, Value: value, Data: data}
		gasLimit, err = client.EstimateGas(ctx, msg)
		if err != nil {
			return common.Hash{}, classifyNodeError("estimate gas", err)
		}
	}
	gasLimit = uint64(float64(gasLimit) * opts.GasMultiplier)

	tipCap, err := resolveTipCap(ctx, client, opts.MaxPriorityFeeGwei)
	if err != nil {
		return common.Hash{}, err
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, werr.Wrap(werr.CodeUnavailable, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap, err := resolveFeeCap(baseFee, tipCap, opts.MaxFeeGwei)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := client.PendingNonceAt(ctx, txSigner.Address())
	if err != nil {
		return common.Hash{}, werr.Wrap(werr.CodeUnavailable, "fetch nonce", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &target,
		Value:     value,
		Data:      data,
	})
	signed, err := txSigner.SignTx(chainID, tx)
	if err != nil {
		return common.Hash{}, werr.Wrap(werr.CodeInternal, "sign transaction", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, classifyNodeError("broadcast transaction", err)
	}
	return signed.Hash(), nil
}

// WaitMined polls for the receipt of hash until it confirms, reverts, or
// the step timeout elapses. A timeout surfaces the hash so the caller can
// keep tracking the transaction; there is no replacement or cancel logic.
func WaitMined(ctx context.Context, client *ethclient.Client, hash common.Hash, opts Options) error {
	opts = opts.normalized()
	waitCtx, cancel := context.WithTimeout(ctx, opts.StepTimeout)
	defer cancel()
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := client.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return nil
			}
			return werr.New(werr.CodeUnavailable, "transaction reverted on-chain")
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			// Ignore transient RPC polling failures until timeout.
		}
		select {
		case <-waitCtx.Done():
			return werr.New(werr.CodeTimeout, fmt.Sprintf("timed out waiting for confirmation of %s", hash.Hex()))
		case <-ticker.C:
		}
	}
}

func resolveTipCap(ctx context.Context, client *ethclient.Client, overrideGwei string) (*big.Int, error) {
	if strings.TrimSpace(overrideGwei) != "" {
		v, err := parseGwei(overrideGwei)
		if err != nil {
			return nil, werr.Wrap(werr.CodeUsage, "parse max priority fee", err)
		}
		return v, nil
	}
	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return big.NewInt(2_000_000_000), nil // 2 gwei fallback
	}
	return tipCap, nil
}

func resolveFeeCap(baseFee, tipCap *big.Int, overrideGwei string) (*big.Int, error) {
	if strings.TrimSpace(overrideGwei) != "" {
		v, err := parseGwei(overrideGwei)
		if err != nil {
			return nil, werr.Wrap(werr.CodeUsage, "parse max fee", err)
		}
		if v.Cmp(tipCap) < 0 {
			return nil, werr.New(werr.CodeUsage, "max fee must be >= max priority fee")
		}
		return v, nil
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)
	return feeCap, nil
}

func parseGwei(v string) (*big.Int, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return nil, fmt.Errorf("empty gwei value")
	}
	rat, ok := new(big.Rat).SetString(clean)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", v)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("value must be non-negative")
	}
	rat.Mul(rat, big.NewRat(1_000_000_000, 1))
	if !rat.IsInt() {
		return nil, fmt.Errorf("value must resolve to an integer wei amount")
	}
	return new(big.Int).Set(rat.Num()), nil
}

// DecodeHex decodes 0x-prefixed calldata, tolerating odd-length strings.
func DecodeHex(v string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(v), "0x")
	if clean == "" {
		return []byte{}, nil
	}
	if len(clean)%2 != 0 {
		clean = "0" + clean
	}
	buf, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return buf, nil
}

// classifyNodeError maps well-known node rejections to user-actionable
// messages; everything else stays a generic upstream failure.
func classifyNodeError(op string, err error) error {
	detail := strings.ToLower(err.Error())
	if strings.Contains(detail, "insufficient funds") {
		return werr.Wrap(werr.CodeValidation,
			"insufficient funds for this transaction, deposit more ETH to cover the amount and gas", err)
	}
	return werr.Wrap(werr.CodeUnavailable, op, err)
}
