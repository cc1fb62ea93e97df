package execution

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	werr "github.com/ggonzalez94/walletd/internal/errors"
	"github.com/ggonzalez94/walletd/internal/registry"
)

// Allowance reads how much of token the spender may move on owner's behalf.
func Allowance(ctx context.Context, client *ethclient.Client, token, owner, spender common.Address) (*big.Int, error) {
	data, err := registry.ERC20ABI().Pack("allowance", owner, spender)
	if err != nil {
		return nil, werr.Wrap(werr.CodeInternal, "pack allowance call", err)
	}
	out, err := Call(ctx, client, owner, token, data)
	if err != nil {
		return nil, err
	}
	values, err := registry.ERC20ABI().Unpack("allowance", out)
	if err != nil || len(values) != 1 {
		return nil, werr.Wrap(werr.CodeUnavailable, "decode allowance result", err)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, werr.New(werr.CodeUnavailable, "unexpected allowance result type")
	}
	return amount, nil
}

// BalanceOf reads the token balance held by account.
func BalanceOf(ctx context.Context, client *ethclient.Client, token, account common.Address) (*big.Int, error) {
	data, err := registry.ERC20ABI().Pack("balanceOf", account)
	if err != nil {
		return nil, werr.Wrap(werr.CodeInternal, "pack balanceOf call", err)
	}
	out, err := Call(ctx, client, account, token, data)
	if err != nil {
		return nil, err
	}
	values, err := registry.ERC20ABI().Unpack("balanceOf", out)
	if err != nil || len(values) != 1 {
		return nil, werr.Wrap(werr.CodeUnavailable, "decode balanceOf result", err)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, werr.New(werr.CodeUnavailable, "unexpected balanceOf result type")
	}
	return amount, nil
}

// PackApprove builds calldata granting spender the given allowance.
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := registry.ERC20ABI().Pack("approve", spender, amount)
	if err != nil {
		return nil, werr.Wrap(werr.CodeInternal, "pack approve call", err)
	}
	return data, nil
}

// PackTransfer builds calldata moving amount of a token to the recipient.
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	data, err := registry.ERC20ABI().Pack("transfer", to, amount)
	if err != nil {
		return nil, werr.Wrap(werr.CodeInternal, "pack transfer call", err)
	}
	return data, nil
}
