package router

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	werr "github.com/ggonzalez94/walletd/internal/errors"
	"github.com/ggonzalez94/walletd/internal/execution"
	"github.com/ggonzalez94/walletd/internal/model"
	"github.com/ggonzalez94/walletd/internal/registry"
	"github.com/ggonzalez94/walletd/internal/signer"
	"github.com/ggonzalez94/walletd/internal/swap"
)

const helpText = `Here's what I can do:
- create_wallet: provision a wallet for this session
- address: show your wallet address
- balance: show a token balance (default ETH)
- quote: price a swap, e.g. 1 ETH to USDC
- swap: execute a swap from your wallet
- send: transfer ETH or a token to an address
- export_key then confirm_export: reveal your private key (two steps)
- verify: identity verification guidance`

func errorResult(err error) model.ActionResult {
	return failure(werr.UserMessage(err))
}

func (r *Router) handleCreateWallet(ctx context.Context, req request) model.ActionResult {
	info, err := r.wallets.Create(ctx, req.sessionID)
	if err != nil {
		return errorResult(err)
	}
	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Your wallet is ready: %s", info.Address),
		Data: map[string]any{
			"address":   info.Address,
			"sessionId": info.SessionID,
			"createdAt": info.CreatedAt,
		},
	}
}

func (r *Router) handleAddress(ctx context.Context, req request) model.ActionResult {
	if req.sessionID == "" {
		return failure("A session id is required to look up an address.")
	}
	address, ok, err := r.wallets.Address(ctx, req.sessionID)
	if err != nil {
		return errorResult(err)
	}
	if !ok {
		return failure("No wallet found for this session. Create a wallet first.")
	}
	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Your wallet address: %s", address),
		Data:    map[string]any{"address": address},
	}
}

func (r *Router) handleBalance(ctx context.Context, req request) model.ActionResult {
	if req.sessionID == "" {
		return failure("A session id is required to look up a balance.")
	}
	address, ok, err := r.wallets.Address(ctx, req.sessionID)
	if err != nil {
		return errorResult(err)
	}
	if !ok {
		return failure("No wallet found for this session. Create a wallet first.")
	}

	params := decodeBalanceParams(req.action.Params)
	symbol := params.Token
	if symbol == "" {
		symbol = "ETH"
	}
	token, found := registry.Resolve(symbol)
	if !found {
		return failure(fmt.Sprintf("Unknown token: %s", symbol))
	}

	client, err := signer.Dial(ctx, r.rpcURL)
	if err != nil {
		return errorResult(err)
	}
	defer client.Close()

	holder := common.HexToAddress(address)
	var raw *big.Int
	if token.Native() {
		raw, err = client.BalanceAt(ctx, holder, nil)
		if err != nil {
			return errorResult(werr.Wrap(werr.CodeUnavailable, "could not read the balance, try again shortly", err))
		}
	} else {
		raw, err = execution.BalanceOf(ctx, client, common.HexToAddress(token.Address), holder)
		if err != nil {
			return errorResult(err)
		}
	}
	amount := registry.FormatBaseUnits(raw.String(), token.Decimals)
	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Balance: %s %s", amount, token.Symbol),
		Data: map[string]any{
			"address": address,
			"symbol":  token.Symbol,
			"amount":  amount,
		},
	}
}

func (r *Router) handleQuote(ctx context.Context, req request) model.ActionResult {
	params, err := decodeQuoteParams(req.action.Params)
	if err != nil {
		return errorResult(err)
	}
	quote, err := r.swaps.GetQuote(ctx, params.From, params.To, params.Amount, swap.QuoteOptions{BypassCache: params.BypassCache})
	if err != nil {
		return errorResult(err)
	}
	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Quote: %s %s -> %s %s (est. gas %s)",
			quote.SellAmount, quote.FromSymbol, quote.BuyDecimal, quote.ToSymbol, quote.EstimatedGas),
		Data: map[string]any{
			"quote":  quote,
			"cached": quote.Cached,
		},
	}
}

func (r *Router) handleSwap(ctx context.Context, req request) model.ActionResult {
	params, err := decodeSwapParams(req.action.Params)
	if err != nil {
		return errorResult(err)
	}
	result, err := r.swaps.ExecuteSwap(ctx, req.sessionID, params.From, params.To, params.Amount)
	if err != nil {
		switch werr.CodeOf(err) {
		case werr.CodeValidation, werr.CodeNotFound:
			return errorResult(err)
		default:
			return failure("Swap failed: " + werr.UserMessage(err))
		}
	}

	toSymbol := params.To
	if token, ok := registry.Resolve(params.To); ok {
		toSymbol = token.Symbol
	}
	data := map[string]any{
		"txHash":      result.TxHash,
		"toAmount":    result.ToAmount,
		"explorerUrl": result.ExplorerURL,
	}
	if result.ApproveTxHash != "" {
		data["approveTxHash"] = result.ApproveTxHash
	}
	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Swap confirmed: received ~%s %s. %s", result.ToAmount, toSymbol, result.ExplorerURL),
		Data:    data,
	}
}

func (r *Router) handleSend(ctx context.Context, req request) model.ActionResult {
	params, err := decodeSendParams(req.action.Params)
	if err != nil {
		return errorResult(err)
	}
	w, err := r.wallets.SignerWallet(ctx, req.sessionID)
	if err != nil {
		return errorResult(err)
	}

	symbol := params.Token
	if symbol == "" {
		symbol = "ETH"
	}
	token, found := registry.Resolve(symbol)
	if !found {
		return failure(fmt.Sprintf("Unknown token: %s", symbol))
	}
	units, err := registry.DecimalToBaseUnits(params.Amount, token.Decimals)
	if err != nil {
		return errorResult(err)
	}
	amount, ok := new(big.Int).SetString(units, 10)
	if !ok {
		return failure("Invalid amount")
	}

	client, err := w.Dial(ctx)
	if err != nil {
		return errorResult(err)
	}
	defer client.Close()

	recipient := common.HexToAddress(params.To)
	var hash common.Hash
	if token.Native() {
		hash, err = execution.Submit(ctx, client, w, recipient, amount, nil, 0, r.execOpts)
	} else {
		data, packErr := execution.PackTransfer(recipient, amount)
		if packErr != nil {
			return errorResult(packErr)
		}
		hash, err = execution.Submit(ctx, client, w, common.HexToAddress(token.Address), nil, data, 0, r.execOpts)
	}
	if err != nil {
		switch werr.CodeOf(err) {
		case werr.CodeValidation, werr.CodeNotFound:
			return errorResult(err)
		default:
			return failure("Transfer failed: " + werr.UserMessage(err))
		}
	}
	if err := execution.WaitMined(ctx, client, hash, r.execOpts); err != nil {
		return failure("Transfer failed: " + werr.UserMessage(err))
	}

	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Sent %s %s to %s. %s", params.Amount, token.Symbol, params.To, registry.ExplorerTxURL(hash.Hex())),
		Data: map[string]any{
			"txHash":      hash.Hex(),
			"explorerUrl": registry.ExplorerTxURL(hash.Hex()),
		},
	}
}

func (r *Router) handleExportKey(ctx context.Context, req request) model.ActionResult {
	prompt, err := r.wallets.RequestExport(ctx, req.sessionID)
	if err != nil {
		return errorResult(err)
	}
	return model.ActionResult{
		Success: prompt.Pending,
		Message: prompt.Message,
		Data:    map[string]any{"pending": prompt.Pending},
	}
}

func (r *Router) handleConfirmExport(ctx context.Context, req request) model.ActionResult {
	reveal, err := r.wallets.ConfirmExport(ctx, req.sessionID)
	if err != nil {
		return errorResult(err)
	}
	return model.ActionResult{
		Success: true,
		Message: reveal.Message,
		Data:    map[string]any{"privateKey": reveal.PrivateKey},
	}
}

func (r *Router) handleVerify(_ context.Context, _ request) model.ActionResult {
	return failure("Identity verification runs through the linked social account flow; connect your account in the companion app, then retry.")
}

func (r *Router) handleHelp(_ context.Context, _ request) model.ActionResult {
	return model.ActionResult{Success: true, Message: helpText}
}

func (r *Router) handleUnknown(_ context.Context, req request) model.ActionResult {
	return failure(fmt.Sprintf("I didn't understand the request %q.\n\n%s", req.action.Intent, helpText))
}
