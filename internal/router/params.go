package router

import (
	"strings"

	werr "github.com/ggonzalez94/walletd/internal/errors"
	"github.com/ggonzalez94/walletd/internal/registry"
)

// Classifier params arrive as an untrusted bag. Each intent decodes the bag
// exactly once, here, into its own struct; handlers never cast values.

type SwapParams struct {
	From   string
	To     string
	Amount string
}

type SendParams struct {
	To     string
	Amount string
	Token  string // empty means the native asset
}

type QuoteParams struct {
	From        string
	To          string
	Amount      string
	BypassCache bool
}

type BalanceParams struct {
	Token string // empty means the native asset
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	v, _ := params[key].(string)
	return strings.TrimSpace(v)
}

func boolParam(params map[string]any, key string) bool {
	if params == nil {
		return false
	}
	v, _ := params[key].(bool)
	return v
}

func decodeSwapParams(params map[string]any) (SwapParams, error) {
	p := SwapParams{
		From:   stringParam(params, "from"),
		To:     stringParam(params, "to"),
		Amount: stringParam(params, "amount"),
	}
	if p.From == "" || p.To == "" || p.Amount == "" {
		return SwapParams{}, werr.New(werr.CodeValidation, "a swap needs from, to and amount, e.g. swap 1 ETH to USDC")
	}
	return p, nil
}

func decodeSendParams(params map[string]any) (SendParams, error) {
	p := SendParams{
		To:     stringParam(params, "to"),
		Amount: stringParam(params, "amount"),
		Token:  stringParam(params, "token"),
	}
	if p.To == "" {
		p.To = stringParam(params, "recipient")
	}
	if p.To == "" || p.Amount == "" {
		return SendParams{}, werr.New(werr.CodeValidation, "a transfer needs a recipient and an amount")
	}
	if !registry.IsAddress(p.To) {
		return SendParams{}, werr.New(werr.CodeValidation, "recipient must be a 0x-prefixed address")
	}
	return p, nil
}

func decodeQuoteParams(params map[string]any) (QuoteParams, error) {
	p := QuoteParams{
		From:        stringParam(params, "from"),
		To:          stringParam(params, "to"),
		Amount:      stringParam(params, "amount"),
		BypassCache: boolParam(params, "bypassCache"),
	}
	if p.From == "" || p.To == "" || p.Amount == "" {
		return QuoteParams{}, werr.New(werr.CodeValidation, "a quote needs from, to and amount, e.g. price of 1 ETH in USDC")
	}
	return p, nil
}

func decodeBalanceParams(params map[string]any) BalanceParams {
	return BalanceParams{Token: stringParam(params, "token")}
}

// Param keys whose values are screened when they carry an address.
var addressParamKeys = []string{"to", "from", "address", "wallet", "devAddress", "recipient", "tokenAddress"}

// extractAddresses pulls address-shaped values out of the params bag for
// screening. The token address is returned separately since it gets its own
// reputation checks.
func extractAddresses(params map[string]any) (addresses []string, tokenAddress string) {
	for _, key := range addressParamKeys {
		v := stringParam(params, key)
		if !registry.IsAddress(v) {
			continue
		}
		if key == "tokenAddress" {
			tokenAddress = v
			continue
		}
		addresses = append(addresses, v)
	}
	return addresses, tokenAddress
}
