package registry

import (
	"regexp"
	"strings"
)

// NativeTokenAddress is the aggregator-convention marker for the chain's
// native asset. It never appears on chain and must not receive approvals.
const NativeTokenAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

var evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Token is one entry of the fixed verified-token table.
type Token struct {
	Symbol   string
	Address  string
	Decimals int
}

// Native reports whether the token is the chain's native asset.
func (t Token) Native() bool {
	return strings.EqualFold(t.Address, NativeTokenAddress)
}

// Verified Base mainnet tokens. Symbol resolution is case-insensitive;
// address resolution only succeeds against this table because an address
// with unknown decimals cannot be priced or transferred safely.
var tokens = map[string]Token{
	"ETH":   {Symbol: "ETH", Address: NativeTokenAddress, Decimals: 18},
	"WETH":  {Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	"USDC":  {Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
	"USDBC": {Symbol: "USDbC", Address: "0xd9aAEc86B65D86f6A7B5B1b0c42FFA531710b6CA", Decimals: 6},
	"DAI":   {Symbol: "DAI", Address: "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb", Decimals: 18},
	"CBETH": {Symbol: "cbETH", Address: "0x2Ae3F1Ec7F1F5012CFEab0185bfc7aa3cf0DEc22", Decimals: 18},
	"CBBTC": {Symbol: "cbBTC", Address: "0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf", Decimals: 8},
	"AERO":  {Symbol: "AERO", Address: "0x940181a94A35A4569E4529A3CDfB74e38FD98631", Decimals: 18},
}

// Resolve maps a symbol or token address to a verified table entry.
// Symbols match case-insensitively. Addresses resolve only when present in
// the table.
func Resolve(symbolOrAddress string) (Token, bool) {
	input := strings.TrimSpace(symbolOrAddress)
	if input == "" {
		return Token{}, false
	}
	if IsAddress(input) {
		return LookupByAddress(input)
	}
	token, ok := tokens[strings.ToUpper(input)]
	return token, ok
}

// LookupByAddress finds the verified token with the given address.
func LookupByAddress(address string) (Token, bool) {
	for _, token := range tokens {
		if strings.EqualFold(token.Address, address) {
			return token, true
		}
	}
	return Token{}, false
}

// IsAddress reports whether input looks like a 20-byte hex EVM address.
func IsAddress(input string) bool {
	return evmAddressPattern.MatchString(strings.TrimSpace(input))
}

// Symbols returns the verified symbols in no particular order.
func Symbols() []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, token.Symbol)
	}
	return out
}
