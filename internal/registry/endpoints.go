package registry

import "fmt"

// Base mainnet identifiers and default endpoints.
const (
	ChainID    int64 = 8453
	ChainSlug        = "base"
	DefaultRPC       = "https://mainnet.base.org"

	// Swap aggregator endpoints (0x-style API).
	DefaultAggregatorURL = "https://base.api.0x.org"
	AggregatorKeyHeader  = "0x-api-key"

	explorerTxBase = "https://basescan.org/tx/"
)

// ExplorerTxURL returns the block-explorer page for a transaction hash.
func ExplorerTxURL(txHash string) string {
	return fmt.Sprintf("%s%s", explorerTxBase, txHash)
}
