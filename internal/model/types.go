package model

import "time"

// ParsedAction is the classifier-boundary input contract. The upstream
// natural-language classifier produces it; the router treats Params as
// untrusted until decoded at the dispatch boundary.
type ParsedAction struct {
	Intent     string         `json:"intent"`
	Params     map[string]any `json:"params,omitempty"`
	Confidence float64        `json:"confidence"`
	RawText    string         `json:"rawText,omitempty"`
}

// Intents the router knows how to dispatch. The classifier emits these
// strings; anything else falls through to the unknown handler.
const (
	IntentCreateWallet  = "create_wallet"
	IntentAddress       = "address"
	IntentBalance       = "balance"
	IntentQuote         = "quote"
	IntentSwap          = "swap"
	IntentSend          = "send"
	IntentExportKey     = "export_key"
	IntentConfirmExport = "confirm_export"
	IntentVerify        = "verify"
	IntentHelp          = "help"
	IntentUnknown       = "unknown"
)

// Reserved ActionResult data keys signaling a screening rejection.
const (
	DataKeyBlocked = "blocked"
	DataKeyReason  = "reason"
)

// Screening rejection reasons carried under DataKeyReason.
const (
	ReasonPromptInjection = "prompt_injection"
	ReasonSentinelScreen  = "sentinel_screen"
)

// ActionResult is the output contract of every routed action. Handlers
// always return one; failures are expressed through Success=false, never
// through propagated errors.
type ActionResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Blocked reports whether the result carries a screening rejection.
func (r ActionResult) Blocked() bool {
	if r.Data == nil {
		return false
	}
	blocked, _ := r.Data[DataKeyBlocked].(bool)
	return blocked
}

// BlockReason returns the screening reason, if any.
func (r ActionResult) BlockReason() string {
	if r.Data == nil {
		return ""
	}
	reason, _ := r.Data[DataKeyReason].(string)
	return reason
}

// WalletInfo is the public view of a provisioned session wallet.
type WalletInfo struct {
	Address   string    `json:"address"`
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExportPrompt is the response to a private-key export request.
type ExportPrompt struct {
	Pending bool   `json:"pending"`
	Message string `json:"message"`
}

// ExportReveal carries the one-time plaintext key after a confirmed export.
// The key is not retrievable again without a fresh request/confirm cycle.
type ExportReveal struct {
	Success    bool   `json:"success"`
	PrivateKey string `json:"privateKey,omitempty"`
	Message    string `json:"message"`
}

// QuoteSource is one liquidity source behind an aggregator quote.
type QuoteSource struct {
	Name       string `json:"name"`
	Proportion string `json:"proportion"`
}

// Quote is a non-binding price estimate from the swap aggregator.
type Quote struct {
	FromSymbol   string        `json:"fromSymbol"`
	ToSymbol     string        `json:"toSymbol"`
	SellAmount   string        `json:"sellAmount"`
	BuyAmount    string        `json:"buyAmount"`
	BuyDecimal   string        `json:"buyAmountDecimal"`
	Price        string        `json:"price"`
	EstimatedGas string        `json:"estimatedGas"`
	Sources      []QuoteSource `json:"sources,omitempty"`
	FetchedAt    time.Time     `json:"fetchedAt"`
	Cached       bool          `json:"cached"`
}

// SwapResult reports a completed swap execution.
type SwapResult struct {
	TxHash        string `json:"txHash"`
	ApproveTxHash string `json:"approveTxHash,omitempty"`
	ToAmount      string `json:"toAmount"`
	ExplorerURL   string `json:"explorerUrl"`
}
