package swap

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ggonzalez94/walletd/internal/httpx"
	"github.com/ggonzalez94/walletd/internal/registry"
)

const (
	pricePath = "/swap/v1/price"
	quotePath = "/swap/v1/quote"
)

// Aggregator talks to the 0x-style swap API: /price for indicative quotes
// and /quote for executable transactions.
type Aggregator struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
}

func NewAggregator(httpClient *httpx.Client, baseURL, apiKey string) *Aggregator {
	if baseURL == "" {
		baseURL = registry.DefaultAggregatorURL
	}
	return &Aggregator{http: httpClient, baseURL: baseURL, apiKey: apiKey}
}

type sourceResponse struct {
	Name       string `json:"name"`
	Proportion string `json:"proportion"`
}

type priceResponse struct {
	Price        string           `json:"price"`
	BuyAmount    string           `json:"buyAmount"`
	SellAmount   string           `json:"sellAmount"`
	EstimatedGas string           `json:"estimatedGas"`
	Sources      []sourceResponse `json:"sources"`
}

type quoteResponse struct {
	Price           string           `json:"price"`
	BuyAmount       string           `json:"buyAmount"`
	SellAmount      string           `json:"sellAmount"`
	To              string           `json:"to"`
	Data            string           `json:"data"`
	Value           string           `json:"value"`
	Gas             string           `json:"gas"`
	GasPrice        string           `json:"gasPrice"`
	EstimatedGas    string           `json:"estimatedGas"`
	AllowanceTarget string           `json:"allowanceTarget"`
	Sources         []sourceResponse `json:"sources"`
}

// Price fetches an indicative quote. Amount is in the sell token's base
// units.
func (a *Aggregator) Price(ctx context.Context, sellToken, buyToken, sellAmount string) (priceResponse, error) {
	q := url.Values{}
	q.Set("sellToken", sellToken)
	q.Set("buyToken", buyToken)
	q.Set("sellAmount", sellAmount)
	q.Set("chainId", fmt.Sprintf("%d", registry.ChainID))

	var resp priceResponse
	if _, err := httpx.GetJSON(ctx, a.http, a.baseURL+pricePath+"?"+q.Encode(), a.headers(), &resp); err != nil {
		return priceResponse{}, err
	}
	return resp, nil
}

// ExecutableQuote fetches a signed-and-sendable transaction for the swap,
// bound to takerAddress.
func (a *Aggregator) ExecutableQuote(ctx context.Context, sellToken, buyToken, sellAmount, takerAddress string) (quoteResponse, error) {
	q := url.Values{}
	q.Set("sellToken", sellToken)
	q.Set("buyToken", buyToken)
	q.Set("sellAmount", sellAmount)
	q.Set("takerAddress", takerAddress)
	q.Set("chainId", fmt.Sprintf("%d", registry.ChainID))

	var resp quoteResponse
	if _, err := httpx.GetJSON(ctx, a.http, a.baseURL+quotePath+"?"+q.Encode(), a.headers(), &resp); err != nil {
		return quoteResponse{}, err
	}
	return resp, nil
}

func (a *Aggregator) headers() map[string]string {
	if a.apiKey == "" {
		return nil
	}
	return map[string]string{registry.AggregatorKeyHeader: a.apiKey}
}
