// Package swap resolves tokens, quotes trades through the aggregator, and
// executes them from session wallets with the mandatory
// approve-confirm-then-swap ordering.
package swap

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	werr "github.com/ggonzalez94/walletd/internal/errors"
	"github.com/ggonzalez94/walletd/internal/execution"
	"github.com/ggonzalez94/walletd/internal/model"
	"github.com/ggonzalez94/walletd/internal/registry"
	"github.com/ggonzalez94/walletd/internal/wallet"
)

type Service struct {
	wallets    *wallet.Service
	aggregator *Aggregator
	cache      *quoteCache
	execOpts   execution.Options
	log        zerolog.Logger
	now        func() time.Time
}

func NewService(wallets *wallet.Service, aggregator *Aggregator, execOpts execution.Options, log zerolog.Logger) *Service {
	return &Service{
		wallets:    wallets,
		aggregator: aggregator,
		cache:      newQuoteCache(),
		execOpts:   execOpts,
		log:        log.With().Str("component", "swap").Logger(),
		now:        time.Now,
	}
}

// StartCacheSweeper runs periodic stale-quote eviction until the returned
// stop function is called.
func (s *Service) StartCacheSweeper(interval time.Duration) (stop func()) {
	return s.cache.startSweeper(interval)
}

type QuoteOptions struct {
	BypassCache bool
}

func resolveToken(symbolOrAddress string) (registry.Token, error) {
	token, ok := registry.Resolve(symbolOrAddress)
	if !ok {
		return registry.Token{}, werr.Newf(werr.CodeValidation, "Unknown token: %s", symbolOrAddress)
	}
	return token, nil
}

// GetQuote returns an indicative price for selling amount of from into to.
// Quotes are cached for 30 seconds per (from, to, amount) unless bypassed.
func (s *Service) GetQuote(ctx context.Context, from, to, amount string, opts QuoteOptions) (model.Quote, error) {
	fromToken, err := resolveToken(from)
	if err != nil {
		return model.Quote{}, err
	}
	toToken, err := resolveToken(to)
	if err != nil {
		return model.Quote{}, err
	}
	sellUnits, err := registry.DecimalToBaseUnits(amount, fromToken.Decimals)
	if err != nil {
		return model.Quote{}, err
	}

	key := cacheKey(from, to, amount)
	if !opts.BypassCache {
		if quote, ok := s.cache.get(key); ok {
			quote.Cached = true
			return quote, nil
		}
	}

	resp, err := s.aggregator.Price(ctx, fromToken.Address, toToken.Address, sellUnits)
	if err != nil {
		return model.Quote{}, err
	}

	quote := model.Quote{
		FromSymbol:   fromToken.Symbol,
		ToSymbol:     toToken.Symbol,
		SellAmount:   amount,
		BuyAmount:    resp.BuyAmount,
		BuyDecimal:   registry.FormatBaseUnits(resp.BuyAmount, toToken.Decimals),
		Price:        resp.Price,
		EstimatedGas: resp.EstimatedGas,
		Sources:      activeSources(resp.Sources),
		FetchedAt:    s.now().UTC(),
	}
	s.cache.put(key, quote)
	return quote, nil
}

// ExecuteSwap trades amount of from into to from the session's wallet. When
// the sell token is an ERC-20 and the aggregator's allowance target lacks
// allowance, an approval is submitted and confirmed before the swap; the
// swap itself then waits for one confirmation.
func (s *Service) ExecuteSwap(ctx context.Context, sessionID, from, to, amount string) (model.SwapResult, error) {
	w, err := s.wallets.SignerWallet(ctx, sessionID)
	if err != nil {
		return model.SwapResult{}, err
	}

	fromToken, err := resolveToken(from)
	if err != nil {
		return model.SwapResult{}, err
	}
	toToken, err := resolveToken(to)
	if err != nil {
		return model.SwapResult{}, err
	}
	sellUnits, err := registry.DecimalToBaseUnits(amount, fromToken.Decimals)
	if err != nil {
		return model.SwapResult{}, err
	}

	quote, err := s.aggregator.ExecutableQuote(ctx, fromToken.Address, toToken.Address, sellUnits, w.Address().Hex())
	if err != nil {
		return model.SwapResult{}, err
	}
	if quote.To == "" {
		return model.SwapResult{}, werr.New(werr.CodeUnavailable, "aggregator returned no transaction target")
	}

	client, err := w.Dial(ctx)
	if err != nil {
		return model.SwapResult{}, err
	}
	defer client.Close()

	var result model.SwapResult

	if !fromToken.Native() && quote.AllowanceTarget != "" {
		sellAmount, ok := new(big.Int).SetString(sellUnits, 10)
		if !ok {
			return model.SwapResult{}, werr.New(werr.CodeInternal, "sell amount is not an integer")
		}
		tokenAddr := common.HexToAddress(fromToken.Address)
		spender := common.HexToAddress(quote.AllowanceTarget)

		current, err := execution.Allowance(ctx, client, tokenAddr, w.Address(), spender)
		if err != nil {
			return model.SwapResult{}, err
		}
		if current.Cmp(sellAmount) < 0 {
			data, err := execution.PackApprove(spender, sellAmount)
			if err != nil {
				return model.SwapResult{}, err
			}
			approveHash, err := execution.Submit(ctx, client, w, tokenAddr, nil, data, 0, s.execOpts)
			if err != nil {
				return model.SwapResult{}, err
			}
			s.log.Info().
				Str("tx", approveHash.Hex()).
				Str("token", fromToken.Symbol).
				Msg("approval submitted")
			if err := execution.WaitMined(ctx, client, approveHash, s.execOpts); err != nil {
				return model.SwapResult{}, err
			}
			result.ApproveTxHash = approveHash.Hex()
		}
	}

	target := common.HexToAddress(quote.To)
	value := new(big.Int)
	if quote.Value != "" {
		if _, ok := value.SetString(quote.Value, 10); !ok {
			return model.SwapResult{}, werr.New(werr.CodeUnavailable, "aggregator returned invalid tx value")
		}
	}
	data, err := execution.DecodeHex(quote.Data)
	if err != nil {
		return model.SwapResult{}, werr.Wrap(werr.CodeUnavailable, "decode aggregator calldata", err)
	}
	var gasHint uint64
	if quote.Gas != "" {
		if g, err := strconv.ParseUint(quote.Gas, 10, 64); err == nil {
			gasHint = g
		}
	}

	txHash, err := execution.Submit(ctx, client, w, target, value, data, gasHint, s.execOpts)
	if err != nil {
		return model.SwapResult{}, err
	}
	s.log.Info().
		Str("tx", txHash.Hex()).
		Str("from", fromToken.Symbol).
		Str("to", toToken.Symbol).
		Str("amount", amount).
		Msg("swap submitted")
	if err := execution.WaitMined(ctx, client, txHash, s.execOpts); err != nil {
		return model.SwapResult{}, err
	}

	result.TxHash = txHash.Hex()
	result.ToAmount = registry.FormatBaseUnits(quote.BuyAmount, toToken.Decimals)
	result.ExplorerURL = registry.ExplorerTxURL(txHash.Hex())
	return result, nil
}

func activeSources(in []sourceResponse) []model.QuoteSource {
	var out []model.QuoteSource
	for _, src := range in {
		if src.Proportion == "" || src.Proportion == "0" {
			continue
		}
		out = append(out, model.QuoteSource{Name: src.Name, Proportion: src.Proportion})
	}
	return out
}
