package wallet

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	werr "github.com/ggonzalez94/walletd/internal/errors"
	"github.com/ggonzalez94/walletd/internal/model"
	"github.com/ggonzalez94/walletd/internal/signer"
	"github.com/ggonzalez94/walletd/internal/vault"
)

// exportWindow is how long an export confirmation stays valid.
const exportWindow = 120 * time.Second

const (
	msgNoWallet = "No wallet found for this session. Create a wallet first."

	msgExportWarning = "WARNING: you are requesting your private key. Anyone who sees it " +
		"has permanent, full control of this wallet and its funds. " +
		"Confirm the export within 2 minutes to reveal it."

	msgExportReveal = "Private key revealed. Store it somewhere safe and never share it. " +
		"This reveal is single use."

	msgNoPendingExport = "No pending export request. Request an export first."
	msgExportExpired   = "Export confirmation expired. Request the export again."
)

// Service owns custodial wallets: one keypair per session, private keys at
// rest only inside the vault, and a two step export flow for revealing them.
type Service struct {
	store  Store
	vault  *vault.Vault
	rpcURL string
	log    zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	exports map[string]time.Time // session id -> export requested at
}

func NewService(store Store, v *vault.Vault, rpcURL string, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		vault:   v,
		rpcURL:  rpcURL,
		log:     log.With().Str("component", "wallet").Logger(),
		now:     time.Now,
		exports: make(map[string]time.Time),
	}
}

// Create returns the session's wallet, generating one if none exists yet.
// Concurrent calls for the same session converge on a single keypair: the
// store decides the winner and losers discard their freshly generated key.
func (s *Service) Create(ctx context.Context, sessionID string) (model.WalletInfo, error) {
	if sessionID == "" {
		return model.WalletInfo{}, werr.New(werr.CodeValidation, "session id is required")
	}

	if rec, ok, err := s.store.Get(ctx, sessionID); err != nil {
		return model.WalletInfo{}, err
	} else if ok {
		return s.info(sessionID, rec), nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return model.WalletInfo{}, werr.Wrap(werr.CodeInternal, "generate wallet key", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	keyHex := hex.EncodeToString(crypto.FromECDSA(key))

	sealed, err := s.vault.Encrypt([]byte(keyHex))
	if err != nil {
		return model.WalletInfo{}, err
	}

	rec := Record{Address: address, Key: sealed, CreatedAt: s.now().UTC()}
	winner, created, err := s.store.PutIfAbsent(ctx, sessionID, rec)
	if err != nil {
		return model.WalletInfo{}, err
	}
	if created {
		s.log.Info().Str("address", address).Msg("wallet created")
	} else {
		s.log.Debug().Str("address", winner.Address).Msg("wallet creation raced, kept existing")
	}
	return s.info(sessionID, winner), nil
}

// Has reports whether the session already owns a wallet.
func (s *Service) Has(ctx context.Context, sessionID string) (bool, error) {
	_, ok, err := s.store.Get(ctx, sessionID)
	return ok, err
}

// Address returns the session's wallet address, if any.
func (s *Service) Address(ctx context.Context, sessionID string) (string, bool, error) {
	rec, ok, err := s.store.Get(ctx, sessionID)
	if err != nil || !ok {
		return "", false, err
	}
	return rec.Address, true, nil
}

// SignerWallet decrypts the session's private key and returns a wallet
// ready to sign transactions. Callers must not retain it longer than the
// operation that needed it.
func (s *Service) SignerWallet(ctx context.Context, sessionID string) (*signer.Wallet, error) {
	rec, ok, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, werr.New(werr.CodeNotFound, msgNoWallet)
	}
	keyHex, err := s.vault.Decrypt(rec.Key)
	if err != nil {
		return nil, err
	}
	return signer.NewWallet(string(keyHex), s.rpcURL)
}

// RequestExport arms the export flow for the session. Asking again before
// confirming restarts the window. A session without a wallet gets a
// non-pending prompt instead of an error.
func (s *Service) RequestExport(ctx context.Context, sessionID string) (model.ExportPrompt, error) {
	ok, err := s.Has(ctx, sessionID)
	if err != nil {
		return model.ExportPrompt{}, err
	}
	if !ok {
		return model.ExportPrompt{Pending: false, Message: msgNoWallet}, nil
	}

	s.mu.Lock()
	s.exports[sessionID] = s.now()
	s.mu.Unlock()

	s.log.Info().Msg("private key export requested")
	return model.ExportPrompt{Pending: true, Message: msgExportWarning}, nil
}

// ConfirmExport completes a pending export and reveals the private key.
// The confirmation is single use: it is consumed before the key is
// decrypted, and expired confirmations are discarded on sight.
func (s *Service) ConfirmExport(ctx context.Context, sessionID string) (model.ExportReveal, error) {
	s.mu.Lock()
	requestedAt, ok := s.exports[sessionID]
	if ok {
		delete(s.exports, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return model.ExportReveal{}, werr.New(werr.CodeNotFound, msgNoPendingExport)
	}
	if s.now().Sub(requestedAt) > exportWindow {
		return model.ExportReveal{}, werr.New(werr.CodeNotFound, msgExportExpired)
	}

	rec, found, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return model.ExportReveal{}, err
	}
	if !found {
		return model.ExportReveal{}, werr.New(werr.CodeNotFound, msgNoWallet)
	}

	keyHex, err := s.vault.Decrypt(rec.Key)
	if err != nil {
		return model.ExportReveal{}, err
	}

	s.log.Info().Msg("private key exported")
	return model.ExportReveal{
		Success:    true,
		PrivateKey: "0x" + string(keyHex),
		Message:    msgExportReveal,
	}, nil
}

// PendingExport reports whether the session has a live export confirmation.
// Expired entries are pruned as they are seen.
func (s *Service) PendingExport(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	requestedAt, ok := s.exports[sessionID]
	if !ok {
		return false
	}
	if s.now().Sub(requestedAt) > exportWindow {
		delete(s.exports, sessionID)
		return false
	}
	return true
}

func (s *Service) info(sessionID string, rec Record) model.WalletInfo {
	return model.WalletInfo{
		Address:   rec.Address,
		SessionID: sessionID,
		CreatedAt: rec.CreatedAt,
	}
}
