package wallet

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/trustbond/api/internal/chain"
)

// Manager drives the connection state machine for each user and persists the
// result in a Store. Callers serialise requests per user at the HTTP layer;
// the last write wins.
type Manager struct {
	store  Store
	logger *slog.Logger

	now      func() time.Time
	newNonce func() string
}

func NewManager(store Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		now:      time.Now,
		newNonce: func() string { return uuid.NewString() },
	}
}

// Get returns the user's session, or a disconnected one when none is stored.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	session, found, err := m.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return newDisconnectedSession(userID, m.now()), nil
	}
	return session, nil
}

// Connect starts a connection attempt for address and returns the message the
// wallet must sign. Calling it again while connecting issues a fresh nonce.
func (m *Manager) Connect(ctx context.Context, userID, address string) (*Session, error) {
	if !common.IsHexAddress(address) {
		return nil, ErrInvalidAddress
	}

	session, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if err := session.moveTo(StatusConnecting, now); err != nil {
		return nil, err
	}

	session.Address = common.HexToAddress(address).Hex()
	session.Nonce = m.newNonce()
	session.Message = signInMessage(session.Address, session.Nonce, now)
	session.Error = ""
	session.ChainID = 0
	session.NetworkName = ""

	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Approve completes a pending connection with the wallet's signature of the
// sign-in message. A signature from any other account fails the session.
func (m *Manager) Approve(ctx context.Context, userID, signature string, chainID int64) (*Session, error) {
	session, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if session.Status != StatusConnecting {
		return nil, ErrInvalidTransition
	}

	now := m.now()

	signer, err := chain.RecoverAddress(session.Message, signature)
	if err != nil || !chain.SameAddress(signer.Hex(), session.Address) {
		m.logger.Warn("wallet signature rejected", "user_id", userID, "address", session.Address)

		_ = session.moveTo(StatusError, now)
		session.Error = ErrSignatureMismatch.Error()
		session.Nonce = ""
		session.Message = ""

		if saveErr := m.store.Save(ctx, session); saveErr != nil {
			return nil, saveErr
		}
		return session, ErrSignatureMismatch
	}

	// concurrent approvals of the same challenge race here; one wins
	claimed, err := m.store.ConsumeNonce(ctx, session.Nonce)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrNonceUsed
	}

	if err := session.moveTo(StatusConnected, now); err != nil {
		return nil, err
	}

	session.ChainID = chainID
	session.NetworkName = chain.NetworkName(chainID)
	session.Nonce = ""
	session.Message = ""

	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}

	m.logger.Info("wallet connected", "user_id", userID, "address", session.Address, "chain_id", chainID)
	return session, nil
}

// Reject records that the wallet extension declined the request.
func (m *Manager) Reject(ctx context.Context, userID, reason string) (*Session, error) {
	session, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if session.Status != StatusConnecting {
		return nil, ErrInvalidTransition
	}

	if reason == "" {
		reason = "connection request rejected by wallet"
	}

	_ = session.moveTo(StatusError, m.now())
	session.Error = reason
	session.Nonce = ""
	session.Message = ""

	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// ChangeNetwork follows a network change reported by the wallet provider.
// Unsupported networks are recorded so the client can prompt a switch.
func (m *Manager) ChangeNetwork(ctx context.Context, userID string, chainID int64) (*Session, error) {
	return m.updateNetwork(ctx, userID, chainID, false)
}

// SwitchNetwork is a user-requested switch and only accepts supported networks.
func (m *Manager) SwitchNetwork(ctx context.Context, userID string, chainID int64) (*Session, error) {
	return m.updateNetwork(ctx, userID, chainID, true)
}

func (m *Manager) updateNetwork(ctx context.Context, userID string, chainID int64, supportedOnly bool) (*Session, error) {
	if supportedOnly && !chain.IsSupported(chainID) {
		return nil, ErrUnsupportedNetwork
	}

	session, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !session.IsConnected() {
		return nil, ErrInvalidTransition
	}

	session.ChainID = chainID
	session.NetworkName = chain.NetworkName(chainID)
	session.UpdatedAt = m.now()

	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (m *Manager) Disconnect(ctx context.Context, userID string) (*Session, error) {
	if err := m.store.Delete(ctx, userID); err != nil {
		return nil, err
	}

	return newDisconnectedSession(userID, m.now()), nil
}
