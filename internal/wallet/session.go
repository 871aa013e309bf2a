package wallet

import (
	"errors"
	"fmt"
	"time"
)

const (
	StatusDisconnected = "disconnected"
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
	StatusError        = "error"
)

var (
	ErrInvalidTransition  = errors.New("wallet: action is not allowed in the current connection state")
	ErrSignatureMismatch  = errors.New("wallet: signature does not match the requested address")
	ErrUnsupportedNetwork = errors.New("wallet: network is not supported")
	ErrInvalidAddress     = errors.New("wallet: invalid address")
	ErrNonceUsed          = errors.New("wallet: sign-in message has already been used")
)

// Session is the server-side view of a user's wallet connection.
type Session struct {
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	Address     string    `json:"address,omitempty"`
	ChainID     int64     `json:"chain_id,omitempty"`
	NetworkName string    `json:"network_name,omitempty"`
	Nonce       string    `json:"-"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newDisconnectedSession(userID string, at time.Time) *Session {
	return &Session{UserID: userID, Status: StatusDisconnected, UpdatedAt: at}
}

func (s *Session) IsConnected() bool {
	return s.Status == StatusConnected
}

// transitions lists the states reachable from each state. Any state may
// disconnect; a connected session must disconnect before connecting again.
var transitions = map[string][]string{
	StatusDisconnected: {StatusConnecting},
	StatusConnecting:   {StatusConnecting, StatusConnected, StatusError},
	StatusError:        {StatusConnecting},
}

func canTransition(from, to string) bool {
	if to == StatusDisconnected {
		return true
	}

	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Session) moveTo(to string, at time.Time) error {
	if !canTransition(s.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.Status, to)
	}

	s.Status = to
	s.UpdatedAt = at
	return nil
}

// signInMessage is the text the wallet signs with personal_sign.
func signInMessage(address, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf(
		"TrustBond wants you to connect your wallet.\n\nAddress: %s\nNonce: %s\nIssued At: %s",
		address, nonce, issuedAt.UTC().Format(time.RFC3339),
	)
}
