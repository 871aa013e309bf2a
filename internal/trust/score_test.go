package trust

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustbond/api/internal/models"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want int64
	}{
		{"new user", Inputs{}, 500},
		{"verified", Inputs{KYCVerified: true}, 650},
		{"verified with history", Inputs{KYCVerified: true, RepaidLoans: 3}, 770},
		{"capped", Inputs{KYCVerified: true, RepaidLoans: 20}, MaxScore},
		{"defaults", Inputs{DefaultedLoans: 1}, 380},
		{"floored", Inputs{DefaultedLoans: 5}, MinScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.in))
		})
	}
}

type stubCounter map[string]int

func (s stubCounter) CountByStatus(string) (map[string]int, error) {
	return s, nil
}

type stubContract struct {
	configured bool
	score      int64
	err        error
}

func (s stubContract) HasTrustScore() bool { return s.configured }

func (s stubContract) TrustScore(context.Context, string) (int64, error) {
	return s.score, s.err
}

func testUser(wallet string) *models.User {
	return &models.User{
		ID:            "user-1",
		KYCStatus:     models.KYCStatusVerified,
		WalletAddress: sql.NullString{String: wallet, Valid: wallet != ""},
	}
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestService_Score(t *testing.T) {
	counts := stubCounter{models.LoanStatusRepaid: 1}

	t.Run("computed without contract", func(t *testing.T) {
		svc := NewService(nil, counts, discard)
		score, err := svc.Score(context.Background(), testUser("0xabc"))
		require.NoError(t, err)
		assert.Equal(t, SourceComputed, score.Source)
		assert.EqualValues(t, 690, score.Value)
	})

	t.Run("contract", func(t *testing.T) {
		svc := NewService(stubContract{configured: true, score: 720}, counts, discard)
		score, err := svc.Score(context.Background(), testUser("0xabc"))
		require.NoError(t, err)
		assert.Equal(t, SourceContract, score.Source)
		assert.EqualValues(t, 720, score.Value)
	})

	t.Run("contract failure falls back", func(t *testing.T) {
		svc := NewService(stubContract{configured: true, err: errors.New("reverted")}, counts, discard)
		score, err := svc.Score(context.Background(), testUser("0xabc"))
		require.NoError(t, err)
		assert.Equal(t, SourceComputed, score.Source)
	})

	t.Run("no wallet", func(t *testing.T) {
		svc := NewService(stubContract{configured: true, score: 720}, counts, discard)
		score, err := svc.Score(context.Background(), testUser(""))
		require.NoError(t, err)
		assert.Equal(t, SourceComputed, score.Source)
	})
}
