package trust

import (
	"context"
	"errors"
	"log/slog"

	"github.com/trustbond/api/internal/chain"
	"github.com/trustbond/api/internal/models"
)

const (
	MinScore = 300
	MaxScore = 850

	baseScore         = 500
	kycVerifiedBonus  = 150
	repaidLoanBonus   = 40
	defaultedLoanCost = 120
)

const (
	SourceContract = "contract"
	SourceComputed = "computed"
)

type Inputs struct {
	KYCVerified    bool
	RepaidLoans    int
	DefaultedLoans int
}

// Compute derives a score from profile history, clamped to [MinScore, MaxScore].
func Compute(in Inputs) int64 {
	score := int64(baseScore)

	if in.KYCVerified {
		score += kycVerifiedBonus
	}
	score += int64(in.RepaidLoans) * repaidLoanBonus
	score -= int64(in.DefaultedLoans) * defaultedLoanCost

	return clamp(score)
}

func clamp(score int64) int64 {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

type Score struct {
	Value  int64  `json:"score"`
	Source string `json:"source"`
	Min    int64  `json:"min"`
	Max    int64  `json:"max"`
}

// ScoreReader reads a score published on chain.
type ScoreReader interface {
	HasTrustScore() bool
	TrustScore(ctx context.Context, account string) (int64, error)
}

// LoanCounter reports a borrower's loans grouped by status.
type LoanCounter interface {
	CountByStatus(borrowerID string) (map[string]int, error)
}

type Service struct {
	contract ScoreReader
	loans    LoanCounter
	logger   *slog.Logger
}

func NewService(contract ScoreReader, loans LoanCounter, logger *slog.Logger) *Service {
	return &Service{contract: contract, loans: loans, logger: logger}
}

// Score prefers the trust-score contract when one is configured and the user
// has a wallet; any contract failure falls back to the computed score.
func (s *Service) Score(ctx context.Context, user *models.User) (Score, error) {
	if s.contract != nil && s.contract.HasTrustScore() && user.WalletAddress.Valid {
		value, err := s.contract.TrustScore(ctx, user.WalletAddress.String)
		if err == nil {
			return newScore(clamp(value), SourceContract), nil
		}

		if !errors.Is(err, chain.ErrContractNotConfigured) {
			s.logger.Warn("trust score contract read failed", "user_id", user.ID, "error", err)
		}
	}

	counts, err := s.loans.CountByStatus(user.ID)
	if err != nil {
		return Score{}, err
	}

	value := Compute(Inputs{
		KYCVerified:    user.IsKYCVerified(),
		RepaidLoans:    counts[models.LoanStatusRepaid],
		DefaultedLoans: counts[models.LoanStatusDefaulted],
	})

	return newScore(value, SourceComputed), nil
}

func newScore(value int64, source string) Score {
	return Score{Value: value, Source: source, Min: MinScore, Max: MaxScore}
}
