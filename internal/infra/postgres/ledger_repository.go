package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jinford/repogpt/internal/core/credit"
)

// LedgerRepository は credit.Ledger を実装する PostgreSQL リポジトリ。
// 残高は users テーブルの credits 列が正本となる
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository は新しい LedgerRepository を返す。
func NewLedgerRepository(q Querier) *LedgerRepository {
	return &LedgerRepository{q: q}
}

var _ credit.Ledger = (*LedgerRepository)(nil)

func (r *LedgerRepository) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	var credits pgtype.Numeric
	err := r.q.QueryRow(ctx,
		`SELECT credits FROM users WHERE id = $1`,
		UUIDToPgtype(userID)).Scan(&credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("user not found: %s", userID)
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return PgnumericToFloat64(credits), nil
}

// Debit は残高を減算する。残高が不足する場合は行を変更せず
// credit.ErrInsufficientCredits を返す
func (r *LedgerRepository) Debit(ctx context.Context, userID uuid.UUID, amount float64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET credits = credits - $1 WHERE id = $2 AND credits >= $1`,
		amount, UUIDToPgtype(userID))
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return credit.ErrInsufficientCredits
	}
	return nil
}

// EnsureUser はユーザー行が無ければ初期残高付きで作成する。
// CLI 利用ではローカルユーザーを初回起動時に用意するために使う
func (r *LedgerRepository) EnsureUser(ctx context.Context, userID uuid.UUID, initialCredits float64) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO users (id, credits) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		UUIDToPgtype(userID), initialCredits)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}
