package credit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrInsufficientCredits は残高不足を表すエラー
var ErrInsufficientCredits = errors.New("クレジット残高が不足しています")

// Ledger はユーザーのクレジット残高を管理するインターフェース
// 残高の正本はデータストア側にあり、このパッケージは契約のみ定義する
type Ledger interface {
	Balance(ctx context.Context, userID uuid.UUID) (float64, error)
	Debit(ctx context.Context, userID uuid.UUID, amount float64) error
}

// CheckAffordable は残高が見積もりクレジットを賄えるか検証する
func CheckAffordable(balance float64, quote int) error {
	if balance < float64(quote) {
		return ErrInsufficientCredits
	}
	return nil
}
