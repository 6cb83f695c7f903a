package catalog

import (
	"time"

	"github.com/veritas/cyberhub/internal/model"
)

// Tier は閲覧者のアクセス階層を表す。
type Tier string

const (
	// TierFree は無料プランの閲覧者。新着案件へのアクセスが拒否され、
	// 閲覧可能件数が上限で制限される。
	TierFree Tier = "free"
	// TierPaid は有料プランの閲覧者。全件にアクセスできる。
	TierPaid Tier = "paid"
)

// FreeTierCap は無料プランの閲覧者が一度に受け取れる案件数の上限。
const FreeTierCap = 10

// TierFromPlan はプラン設定から2値のアクセス階層を導出する。
// CanAccessNewListingsがtrueかつnow時点で有効期限内のプランのみ有料扱いとなる。
// nilのプラン（未契約・未登録の閲覧者）と期限切れのプランは無料として扱う。
// ExpiresAtがnilのプランは無期限。
func TierFromPlan(plan *model.PlanConfig, now time.Time) Tier {
	if plan == nil || !plan.CanAccessNewListings {
		return TierFree
	}
	if plan.ExpiresAt != nil && !now.Before(*plan.ExpiresAt) {
		return TierFree
	}
	return TierPaid
}

// gate はアクセス階層による可視範囲の制限を適用する。
// listingsは上流で掲載日時降順にソート済みであることを前提とする。
//
// 有料プランはそのまま通過する。無料プランは鮮度ウィンドウより古い案件のみに
// 絞り込んだうえで先頭freeCap件に切り詰める。ソートが先に適用されているため、
// 先頭freeCap件は「最も新しいfreeCap件の旧着案件」となる。上限に満たない場合は
// 存在する分だけを返す。
//
// このゲートは収益化の要であり、新着案件が無料プランに漏れることは
// いかなるフィルタ条件下でも許されない。
func gate(listings []*model.Listing, tier Tier, now time.Time, freeCap int) []*model.Listing {
	if tier == TierPaid {
		return listings
	}

	aged := make([]*model.Listing, 0, len(listings))
	for _, l := range listings {
		if !IsNew(l.PostedAt, now) {
			aged = append(aged, l)
		}
	}

	if len(aged) > freeCap {
		aged = aged[:freeCap]
	}
	return aged
}
