package catalog

import (
	"sort"
	"time"

	"github.com/veritas/cyberhub/internal/model"
)

// DefaultPageSize は一覧表示の1ページあたりのデフォルト件数。
const DefaultPageSize = 50

// Options はAssembleの挙動を調整するオプション。
// ゼロ値はすべてデフォルト（ページサイズ50、無料プラン上限10）として扱われる。
type Options struct {
	// PageSize は表示用の切り詰め件数。0以下はDefaultPageSize。
	PageSize int
	// FreeTierCap は無料プランの上限件数。0以下はFreeTierCap定数。
	FreeTierCap int
}

// Result はパイプラインの最終出力。
type Result struct {
	// Visible は閲覧者に表示できる案件の順序付きリスト。
	Visible []*model.Listing
	// LockedCount はフィルタには一致するが階層制限・ページ制限により
	// 非表示となった件数。アップセル表示（「あとN件の案件をアンロック」）に使用する。
	LockedCount int
}

// Assemble は案件コレクションに対してフィルタ・ゲートのパイプラインを
// 実行し、表示可能な案件リストとロック件数を返す。
//
// パイプラインの段順は固定であり再構成できない:
//
//	タクソノミー絞り込み → 属性フィルタ → ソート（新着順） → アクセスゲート → ページ切り詰め
//
// LockedCountはゲート適用前の一致集合から再計算されるため、プラン変更が
// 案件の再取得なしに即座に反映される。入力スライスは変更されない。
// 空の入力には空のResultを返し、決してパニックしない。
//
// nowがゼロ値の場合はClockErrorとしてInvalidClockエラーを返す。
// 負方向のクロックずれ（未来のPostedAt）は新着として扱われるのみで
// エラーにはならない。
func Assemble(
	listings []*model.Listing,
	sel TaxonomySelection,
	filter Filter,
	tier Tier,
	now time.Time,
	opts Options,
) (*Result, error) {
	if now.IsZero() {
		return nil, model.NewInvalidClockError()
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	freeCap := opts.FreeTierCap
	if freeCap <= 0 {
		freeCap = FreeTierCap
	}

	// 1. タクソノミー絞り込み + 属性フィルタ（コピーオンフィルタ。入力は不変）
	matched := make([]*model.Listing, 0, len(listings))
	for _, l := range listings {
		if l == nil {
			continue
		}
		if !MatchesTaxonomy(l, sel) {
			continue
		}
		if !filter.Matches(l) {
			continue
		}
		matched = append(matched, l)
	}

	// 2. 掲載日時降順の安定ソート。同時刻の案件は入力順を維持する。
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].PostedAt.After(matched[j].PostedAt)
	})

	// 3. アクセスゲート → ページ切り詰め
	visible := gate(matched, tier, now, freeCap)
	visible = paginate(visible, pageSize)

	return &Result{
		Visible:     visible,
		LockedCount: len(matched) - len(visible),
	}, nil
}

// paginate は先頭pageSize件への単純な切り詰めを行う。
// カーソルやオフセットは保持しない。
func paginate(listings []*model.Listing, pageSize int) []*model.Listing {
	if len(listings) > pageSize {
		return listings[:pageSize]
	}
	return listings
}
