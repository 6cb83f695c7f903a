package catalog

import (
	"strings"

	"github.com/veritas/cyberhub/internal/model"
)

// filterAll はフィルタ値として「絞り込みなし」を意味する予約語。
const filterAll = "all"

// Filter は1回の閲覧セッションにおける属性フィルタの集合を表す。
// すべてのフィールドは独立して任意であり、未設定は「全件一致」を意味する。
type Filter struct {
	// Search はタイトル・説明・提供機関・カテゴリに対する部分一致検索語。
	Search string
	// Location は所在地の部分一致フィルタ。"all"または空は絞り込みなし。
	Location string
	// MinAmount / MaxAmount は金額の下限・上限。nilは制約なし。
	MinAmount *int64
	MaxAmount *int64
	// JobTypes は職種の選択集合。空は絞り込みなし。
	JobTypes []string
	// FieldOfStudy / AcademicLevel は完全一致フィルタ。"all"または空はスキップ。
	FieldOfStudy  string
	AcademicLevel string
	// Duration は期間の部分一致フィルタ。
	Duration string
	// Distance はキャンパスからの距離帯の部分一致フィルタ。宿舎案件向け。
	Distance string
	// Amenities はアメニティの選択集合。listing側との積集合が非空なら一致。
	Amenities []string
}

// Matches はlistingがフィルタ集合のすべての述語を満たすかどうかを返す。
// 各述語は独立に評価され、論理ANDで結合される。
// フィルタが有効なのに対象フィールドが欠けている案件は必ず不一致となり、
// 不完全なレコードが型付きフィルタをすり抜けることはない。
func (f *Filter) Matches(listing *model.Listing) bool {
	if !f.matchesSearch(listing) {
		return false
	}
	if !f.matchesLocation(listing) {
		return false
	}
	if !f.matchesAmount(listing) {
		return false
	}
	if !f.matchesJobType(listing) {
		return false
	}
	if !matchesExact(f.FieldOfStudy, listing.FieldOfStudy) {
		return false
	}
	if !matchesExact(f.AcademicLevel, listing.AcademicLevel) {
		return false
	}
	if !matchesSubstring(f.Duration, listing.Duration) {
		return false
	}
	if !matchesSubstring(f.Distance, listing.DistanceFromCampus) {
		return false
	}
	if !f.matchesAmenities(listing) {
		return false
	}
	return true
}

// matchesSearch は検索語をタイトル・説明・提供機関・カテゴリに対して
// 大文字小文字を無視した部分一致で評価する。いずれか1つの一致で合格。
func (f *Filter) matchesSearch(listing *model.Listing) bool {
	term := strings.TrimSpace(f.Search)
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	for _, field := range []string{listing.Title, listing.Description, listing.Institution, listing.Category} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func (f *Filter) matchesLocation(listing *model.Listing) bool {
	return matchesSubstring(f.Location, listing.Location)
}

// matchesAmount は金額の下限・上限を評価する。
// 境界が有効なのに金額未設定の案件は不一致となる。
func (f *Filter) matchesAmount(listing *model.Listing) bool {
	if f.MinAmount == nil && f.MaxAmount == nil {
		return true
	}
	if listing.Amount == nil {
		return false
	}
	if f.MinAmount != nil && *listing.Amount < *f.MinAmount {
		return false
	}
	if f.MaxAmount != nil && *listing.Amount > *f.MaxAmount {
		return false
	}
	return true
}

func (f *Filter) matchesJobType(listing *model.Listing) bool {
	if len(f.JobTypes) == 0 {
		return true
	}
	if listing.JobType == "" {
		return false
	}
	for _, jt := range f.JobTypes {
		if strings.EqualFold(jt, listing.JobType) {
			return true
		}
	}
	return false
}

// matchesAmenities はフィルタ側とlisting側のアメニティ集合の積が
// 非空であるかどうかを評価する。
func (f *Filter) matchesAmenities(listing *model.Listing) bool {
	if len(f.Amenities) == 0 {
		return true
	}
	for _, a := range f.Amenities {
		if listing.HasAmenity(a) {
			return true
		}
	}
	return false
}

// matchesExact は完全一致フィルタを評価する。
// フィルタ値が空または"all"の場合はスキップし、そうでなければ
// 対象フィールドとの大文字小文字を無視した完全一致を要求する。
func matchesExact(filter, value string) bool {
	if filter == "" || strings.EqualFold(filter, filterAll) {
		return true
	}
	if value == "" {
		return false
	}
	return strings.EqualFold(filter, value)
}

// matchesSubstring は部分一致フィルタを評価する。
// フィルタ値が空または"all"の場合はスキップする。
func matchesSubstring(filter, value string) bool {
	if filter == "" || strings.EqualFold(filter, filterAll) {
		return true
	}
	if value == "" {
		return false
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(filter))
}
