// Package catalog は掲載案件のフィルタリングとアクセス階層制御のエンジンを提供する。
// タクソノミー絞り込み、属性フィルタ、鮮度判定、アクセスゲート、並び替えを
// 1本の純粋なパイプラインとして実装する。
package catalog

import (
	"strings"

	"github.com/veritas/cyberhub/internal/model"
)

// MajorCategory は案件閲覧画面の大カテゴリを表す。
type MajorCategory string

const (
	// MajorCategoryAll は大カテゴリによる絞り込みなしを表す。
	MajorCategoryAll MajorCategory = "all"
	// MajorCategoryECitizen は行政サービス（E-Citizen）カテゴリ。
	MajorCategoryECitizen MajorCategory = "e-citizen"
	// MajorCategoryStudent は学生向け（奨学金・インターン・寮）カテゴリ。
	MajorCategoryStudent MajorCategory = "student"
	// MajorCategoryRemote はリモートワークカテゴリ。
	MajorCategoryRemote MajorCategory = "remote"
)

// TaxonomySelection は閲覧者が選択した大カテゴリとサブカテゴリの組を表す。
// どちらも空文字列は「絞り込みなし」を意味する。
type TaxonomySelection struct {
	Major MajorCategory
	Sub   string
}

// studentSubTypes は学生カテゴリのサブカテゴリと案件型の対応表。
var studentSubTypes = map[string]model.ListingType{
	"hostels":      model.ListingTypeHostel,
	"internships":  model.ListingTypeInternship,
	"bursaries":    model.ListingTypeBursary,
	"scholarships": model.ListingTypeScholarship,
}

// MatchesTaxonomy はlistingが選択されたカテゴリに属するかどうかを判定する。
// 副作用を持たない全域関数であり、未知のサブカテゴリは絞り込みなしとして扱う。
//
//   - e-citizen: type == government
//   - student:   type ∈ {bursary, scholarship, internship, hostel}。
//     サブカテゴリ指定時は対応する単一の型に絞り込む。
//   - remote:    type == job。サブカテゴリ指定時はlisting.Categoryとの
//     大文字小文字を無視した一致で絞り込む。
//
// 未知または空の大カテゴリは全件一致として扱う。
func MatchesTaxonomy(listing *model.Listing, sel TaxonomySelection) bool {
	switch sel.Major {
	case MajorCategoryECitizen:
		return listing.Type == model.ListingTypeGovernment

	case MajorCategoryStudent:
		if t, ok := studentSubTypes[strings.ToLower(sel.Sub)]; ok {
			return listing.Type == t
		}
		switch listing.Type {
		case model.ListingTypeBursary, model.ListingTypeScholarship,
			model.ListingTypeInternship, model.ListingTypeHostel:
			return true
		}
		return false

	case MajorCategoryRemote:
		if listing.Type != model.ListingTypeJob {
			return false
		}
		if sel.Sub != "" {
			return strings.EqualFold(listing.Category, sel.Sub)
		}
		return true

	default:
		// 未知の大カテゴリおよび "all"/空は絞り込みなし
		return true
	}
}
