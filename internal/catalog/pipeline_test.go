package catalog

import (
	"testing"
	"time"

	"github.com/veritas/cyberhub/internal/model"
)

// agedJobs はすべて2時間前に掲載されたn件のjob案件を生成する。
func agedJobs(n int) []*model.Listing {
	out := make([]*model.Listing, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &model.Listing{
			ID:       "aged-" + string(rune('a'+i)),
			Type:     model.ListingTypeJob,
			Title:    "Aged listing",
			PostedAt: testNow.Add(-2*time.Hour - time.Duration(i)*time.Minute),
		})
	}
	return out
}

// freshJobs はすべて10分前に掲載されたn件のjob案件を生成する。
func freshJobs(n int) []*model.Listing {
	out := make([]*model.Listing, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &model.Listing{
			ID:       "fresh-" + string(rune('a'+i)),
			Type:     model.ListingTypeJob,
			Title:    "Fresh listing",
			PostedAt: testNow.Add(-10*time.Minute - time.Duration(i)*time.Second),
		})
	}
	return out
}

func mustAssemble(t *testing.T, listings []*model.Listing, tier Tier) *Result {
	t.Helper()
	res, err := Assemble(listings, TaxonomySelection{}, Filter{}, tier, testNow, Options{})
	if err != nil {
		t.Fatalf("Assemble returned unexpected error: %v", err)
	}
	return res
}

// --- 代表的な閲覧シナリオ ---

func TestAssemble_FreeTierCapped(t *testing.T) {
	// 2時間前の案件15件、無料プラン -> 10件可視、5件ロック
	res := mustAssemble(t, agedJobs(15), TierFree)
	if len(res.Visible) != 10 {
		t.Errorf("Visible = %d, want 10", len(res.Visible))
	}
	if res.LockedCount != 5 {
		t.Errorf("LockedCount = %d, want 5", res.LockedCount)
	}
}

func TestAssemble_FreeTierUnderCap(t *testing.T) {
	// 2時間前の案件5件、無料プラン -> 5件可視、ロックなし
	res := mustAssemble(t, agedJobs(5), TierFree)
	if len(res.Visible) != 5 {
		t.Errorf("Visible = %d, want 5", len(res.Visible))
	}
	if res.LockedCount != 0 {
		t.Errorf("LockedCount = %d, want 0", res.LockedCount)
	}
}

func TestAssemble_FreeTierFreshOnlyAllLocked(t *testing.T) {
	// 10分前の新着3件、無料プラン -> 上限に関係なく0件可視、3件ロック
	res := mustAssemble(t, freshJobs(3), TierFree)
	if len(res.Visible) != 0 {
		t.Errorf("Visible = %d, want 0", len(res.Visible))
	}
	if res.LockedCount != 3 {
		t.Errorf("LockedCount = %d, want 3", res.LockedCount)
	}
}

func TestAssemble_PaidTierSeesFresh(t *testing.T) {
	// 同じ新着3件でも有料プランなら全件可視
	res := mustAssemble(t, freshJobs(3), TierPaid)
	if len(res.Visible) != 3 {
		t.Errorf("Visible = %d, want 3", len(res.Visible))
	}
	if res.LockedCount != 0 {
		t.Errorf("LockedCount = %d, want 0", res.LockedCount)
	}
}

func TestAssemble_EmptyInput(t *testing.T) {
	res := mustAssemble(t, nil, TierFree)
	if len(res.Visible) != 0 || res.LockedCount != 0 {
		t.Errorf("空入力: Visible=%d LockedCount=%d, want 0/0", len(res.Visible), res.LockedCount)
	}
}

func TestAssemble_ZeroClockRejected(t *testing.T) {
	_, err := Assemble(agedJobs(1), TaxonomySelection{}, Filter{}, TierFree, time.Time{}, Options{})
	if err == nil {
		t.Fatal("ゼロ値のnowはエラーになるべき")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeInvalidClock {
		t.Errorf("err = %v, want INVALID_CLOCK", err)
	}
}

// --- 検証可能な性質 ---

func TestAssemble_Idempotent(t *testing.T) {
	listings := append(agedJobs(12), freshJobs(4)...)
	first := mustAssemble(t, listings, TierFree)
	second := mustAssemble(t, listings, TierFree)

	if len(first.Visible) != len(second.Visible) || first.LockedCount != second.LockedCount {
		t.Fatalf("同一入力で出力が異なる: %d/%d vs %d/%d",
			len(first.Visible), first.LockedCount, len(second.Visible), second.LockedCount)
	}
	for i := range first.Visible {
		if first.Visible[i].ID != second.Visible[i].ID {
			t.Errorf("位置%dの案件が異なる: %s vs %s", i, first.Visible[i].ID, second.Visible[i].ID)
		}
	}
}

func TestAssemble_TierMonotonicity(t *testing.T) {
	listings := append(agedJobs(15), freshJobs(5)...)
	paid := mustAssemble(t, listings, TierPaid)
	free := mustAssemble(t, listings, TierFree)
	if len(paid.Visible) < len(free.Visible) {
		t.Errorf("有料プランの可視件数が無料未満: paid=%d free=%d", len(paid.Visible), len(free.Visible))
	}
}

func TestAssemble_FreshnessExclusivity(t *testing.T) {
	listings := append(agedJobs(8), freshJobs(8)...)
	res := mustAssemble(t, listings, TierFree)
	for _, l := range res.Visible {
		if IsNew(l.PostedAt, testNow) {
			t.Errorf("無料プランの可視集合に新着案件%sが含まれる", l.ID)
		}
	}
	if len(res.Visible) > FreeTierCap {
		t.Errorf("無料プランの可視件数%dが上限%dを超過", len(res.Visible), FreeTierCap)
	}
}

func TestAssemble_StableOrdering(t *testing.T) {
	same := testNow.Add(-3 * time.Hour)
	listings := []*model.Listing{
		{ID: "first", Type: model.ListingTypeJob, PostedAt: same},
		{ID: "newer", Type: model.ListingTypeJob, PostedAt: testNow.Add(-90 * time.Minute)},
		{ID: "second", Type: model.ListingTypeJob, PostedAt: same},
		{ID: "third", Type: model.ListingTypeJob, PostedAt: same},
	}

	res := mustAssemble(t, listings, TierPaid)
	want := []string{"newer", "first", "second", "third"}
	if len(res.Visible) != len(want) {
		t.Fatalf("Visible = %d, want %d", len(res.Visible), len(want))
	}
	for i, id := range want {
		if res.Visible[i].ID != id {
			t.Errorf("位置%d: got %s, want %s（同時刻は入力順を維持）", i, res.Visible[i].ID, id)
		}
	}
}

func TestAssemble_LockedCountAccounting(t *testing.T) {
	listings := append(agedJobs(15), freshJobs(5)...)
	// タクソノミーとフィルタに一致するのは全20件。無料プランの可視は10件
	res := mustAssemble(t, listings, TierFree)
	if got := res.LockedCount; got != 20-len(res.Visible) {
		t.Errorf("LockedCount = %d, want %d", got, 20-len(res.Visible))
	}
	if res.LockedCount < 0 {
		t.Error("LockedCountは負であってはならない")
	}
}

func TestAssemble_DoesNotMutateInput(t *testing.T) {
	listings := []*model.Listing{
		{ID: "old", Type: model.ListingTypeJob, PostedAt: testNow.Add(-3 * time.Hour)},
		{ID: "new", Type: model.ListingTypeJob, PostedAt: testNow.Add(-90 * time.Minute)},
	}
	ids := []string{listings[0].ID, listings[1].ID}

	mustAssemble(t, listings, TierPaid)

	for i, id := range ids {
		if listings[i].ID != id {
			t.Errorf("入力スライスの位置%dが変更された: got %s, want %s", i, listings[i].ID, id)
		}
	}
}

func TestAssemble_PipelineOrderGateAfterSort(t *testing.T) {
	// ソート後にゲートが適用されるため、無料プランの可視10件は
	// 「最も新しい10件の旧着案件」でなければならない
	listings := agedJobs(15)
	// 入力を時系列シャッフル相当にするため逆順で渡す
	reversed := make([]*model.Listing, len(listings))
	for i, l := range listings {
		reversed[len(listings)-1-i] = l
	}

	res := mustAssemble(t, reversed, TierFree)
	if len(res.Visible) != 10 {
		t.Fatalf("Visible = %d, want 10", len(res.Visible))
	}
	for i := 0; i < len(res.Visible)-1; i++ {
		if res.Visible[i].PostedAt.Before(res.Visible[i+1].PostedAt) {
			t.Fatalf("可視集合が新着順でない: %s < %s", res.Visible[i].ID, res.Visible[i+1].ID)
		}
	}
	// agedJobsはインデックスが小さいほど新しい。可視10件は先頭10件と一致する
	for i := 0; i < 10; i++ {
		if res.Visible[i].ID != listings[i].ID {
			t.Errorf("位置%d: got %s, want %s", i, res.Visible[i].ID, listings[i].ID)
		}
	}
}

func TestAssemble_PageSizeOption(t *testing.T) {
	res, err := Assemble(agedJobs(15), TaxonomySelection{}, Filter{}, TierPaid, testNow, Options{PageSize: 4})
	if err != nil {
		t.Fatalf("Assemble returned unexpected error: %v", err)
	}
	if len(res.Visible) != 4 {
		t.Errorf("Visible = %d, want 4", len(res.Visible))
	}
	if res.LockedCount != 11 {
		t.Errorf("LockedCount = %d, want 11", res.LockedCount)
	}
}

func TestAssemble_SkipsNilListings(t *testing.T) {
	listings := []*model.Listing{nil, agedJobs(1)[0], nil}
	res := mustAssemble(t, listings, TierPaid)
	if len(res.Visible) != 1 {
		t.Errorf("nil要素を除外して1件可視: got %d", len(res.Visible))
	}
}
