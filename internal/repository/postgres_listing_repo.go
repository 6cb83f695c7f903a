package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/veritas/cyberhub/internal/model"
)

// PostgresListingRepo はPostgreSQLを使用した案件リポジトリ。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

// listingColumns はlistingsテーブルのSELECT列リスト。
const listingColumns = `id, type, category, title, description, institution, location,
	amount, duration, deadline, contact, amenities, job_type, field_of_study,
	academic_level, distance_from_campus, posted_at, source_feed_id, source_guid,
	source_url, created_at, updated_at`

// scanListing は1行を*model.Listingに変換する。
func scanListing(row interface{ Scan(...any) error }) (*model.Listing, error) {
	l := &model.Listing{}
	var institution, location, duration, contact sql.NullString
	var jobType, fieldOfStudy, academicLevel, distance sql.NullString
	var sourceFeedID, sourceGUID, sourceURL sql.NullString
	var amount sql.NullInt64
	var deadline sql.NullTime
	var typ string

	err := row.Scan(
		&l.ID, &typ, &l.Category, &l.Title, &l.Description, &institution, &location,
		&amount, &duration, &deadline, &contact, pq.Array(&l.Amenities), &jobType,
		&fieldOfStudy, &academicLevel, &distance, &l.PostedAt, &sourceFeedID,
		&sourceGUID, &sourceURL, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Type = model.ListingType(typ)
	l.Institution = nullStringValue(institution)
	l.Location = nullStringValue(location)
	l.Duration = nullStringValue(duration)
	l.Contact = nullStringValue(contact)
	l.JobType = nullStringValue(jobType)
	l.FieldOfStudy = nullStringValue(fieldOfStudy)
	l.AcademicLevel = nullStringValue(academicLevel)
	l.DistanceFromCampus = nullStringValue(distance)
	l.SourceFeedID = nullStringValue(sourceFeedID)
	l.SourceGUID = nullStringValue(sourceGUID)
	l.SourceURL = nullStringValue(sourceURL)
	l.Amount = nullInt64Ptr(amount)
	l.Deadline = nullTimePtr(deadline)

	return l, nil
}

// FindByID は指定IDの案件を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("案件の取得に失敗しました: %w", err)
	}
	return l, nil
}

// FindBySourceGUID は取り込み元フィードIDとGUIDで案件を検索する。
func (r *PostgresListingRepo) FindBySourceGUID(ctx context.Context, feedID, guid string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE source_feed_id = $1 AND source_guid = $2`,
		feedID, guid)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GUIDによる案件の検索に失敗しました: %w", err)
	}
	return l, nil
}

// FindBySourceURL は取り込み元URLで案件を検索する。
func (r *PostgresListingRepo) FindBySourceURL(ctx context.Context, sourceURL string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE source_url = $1`, sourceURL)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("URLによる案件の検索に失敗しました: %w", err)
	}
	return l, nil
}

// ListAll は全案件を掲載日時降順で取得する。
func (r *PostgresListingRepo) ListAll(ctx context.Context) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings ORDER BY posted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("案件一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var listings []*model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("案件行の読み取りに失敗しました: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("案件一覧の走査に失敗しました: %w", err)
	}

	return listings, nil
}

// Create は新規案件を作成する。
func (r *PostgresListingRepo) Create(ctx context.Context, l *model.Listing) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO listings (
			id, type, category, title, description, institution, location,
			amount, duration, deadline, contact, amenities, job_type,
			field_of_study, academic_level, distance_from_campus, posted_at,
			source_feed_id, source_guid, source_url, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		l.ID, string(l.Type), l.Category, l.Title, l.Description,
		nullString(l.Institution), nullString(l.Location),
		amountValue(l.Amount), nullString(l.Duration), deadlineValue(l.Deadline),
		nullString(l.Contact), pq.Array(l.Amenities), nullString(l.JobType),
		nullString(l.FieldOfStudy), nullString(l.AcademicLevel),
		nullString(l.DistanceFromCampus), l.PostedAt,
		nullString(l.SourceFeedID), nullString(l.SourceGUID), nullString(l.SourceURL),
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("案件の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存案件を上書き更新する。履歴は保持しない。
func (r *PostgresListingRepo) Update(ctx context.Context, l *model.Listing) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET
			type = $2, category = $3, title = $4, description = $5,
			institution = $6, location = $7, amount = $8, duration = $9,
			deadline = $10, contact = $11, amenities = $12, job_type = $13,
			field_of_study = $14, academic_level = $15, distance_from_campus = $16,
			source_url = $17, updated_at = $18
		WHERE id = $1`,
		l.ID, string(l.Type), l.Category, l.Title, l.Description,
		nullString(l.Institution), nullString(l.Location),
		amountValue(l.Amount), nullString(l.Duration), deadlineValue(l.Deadline),
		nullString(l.Contact), pq.Array(l.Amenities), nullString(l.JobType),
		nullString(l.FieldOfStudy), nullString(l.AcademicLevel),
		nullString(l.DistanceFromCampus), nullString(l.SourceURL), l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("案件の更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの案件を削除する。
func (r *PostgresListingRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("案件の削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteOlderThan は掲載日時がcutoffより古い案件を削除し、削除件数を返す。
func (r *PostgresListingRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE posted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("古い案件の削除に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// amountValue は*int64をsql.NullInt64に変換する。
func amountValue(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// deadlineValue は*time.Timeをsql.NullTimeに変換する。
func deadlineValue(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
