package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/badge"
	"github.com/trezcool/academia/storage/database"
)

const badgeSelect = "SELECT id, name, description, icon, created_at, updated_at FROM badges"

type (
	badgeRepository struct {
		db *sqlx.DB
	}

	badgeRow struct {
		ID          string    `db:"id"`
		Name        string    `db:"name"`
		Description string    `db:"description"`
		Icon        string    `db:"icon"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	studentBadgeRow struct {
		ID        string    `db:"id"`
		StudentID string    `db:"student_id"`
		BadgeID   string    `db:"badge_id"`
		AwardedAt time.Time `db:"awarded_at"`
		Badge     badgeRow  `db:"badge"`
	}
)

var _ badge.Repository = (*badgeRepository)(nil)

func NewBadgeRepository(db *sqlx.DB) badge.Repository {
	return &badgeRepository{db: db}
}

func (row badgeRow) toBadge() badge.Badge {
	return badge.Badge{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Icon:        row.Icon,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (row studentBadgeRow) toStudentBadge() badge.StudentBadge {
	b := row.Badge.toBadge()
	return badge.StudentBadge{
		ID:        row.ID,
		StudentID: row.StudentID,
		BadgeID:   row.BadgeID,
		Badge:     &b,
		AwardedAt: row.AwardedAt.UTC(),
	}
}

func badgeErr(err error, msg string) error {
	if database.IsUniqueViolation(err, "badges_name_key") {
		return badge.ErrNameExists
	}
	return errors.Wrap(err, msg)
}

func (repo *badgeRepository) CheckNameUniqueness(ctx context.Context, name string, excludedIDs ...string) error {
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM badges WHERE lower(name) = lower($1) AND NOT (id::text = ANY($2::text[])))"
	if err := repo.db.GetContext(ctx, &exists, q, name, textArray(excludedIDs)); err != nil {
		return errors.Wrap(err, "checking badge name uniqueness")
	}
	if exists {
		return badge.ErrNameExists
	}
	return nil
}

func (repo *badgeRepository) CreateBadge(ctx context.Context, b badge.Badge) (badge.Badge, error) {
	b.ID = newID()
	q := "INSERT INTO badges (id, name, description, icon, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)"
	if _, err := repo.db.ExecContext(ctx, q, b.ID, b.Name, b.Description, b.Icon, b.CreatedAt.UTC(), b.UpdatedAt.UTC()); err != nil {
		return badge.Badge{}, badgeErr(err, "inserting badge")
	}
	return repo.GetBadge(ctx, b.ID)
}

func (repo *badgeRepository) QueryBadges(ctx context.Context) ([]badge.Badge, error) {
	var rows []badgeRow
	if err := repo.db.SelectContext(ctx, &rows, badgeSelect+" ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying badges")
	}
	badges := make([]badge.Badge, 0, len(rows))
	for _, row := range rows {
		badges = append(badges, row.toBadge())
	}
	return badges, nil
}

func (repo *badgeRepository) GetBadge(ctx context.Context, id string) (badge.Badge, error) {
	var row badgeRow
	if err := repo.db.GetContext(ctx, &row, badgeSelect+" WHERE id = $1", id); err != nil {
		return badge.Badge{}, trapNoRowsErr(err, badge.ErrNotFound, "finding badge")
	}
	return row.toBadge(), nil
}

func (repo *badgeRepository) UpdateBadge(ctx context.Context, b badge.Badge) (badge.Badge, error) {
	q := "UPDATE badges SET name = $2, description = $3, icon = $4, updated_at = $5 WHERE id = $1"
	res, err := repo.db.ExecContext(ctx, q, b.ID, b.Name, b.Description, b.Icon, b.UpdatedAt.UTC())
	if err != nil {
		return badge.Badge{}, badgeErr(err, "updating badge")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return badge.Badge{}, badge.ErrNotFound
	}
	return repo.GetBadge(ctx, b.ID)
}

// DeleteBadge relies on the awards cascading.
func (repo *badgeRepository) DeleteBadge(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM badges WHERE id = $1", id)
	if err != nil {
		return trapNoRowsErr(err, badge.ErrNotFound, "deleting badge")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return badge.ErrNotFound
	}
	return nil
}

func (repo *badgeRepository) AwardBadge(ctx context.Context, sb badge.StudentBadge) (badge.StudentBadge, error) {
	sb.ID = newID()
	q := "INSERT INTO student_badges (id, student_id, badge_id, awarded_at) VALUES ($1, $2, $3, $4)"
	_, err := repo.db.ExecContext(ctx, q, sb.ID, sb.StudentID, sb.BadgeID, sb.AwardedAt.UTC())
	switch {
	case database.IsUniqueViolation(err, "student_badges_student_badge_key"):
		return badge.StudentBadge{}, badge.ErrAlreadyAwarded
	case database.IsForeignKeyViolation(err, "student_badges_badge_id_fkey"):
		return badge.StudentBadge{}, badge.ErrNotFound
	case err != nil:
		return badge.StudentBadge{}, errors.Wrap(err, "awarding badge")
	}

	b, err := repo.GetBadge(ctx, sb.BadgeID)
	if err != nil {
		return badge.StudentBadge{}, err
	}
	sb.Badge = &b
	sb.AwardedAt = sb.AwardedAt.UTC()
	return sb, nil
}

func (repo *badgeRepository) RevokeBadge(ctx context.Context, studentID, badgeID string) error {
	q := "DELETE FROM student_badges WHERE student_id::text = $1 AND badge_id::text = $2"
	res, err := repo.db.ExecContext(ctx, q, studentID, badgeID)
	if err != nil {
		return errors.Wrap(err, "revoking badge")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return badge.ErrAwardNotFound
	}
	return nil
}

func (repo *badgeRepository) QueryStudentBadges(ctx context.Context, studentID string) ([]badge.StudentBadge, error) {
	q := `SELECT sb.id, sb.student_id, sb.badge_id, sb.awarded_at,
	             b.id AS "badge.id", b.name AS "badge.name", b.description AS "badge.description",
	             b.icon AS "badge.icon", b.created_at AS "badge.created_at", b.updated_at AS "badge.updated_at"
	      FROM student_badges sb JOIN badges b ON b.id = sb.badge_id
	      WHERE sb.student_id::text = $1
	      ORDER BY sb.awarded_at DESC`
	var rows []studentBadgeRow
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student badges")
	}
	sbs := make([]badge.StudentBadge, 0, len(rows))
	for _, row := range rows {
		sbs = append(sbs, row.toStudentBadge())
	}
	return sbs, nil
}
