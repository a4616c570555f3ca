package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

const profilesTable = "business_profiles"

var profileColumns = []string{
	"id", "user_id", "name", "url", "description", "short_description", "contact_email",
	"contact_name", "founded_year", "category", "tags", "logo_url", "created_at", "updated_at",
}

type ProfileRepository interface {
	Create(ctx context.Context, p *entity.BusinessProfile) (*entity.BusinessProfile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.BusinessProfile, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type profileRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewProfileRepository(db *DB, logger *slog.Logger) ProfileRepository {
	return &profileRepository{
		db:     db,
		logger: logger,
	}
}

func (r *profileRepository) Create(ctx context.Context, p *entity.BusinessProfile) (*entity.BusinessProfile, error) {
	out := *p
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	now := time.Now().UTC()
	out.CreatedAt, out.UpdatedAt = now, now

	tags, err := json.Marshal(out.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	var founded any
	if out.FoundedYear != nil {
		founded = *out.FoundedYear
	}

	q, args := r.db.builder().Insert(profilesTable).
		Columns(profileColumns...).
		Values(out.ID, out.UserID, out.Name, out.URL, out.Description, out.ShortDescription,
			out.ContactEmail, out.ContactName, founded, out.Category, string(tags),
			nullable(out.LogoURL), out.CreatedAt, out.UpdatedAt).
		Query()
	if _, err := r.db.SQL().ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("failed to create profile", "name", out.Name, "user_id", out.UserID, "error", err)
		return nil, common.WrapError(err, "create profile")
	}
	r.logger.Info("profile created", "profile_id", out.ID, "name", out.Name)
	return &out, nil
}

func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.BusinessProfile, error) {
	b := r.db.builder()
	q, args := b.Select(profileColumns...).From(b.Table(profilesTable)).Where(entsql.EQ("id", id)).Query()
	row := r.db.SQL().QueryRowContext(ctx, q, args...)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to load profile", "profile_id", id, "error", err)
		return nil, common.WrapError(err, "load profile")
	}
	return p, nil
}

func (r *profileRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := r.GetByID(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("failed to check profile existence", "profile_id", id, "error", err)
		return false, err
	}
	return true, nil
}

func scanProfile(row rowScanner) (*entity.BusinessProfile, error) {
	var (
		p       entity.BusinessProfile
		founded sql.NullInt64
		tags    string
		logo    sql.NullString
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.URL, &p.Description, &p.ShortDescription,
		&p.ContactEmail, &p.ContactName, &founded, &p.Category, &tags, &logo,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if founded.Valid {
		y := int(founded.Int64)
		p.FoundedYear = &y
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	p.LogoURL = stringPtr(logo)
	return &p, nil
}
