package profiles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
	"github.com/joseph-ayodele/directory-submitter/internal/repository"
)

// Service handles business profile rules.
type Service struct {
	profileRepo repository.ProfileRepository
	logger      *slog.Logger
}

// NewService creates a new profile service.
func NewService(profileRepo repository.ProfileRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		profileRepo: profileRepo,
		logger:      logger,
	}
}

// CreateProfileRequest carries the data typed into directory forms.
type CreateProfileRequest struct {
	UserID           string   `json:"user_id" yaml:"user_id"`
	Name             string   `json:"name" yaml:"name"`
	URL              string   `json:"url" yaml:"url"`
	Description      string   `json:"description" yaml:"description"`
	ShortDescription string   `json:"short_description" yaml:"short_description"`
	ContactEmail     string   `json:"contact_email" yaml:"contact_email"`
	ContactName      string   `json:"contact_name" yaml:"contact_name"`
	FoundedYear      int      `json:"founded_year" yaml:"founded_year"`
	Category         string   `json:"category" yaml:"category"`
	Tags             []string `json:"tags" yaml:"tags"`
	LogoURL          string   `json:"logo_url" yaml:"logo_url"`
}

// CreateProfile validates and stores a profile.
func (s *Service) CreateProfile(ctx context.Context, req CreateProfileRequest) (*entity.BusinessProfile, error) {
	p := &entity.BusinessProfile{
		UserID:           strings.TrimSpace(req.UserID),
		Name:             strings.TrimSpace(req.Name),
		URL:              strings.TrimSpace(req.URL),
		Description:      strings.TrimSpace(req.Description),
		ShortDescription: strings.TrimSpace(req.ShortDescription),
		ContactEmail:     strings.TrimSpace(req.ContactEmail),
		ContactName:      strings.TrimSpace(req.ContactName),
		Category:         strings.TrimSpace(req.Category),
	}
	for _, t := range req.Tags {
		if t = strings.TrimSpace(t); t != "" {
			p.Tags = append(p.Tags, t)
		}
	}

	v := common.NewValidator().
		Field("user_id", p.UserID, common.Required).
		Field("name", p.Name, common.Required, common.MaxLen(200)).
		Field("url", p.URL, common.HTTPURL).
		Field("contact_email", p.ContactEmail, common.Email).
		Field("short_description", p.ShortDescription, common.MaxLen(280))
	if logo := strings.TrimSpace(req.LogoURL); logo != "" {
		v.Field("logo_url", logo, common.HTTPURL)
		p.LogoURL = &logo
	}
	if req.FoundedYear != 0 {
		if req.FoundedYear < 1800 || req.FoundedYear > time.Now().Year() {
			v.Field("founded_year", req.FoundedYear, func(field string, value interface{}) *common.ValidationError {
				return &common.ValidationError{Field: field, Value: value, Message: "is out of range"}
			})
		}
		year := req.FoundedYear
		p.FoundedYear = &year
	}
	if err := v.Error(); err != nil {
		return nil, err
	}

	created, err := s.profileRepo.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.logger.Info("profile created successfully", "profile_id", created.ID, "name", created.Name)
	return created, nil
}

// GetProfile loads one profile.
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*entity.BusinessProfile, error) {
	return s.profileRepo.GetByID(ctx, id)
}
