package entity

import (
	"time"

	"github.com/google/uuid"
)

// BusinessProfile is the data typed into directory forms.
type BusinessProfile struct {
	ID               uuid.UUID `json:"id"`
	UserID           string    `json:"user_id"`
	Name             string    `json:"name"`
	URL              string    `json:"url"`
	Description      string    `json:"description"`
	ShortDescription string    `json:"short_description"`
	ContactEmail     string    `json:"contact_email"`
	ContactName      string    `json:"contact_name"`
	FoundedYear      *int      `json:"founded_year,omitempty"`
	Category         string    `json:"category"`
	Tags             []string  `json:"tags"`
	LogoURL          *string   `json:"logo_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
