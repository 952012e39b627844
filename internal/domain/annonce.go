package domain

import "time"

// Annonce represents a listing as returned by the marketplace API.
type Annonce struct {
	// ID is the server-assigned identifier, used as the key of the liked set.
	ID string `json:"id"`

	// Slug is the URL-safe identifier used by deep links and API paths.
	Slug string `json:"slug"`

	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency,omitempty"`
	City        string   `json:"city,omitempty"`
	Images      []string `json:"images,omitempty"`

	// LikesCount is the server's authoritative like counter.
	LikesCount int `json:"likes_count"`

	// VitrineSlug points at the shop-front the listing belongs to, if any.
	VitrineSlug string `json:"vitrine_slug,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Vitrine represents a seller's shop-front.
type Vitrine struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	City          string    `json:"city,omitempty"`
	LogoURL       string    `json:"logo_url,omitempty"`
	AnnoncesCount int       `json:"annonces_count"`
	Annonces      []Annonce `json:"annonces,omitempty"`
}

// User is the profile stored next to the session token.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Phone    string `json:"phone,omitempty"`
}
