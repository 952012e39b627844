package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"vitrine/internal/domain"
)

// LikeResponse is the updated listing returned by the like endpoints.
// LikesCount is nil when the server omits the counter.
type LikeResponse struct {
	Annonce    domain.Annonce
	LikesCount *int
}

type likeDTO struct {
	domain.Annonce
	LikesCount *int `json:"likes_count"`
}

// FeedPage is one page of the listing feed.
type FeedPage struct {
	Results []domain.Annonce `json:"results"`
	Next    string           `json:"next,omitempty"`
	Count   int              `json:"count"`
}

// AnnonceInput carries the writable fields of a listing. Nil fields are
// left untouched by UpdateAnnonce.
type AnnonceInput struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Currency    *string  `json:"currency,omitempty"`
	City        *string  `json:"city,omitempty"`
	Images      []string `json:"images,omitempty"`
	VitrineSlug *string  `json:"vitrine_slug,omitempty"`
}

func annoncePath(slug string) string {
	return "/annonces/" + url.PathEscape(slug)
}

// Like registers a like and returns the updated listing.
func (c *Client) Like(ctx context.Context, slug string) (*LikeResponse, error) {
	return c.like(ctx, http.MethodPost, slug)
}

// Unlike removes a like and returns the updated listing.
func (c *Client) Unlike(ctx context.Context, slug string) (*LikeResponse, error) {
	return c.like(ctx, http.MethodDelete, slug)
}

func (c *Client) like(ctx context.Context, method, slug string) (*LikeResponse, error) {
	var dto likeDTO
	if err := c.do(ctx, method, annoncePath(slug)+"/like", nil, &dto); err != nil {
		return nil, err
	}
	resp := &LikeResponse{Annonce: dto.Annonce, LikesCount: dto.LikesCount}
	if dto.LikesCount != nil {
		resp.Annonce.LikesCount = *dto.LikesCount
	}
	return resp, nil
}

// Feed returns the given page of the listing feed, starting at 1.
func (c *Client) Feed(ctx context.Context, page int) (*FeedPage, error) {
	if page < 1 {
		page = 1
	}
	var feed FeedPage
	if err := c.do(ctx, http.MethodGet, "/annonces/feed?page="+strconv.Itoa(page), nil, &feed); err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return &feed, nil
}

func (c *Client) GetAnnonce(ctx context.Context, slug string) (*domain.Annonce, error) {
	var annonce domain.Annonce
	if err := c.do(ctx, http.MethodGet, annoncePath(slug), nil, &annonce); err != nil {
		return nil, fmt.Errorf("failed to get annonce %s: %w", slug, err)
	}
	return &annonce, nil
}

func (c *Client) CreateAnnonce(ctx context.Context, in AnnonceInput) (*domain.Annonce, error) {
	var annonce domain.Annonce
	if err := c.do(ctx, http.MethodPost, "/annonces", in, &annonce); err != nil {
		return nil, fmt.Errorf("failed to create annonce: %w", err)
	}
	return &annonce, nil
}

func (c *Client) UpdateAnnonce(ctx context.Context, slug string, in AnnonceInput) (*domain.Annonce, error) {
	var annonce domain.Annonce
	if err := c.do(ctx, http.MethodPatch, annoncePath(slug), in, &annonce); err != nil {
		return nil, fmt.Errorf("failed to update annonce %s: %w", slug, err)
	}
	return &annonce, nil
}

func (c *Client) DeleteAnnonce(ctx context.Context, slug string) error {
	if err := c.do(ctx, http.MethodDelete, annoncePath(slug), nil, nil); err != nil {
		return fmt.Errorf("failed to delete annonce %s: %w", slug, err)
	}
	return nil
}
