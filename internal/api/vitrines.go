package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"vitrine/internal/domain"
)

// VitrineInput carries the writable fields of a shop-front.
type VitrineInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	City        *string `json:"city,omitempty"`
	LogoURL     *string `json:"logo_url,omitempty"`
}

func vitrinePath(slug string) string {
	return "/vitrines/" + url.PathEscape(slug)
}

func (c *Client) ListVitrines(ctx context.Context) ([]domain.Vitrine, error) {
	var vitrines []domain.Vitrine
	if err := c.do(ctx, http.MethodGet, "/vitrines", nil, &vitrines); err != nil {
		return nil, fmt.Errorf("failed to list vitrines: %w", err)
	}
	return vitrines, nil
}

func (c *Client) GetVitrine(ctx context.Context, slug string) (*domain.Vitrine, error) {
	var vitrine domain.Vitrine
	if err := c.do(ctx, http.MethodGet, vitrinePath(slug), nil, &vitrine); err != nil {
		return nil, fmt.Errorf("failed to get vitrine %s: %w", slug, err)
	}
	return &vitrine, nil
}

func (c *Client) CreateVitrine(ctx context.Context, in VitrineInput) (*domain.Vitrine, error) {
	var vitrine domain.Vitrine
	if err := c.do(ctx, http.MethodPost, "/vitrines", in, &vitrine); err != nil {
		return nil, fmt.Errorf("failed to create vitrine: %w", err)
	}
	return &vitrine, nil
}

func (c *Client) UpdateVitrine(ctx context.Context, slug string, in VitrineInput) (*domain.Vitrine, error) {
	var vitrine domain.Vitrine
	if err := c.do(ctx, http.MethodPatch, vitrinePath(slug), in, &vitrine); err != nil {
		return nil, fmt.Errorf("failed to update vitrine %s: %w", slug, err)
	}
	return &vitrine, nil
}

func (c *Client) DeleteVitrine(ctx context.Context, slug string) error {
	if err := c.do(ctx, http.MethodDelete, vitrinePath(slug), nil, nil); err != nil {
		return fmt.Errorf("failed to delete vitrine %s: %w", slug, err)
	}
	return nil
}
