package domain

import "time"

// FeaturedCollection is a collection highlighted on the landing page.
type FeaturedCollection struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	Designer    string    `json:"designer"`
	CreatedAt   time.Time `json:"created_at"`
	IsFeatured  bool      `json:"is_featured"`
}

// NewsItem is a published platform announcement.
type NewsItem struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ImageURL    *string   `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	IsPublished bool      `json:"is_published"`
}

// PlatformStats holds the headline counters shown on the landing page.
type PlatformStats struct {
	TotalDesigners   int `json:"total_designers"`
	TotalCollections int `json:"total_collections"`
	TotalUsers       int `json:"total_users"`
}

// LandingContent is everything the landing page displays, fetched together.
type LandingContent struct {
	Collections []FeaturedCollection `json:"collections"`
	News        []NewsItem           `json:"news"`
	Stats       PlatformStats        `json:"stats"`
}
