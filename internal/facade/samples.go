package facade

import (
	"time"

	"github.com/suanfamama/atelier/internal/domain"
)

// Sample content served when the backend cannot answer a display read.

func sampleCollections() []domain.FeaturedCollection {
	return []domain.FeaturedCollection{
		{
			ID:          1,
			Title:       "Summer Elegance 2024",
			Description: "A stunning collection featuring flowing fabrics and vibrant colors perfect for summer occasions.",
			ImageURL:    "https://images.unsplash.com/photo-1515372039744-b8f02a3ae446?w=800&h=600&fit=crop",
			Designer:    "Elena Rodriguez",
			CreatedAt:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			IsFeatured:  true,
		},
		{
			ID:          2,
			Title:       "Urban Minimalist",
			Description: "Clean lines and neutral tones define this contemporary urban collection.",
			ImageURL:    "https://images.unsplash.com/photo-1469334031218-e382a71b716b?w=800&h=600&fit=crop",
			Designer:    "Marcus Chen",
			CreatedAt:   time.Date(2024, 1, 10, 14, 30, 0, 0, time.UTC),
			IsFeatured:  true,
		},
		{
			ID:          3,
			Title:       "Vintage Revival",
			Description: "Classic styles reimagined with modern techniques and sustainable materials.",
			ImageURL:    "https://images.unsplash.com/photo-1490481651871-ab68de25d43d?w=800&h=600&fit=crop",
			Designer:    "Sophie Laurent",
			CreatedAt:   time.Date(2024, 1, 5, 9, 15, 0, 0, time.UTC),
			IsFeatured:  true,
		},
	}
}

func sampleNews() []domain.NewsItem {
	img1 := "https://images.unsplash.com/photo-1558618666-fcd25c85cd64?w=800&h=400&fit=crop"
	img2 := "https://images.unsplash.com/photo-1441986300917-64674bd600d8?w=800&h=400&fit=crop"
	return []domain.NewsItem{
		{
			ID:          1,
			Title:       "AI-Powered Fashion Design Revolution",
			Content:     "Discover how our platform is transforming the fashion industry with cutting-edge AI technology.",
			ImageURL:    &img1,
			PublishedAt: time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC),
			IsPublished: true,
		},
		{
			ID:          2,
			Title:       "New Designer Spotlight: Rising Stars",
			Content:     "Meet the talented designers who are making waves on our platform this month.",
			ImageURL:    &img2,
			PublishedAt: time.Date(2024, 1, 18, 15, 30, 0, 0, time.UTC),
			IsPublished: true,
		},
	}
}

func sampleStats() domain.PlatformStats {
	return domain.PlatformStats{
		TotalDesigners:   1250,
		TotalCollections: 3400,
		TotalUsers:       15600,
	}
}
