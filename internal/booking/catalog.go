package booking

import "github.com/Durgesh2022/yoga-app/internal/api"

// CatalogItem is a class or package sold at a fixed price. Prices are in
// paise.
type CatalogItem struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Credits     int    `json:"credits"`
}

func Catalog() []CatalogItem {
	return []CatalogItem{
		{
			ID:          "hatha-drop-in",
			Kind:        KindClass,
			Title:       "Hatha Yoga",
			Description: "60 minute beginner friendly class",
			Price:       50000,
			Credits:     1,
		},
		{
			ID:          "vinyasa-drop-in",
			Kind:        KindClass,
			Title:       "Vinyasa Flow",
			Description: "75 minute dynamic flow",
			Price:       60000,
			Credits:     1,
		},
		{
			ID:          "meditation-drop-in",
			Kind:        KindClass,
			Title:       "Guided Meditation",
			Description: "45 minute breath and meditation session",
			Price:       30000,
			Credits:     1,
		},
		{
			ID:          "yoga-10-pack",
			Kind:        KindPackage,
			Title:       "10 Class Pack",
			Description: "Any ten classes, valid for 90 days",
			Price:       450000,
			Credits:     10,
		},
		{
			ID:          "yoga-monthly",
			Kind:        KindPackage,
			Title:       "Monthly Membership",
			Description: "Up to 24 classes in 30 days",
			Price:       300000,
			Credits:     24,
		},
	}
}

func findItem(kind Kind, id string) (CatalogItem, error) {
	for _, item := range Catalog() {
		if item.ID == id && item.Kind == kind {
			return item, nil
		}
	}
	return CatalogItem{}, api.NewValidationError("item_id", "unknown "+string(kind)+" item "+id)
}
