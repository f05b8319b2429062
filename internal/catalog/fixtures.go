package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fjod/storefront/internal/domain"
)

// Fixtures returns the demo catalogue used by the local backends.
func Fixtures() []domain.Product {
	return []domain.Product{
		fixture("1", "Premium Cushion", "Luxurious velvet cushion with premium filling", 89, domain.CategoryTextiles, "/images.jpg", 5, 45, "TXT-CUSH-001", "2024-11-15", "2024-12-10"),
		fixture("2", "Wooden Side Table", "Handcrafted oak side table with modern design", 249, domain.CategoryFurniture, "/images (1).jpg", 5, 12, "FRN-TABL-002", "2024-10-20", "2024-12-08"),
		fixture("3", "Designer Rug", "Hand-woven wool rug with geometric patterns", 399, domain.CategoryTextiles, "/images (2).jpg", 5, 8, "TXT-RUG-003", "2024-09-05", "2024-12-05"),
		fixture("4", "Modern Pendant Light", "Elegant brass pendant light fixture", 179, domain.CategoryLighting, domain.PlaceholderImage, 4, 23, "LGT-PEND-004", "2024-11-01", "2024-12-09"),
		fixture("5", "Ceramic Vase Set", "Set of 3 handmade ceramic vases", 129, domain.CategoryDecor, domain.PlaceholderImage, 5, 31, "DCR-VASE-005", "2024-10-15", "2024-12-07"),
		fixture("6", "Leather Armchair", "Premium leather armchair with solid wood frame", 899, domain.CategoryFurniture, domain.PlaceholderImage, 5, 5, "FRN-ARMCH-006", "2024-08-20", "2024-12-06"),
		fixture("7", "Wall Mirror Set", "Set of 3 decorative wall mirrors", 159, domain.CategoryDecor, domain.PlaceholderImage, 4, 18, "DCR-MIRR-007", "2024-11-10", "2024-12-11"),
		fixture("8", "Table Lamp", "Contemporary table lamp with fabric shade", 89, domain.CategoryLighting, domain.PlaceholderImage, 4, 27, "LGT-LAMP-008", "2024-09-25", "2024-12-04"),
		fixture("9", "Brass Bookends", "Decorative brass bookends with geometric design", 69, domain.CategoryAccessories, domain.PlaceholderImage, 5, 42, "ACC-BOOK-009", "2024-10-30", "2024-12-03"),
	}
}

func fixture(id, name, desc string, price int64, cat domain.Category, image string, rating, stock int, sku, created, updated string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        name,
		Description: desc,
		Price:       decimal.NewFromInt(price),
		Stock:       stock,
		SKU:         sku,
		Image:       image,
		Category:    cat,
		Rating:      rating,
		IsActive:    true,
		CreatedAt:   mustDate(created),
		UpdatedAt:   mustDate(updated),
	}
}

func mustDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}
