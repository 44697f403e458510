package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meliscout/meli-scraper/internal/models"
)

const upsertItemSQL = `
	INSERT INTO items (
		source, title, url, image, price, discount_price,
		rating, rating_count, description, sold, reviews
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (source, url) DO UPDATE SET
		title          = EXCLUDED.title,
		image          = EXCLUDED.image,
		price          = EXCLUDED.price,
		discount_price = EXCLUDED.discount_price,
		rating         = EXCLUDED.rating,
		rating_count   = EXCLUDED.rating_count,
		description    = EXCLUDED.description,
		sold           = EXCLUDED.sold,
		reviews        = EXCLUDED.reviews,
		scraped_at     = now()`

// SaveItems upserts a scrape run's items under the given source label
// (the keyword or URL the run was started with). All rows go in one
// transaction; the count of stored items is returned.
func (db *DB) SaveItems(ctx context.Context, items []models.Item, source string) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	stored := 0
	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, item := range items {
			reviews, err := json.Marshal(item.Reviews)
			if err != nil {
				return fmt.Errorf("encode reviews for %s: %w", item.URL, err)
			}
			_, err = tx.Exec(ctx, upsertItemSQL,
				source, item.Title, item.URL, item.Image,
				item.Price, item.DiscountPrice, item.Rating, item.RatingCount,
				item.Description, item.Sold, reviews,
			)
			if err != nil {
				return fmt.Errorf("upsert item %s: %w", item.URL, err)
			}
			stored++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}
