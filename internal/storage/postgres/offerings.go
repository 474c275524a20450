package postgres

import "context"

type offeringRepository struct {
	storage *Storage
}

func (r *offeringRepository) Touch(ctx context.Context, productID string, courseID *string) error {
	const query = `INSERT INTO offerings (product_id, course_id, updated_on)
                   VALUES ($1, COALESCE($2, ''), NOW())
                   ON CONFLICT (product_id, course_id) DO UPDATE SET updated_on = NOW()`
	_, err := r.storage.pool.Exec(ctx, query, productID, courseID)
	return err
}
