package postgres

import (
	"context"
	"fmt"
	"time"

	"fee-engine/internal/core/domain"

	"github.com/google/uuid"
)

// WebhookDeliveryRepo implements ports.WebhookDeliveryRepository. Rows are append-only.
type WebhookDeliveryRepo struct {
	pool Pool
}

func NewWebhookDeliveryRepo(pool Pool) *WebhookDeliveryRepo {
	return &WebhookDeliveryRepo{pool: pool}
}

func (r *WebhookDeliveryRepo) Create(ctx context.Context, d *domain.WebhookDelivery) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_deliveries
		(id, transaction_id, business_id, url, event, status, http_status, attempt, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.TransactionID, d.BusinessID, d.URL, d.Event, string(d.Status),
		d.HTTPStatus, d.Attempt, d.Error, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

func (r *WebhookDeliveryRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.WebhookDelivery, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, transaction_id, business_id, url, event, status, http_status, attempt, error, created_at
		FROM webhook_deliveries
		WHERE transaction_id = $1
		ORDER BY created_at ASC`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var out []domain.WebhookDelivery
	for rows.Next() {
		var d domain.WebhookDelivery
		var status string
		if err := rows.Scan(
			&d.ID, &d.TransactionID, &d.BusinessID, &d.URL, &d.Event, &status,
			&d.HTTPStatus, &d.Attempt, &d.Error, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook delivery: %w", err)
		}
		d.Status = domain.WebhookStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}
