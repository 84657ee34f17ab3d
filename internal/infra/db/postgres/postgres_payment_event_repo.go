package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/repository"
)

var _ repository.PaymentEventRepository = (*paymentEventRepo)(nil)

type paymentEventRepo struct{ pool *pgxpool.Pool }

func NewPaymentEventRepo(pool *pgxpool.Pool) *paymentEventRepo {
	return &paymentEventRepo{pool: pool}
}

const paymentEventColumns = `id, provider, provider_event_id, type, kind, COALESCE(user_id, ''),
  needs_review, COALESCE(review_reason, ''), COALESCE(raw_payload::text, ''), processed_at`

// InsertIfAbsent relies on the (provider, provider_event_id) unique index;
// a concurrent duplicate blocks until the first transaction settles.
func (r *paymentEventRepo) InsertIfAbsent(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) (bool, error) {
	const q = `
INSERT INTO payment_events (
  id, provider, provider_event_id, type, kind, user_id, needs_review, review_reason, raw_payload, processed_at
) VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,NULLIF($8,''),$9::jsonb,$10)
ON CONFLICT (provider, provider_event_id) DO NOTHING;`

	tag, err := execSQL(ctx, r.pool, tx, q,
		ev.ID, string(ev.Provider), ev.ProviderEventID, ev.Type, string(ev.Kind),
		ev.UserID, ev.NeedsReview, ev.ReviewReason, payloadArg(ev.RawPayload), ev.ProcessedAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentEventRepo) Update(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) error {
	const q = `
UPDATE payment_events
   SET user_id=NULLIF($3,''), needs_review=$4, review_reason=NULLIF($5,'')
 WHERE provider=$1 AND provider_event_id=$2;`
	_, err := execSQL(ctx, r.pool, tx, q, string(ev.Provider), ev.ProviderEventID, ev.UserID, ev.NeedsReview, ev.ReviewReason)
	return mapExecErr(err)
}

func (r *paymentEventRepo) FindByProviderEventID(ctx context.Context, tx repository.Tx, provider model.PaymentProvider, providerEventID string) (*model.PaymentEvent, error) {
	q := `SELECT ` + paymentEventColumns + ` FROM payment_events WHERE provider=$1 AND provider_event_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, string(provider), providerEventID)
	if err != nil {
		return nil, err
	}
	return scanPaymentEvent(row)
}

func (r *paymentEventRepo) ListNeedsReview(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentEventColumns + ` FROM payment_events
 WHERE needs_review
 ORDER BY processed_at DESC
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentEvent
	for rows.Next() {
		ev, err := scanPaymentEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPaymentEvent(row scanner) (*model.PaymentEvent, error) {
	var (
		ev                   model.PaymentEvent
		provider, kind, body string
	)
	if err := row.Scan(&ev.ID, &provider, &ev.ProviderEventID, &ev.Type, &kind, &ev.UserID,
		&ev.NeedsReview, &ev.ReviewReason, &body, &ev.ProcessedAt); err != nil {
		return nil, mapScanErr(err)
	}
	ev.Provider = model.PaymentProvider(provider)
	ev.Kind = model.EventKind(kind)
	if body != "" {
		ev.RawPayload = []byte(body)
	}
	return &ev, nil
}

func payloadArg(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
