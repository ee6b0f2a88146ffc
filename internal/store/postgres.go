package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"masterpay/internal/models"
)

// Postgres is the production Store backed by pgx. Amounts are stored as
// NUMERIC and moved over the wire as strings to avoid float conversions.
type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{Pool: pool}
}

const paymentColumns = `
	id, order_id, client_id, master_id,
	amount::text, currency,
	platform_fee_percent::text, platform_fee_amount::text, master_receive_amount::text,
	status,
	client_confirmed, client_confirmed_at, master_confirmed, master_confirmed_at,
	payment_method, capture_ref,
	created_at, expires_at, released_at, refunded_at,
	gateway_settled, gateway_settled_at,
	description, dispute_reason, notes,
	version, updated_at`

func (s *Postgres) Get(ctx context.Context, id string) (*models.EscrowPayment, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM escrow_payments WHERE id=$1
	`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Postgres) GetByOrder(ctx context.Context, orderID string) ([]*models.EscrowPayment, error) {
	return s.list(ctx, `
		SELECT `+paymentColumns+`
		FROM escrow_payments
		WHERE order_id=$1
		ORDER BY created_at DESC, id
	`, orderID)
}

func (s *Postgres) ListByUser(ctx context.Context, userID string, role Role) ([]*models.EscrowPayment, error) {
	column := "client_id"
	if role == RoleMaster {
		column = "master_id"
	}
	return s.list(ctx, `
		SELECT `+paymentColumns+`
		FROM escrow_payments
		WHERE `+column+`=$1
		ORDER BY created_at DESC, id
	`, userID)
}

func (s *Postgres) ListExpirable(ctx context.Context, now time.Time) ([]*models.EscrowPayment, error) {
	return s.list(ctx, `
		SELECT `+paymentColumns+`
		FROM escrow_payments
		WHERE status IN ('awaiting_client','awaiting_master','confirmed_by_master')
		  AND expires_at <= $1
		ORDER BY created_at DESC, id
	`, now)
}

func (s *Postgres) ListUnsettled(ctx context.Context) ([]*models.EscrowPayment, error) {
	return s.list(ctx, `
		SELECT `+paymentColumns+`
		FROM escrow_payments
		WHERE status IN ('released_to_master','refunded_to_client')
		  AND NOT gateway_settled
		ORDER BY created_at DESC, id
	`)
}

func (s *Postgres) Save(ctx context.Context, p *models.EscrowPayment) error {
	if p.Version == 1 {
		res, err := s.Pool.Exec(ctx, `
			INSERT INTO escrow_payments (
				id, order_id, client_id, master_id,
				amount, currency,
				platform_fee_percent, platform_fee_amount, master_receive_amount,
				status,
				client_confirmed, client_confirmed_at, master_confirmed, master_confirmed_at,
				payment_method, capture_ref,
				created_at, expires_at, released_at, refunded_at,
				gateway_settled, gateway_settled_at,
				description, dispute_reason, notes,
				version, updated_at
			) VALUES (
				$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,
				$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27
			)
			ON CONFLICT (id) DO NOTHING
		`, saveArgs(p)...)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return ErrVersionConflict
		}
		return nil
	}

	res, err := s.Pool.Exec(ctx, `
		UPDATE escrow_payments SET
			order_id=$2, client_id=$3, master_id=$4,
			amount=$5, currency=$6,
			platform_fee_percent=$7, platform_fee_amount=$8, master_receive_amount=$9,
			status=$10,
			client_confirmed=$11, client_confirmed_at=$12, master_confirmed=$13, master_confirmed_at=$14,
			payment_method=$15, capture_ref=$16,
			created_at=$17, expires_at=$18, released_at=$19, refunded_at=$20,
			gateway_settled=$21, gateway_settled_at=$22,
			description=$23, dispute_reason=$24, notes=$25,
			version=$26, updated_at=$27
		WHERE id=$1 AND version=$26-1
	`, saveArgs(p)...)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func saveArgs(p *models.EscrowPayment) []any {
	return []any{
		p.ID, p.OrderID, p.ClientID, p.MasterID,
		p.Amount.String(), string(p.Currency),
		p.PlatformFeePercent.String(), p.PlatformFeeAmount.String(), p.MasterReceiveAmount.String(),
		string(p.Status),
		p.ClientConfirmed, p.ClientConfirmedAt, p.MasterConfirmed, p.MasterConfirmedAt,
		string(p.PaymentMethod), p.CaptureRef,
		p.CreatedAt, p.ExpiresAt, p.ReleasedAt, p.RefundedAt,
		p.GatewaySettled, p.GatewaySettledAt,
		p.Description, p.DisputeReason, p.Notes,
		p.Version, p.UpdatedAt,
	}
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.EscrowPayment, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EscrowPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (*models.EscrowPayment, error) {
	var p models.EscrowPayment
	var amount, feePercent, feeAmount, receiveAmount string
	var clientConfirmedAt, masterConfirmedAt, releasedAt, refundedAt, settledAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.OrderID, &p.ClientID, &p.MasterID,
		&amount, &p.Currency,
		&feePercent, &feeAmount, &receiveAmount,
		&p.Status,
		&p.ClientConfirmed, &clientConfirmedAt, &p.MasterConfirmed, &masterConfirmedAt,
		&p.PaymentMethod, &p.CaptureRef,
		&p.CreatedAt, &p.ExpiresAt, &releasedAt, &refundedAt,
		&p.GatewaySettled, &settledAt,
		&p.Description, &p.DisputeReason, &p.Notes,
		&p.Version, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if p.PlatformFeePercent, err = decimal.NewFromString(feePercent); err != nil {
		return nil, err
	}
	if p.PlatformFeeAmount, err = decimal.NewFromString(feeAmount); err != nil {
		return nil, err
	}
	if p.MasterReceiveAmount, err = decimal.NewFromString(receiveAmount); err != nil {
		return nil, err
	}

	if clientConfirmedAt.Valid {
		p.ClientConfirmedAt = &clientConfirmedAt.Time
	}
	if masterConfirmedAt.Valid {
		p.MasterConfirmedAt = &masterConfirmedAt.Time
	}
	if releasedAt.Valid {
		p.ReleasedAt = &releasedAt.Time
	}
	if refundedAt.Valid {
		p.RefundedAt = &refundedAt.Time
	}
	if settledAt.Valid {
		p.GatewaySettledAt = &settledAt.Time
	}
	return &p, nil
}
