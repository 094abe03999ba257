package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/talepify/entitlement-service/internal/models"
)

const subscriptionColumns = `id, user_id, plan_id, status, start_date, end_date,
	auto_renew, payment_method, transactions, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub models.Subscription
		raw []byte
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status, &sub.StartDate, &sub.EndDate,
		&sub.AutoRenew, &sub.PaymentMethod, &raw, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &sub.Transactions); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	if sub.Transactions == nil {
		sub.Transactions = []models.Transaction{}
	}
	sub.StartDate = sub.StartDate.UTC()
	sub.EndDate = sub.EndDate.UTC()
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}

// GetCurrent последняя созданная запись пользователя.
func (s *Storage) GetCurrent(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "repository.GetCurrent"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSubscription(ctx context.Context, db execer, sub *models.Subscription) error {
	txs := sub.Transactions
	if txs == nil {
		txs = []models.Transaction{}
	}
	raw, err := json.Marshal(txs)
	if err != nil {
		return err
	}
	query := `INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			auto_renew = EXCLUDED.auto_renew,
			payment_method = EXCLUDED.payment_method,
			transactions = EXCLUDED.transactions,
			updated_at = EXCLUDED.updated_at`
	_, err = db.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.PlanID, sub.Status, sub.StartDate, sub.EndDate,
		sub.AutoRenew, sub.PaymentMethod, string(raw), sub.CreatedAt, sub.UpdatedAt)
	return err
}

// Save создаёт или обновляет запись.
func (s *Storage) Save(ctx context.Context, sub *models.Subscription) error {
	const op = "repository.Save"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if err := upsertSubscription(ctx, s.DB, sub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Replace сохраняет прежнюю и новую запись в одной транзакции.
func (s *Storage) Replace(ctx context.Context, prev, next *models.Subscription) error {
	const op = "repository.Replace"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertSubscription(ctx, tx, prev); err != nil {
			return err
		}
		return upsertSubscription(ctx, tx, next)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ApplyReward записывает ключ начисления и обновлённую подписку в одной транзакции.
func (s *Storage) ApplyReward(ctx context.Context, sub *models.Subscription, key string, days int) (bool, error) {
	const op = "repository.ApplyReward"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	applied := true
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if key != "" {
			res, err := tx.ExecContext(ctx, `INSERT INTO reward_grants (key, subscription_id, days)
				VALUES ($1, $2, $3)
				ON CONFLICT (key) DO NOTHING`, key, sub.ID, days)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				applied = false
				return nil
			}
		}
		return upsertSubscription(ctx, tx, sub)
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return applied, nil
}

// ListExpiring активные записи с датой окончания в [from, to).
func (s *Storage) ListExpiring(ctx context.Context, from, to time.Time, limit int) ([]models.ExpiringSubscription, error) {
	const op = "repository.ListExpiring"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_id, plan_id, end_date
		FROM subscriptions
		WHERE status = 'active' AND end_date >= $1 AND end_date < $2
		ORDER BY end_date
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.ExpiringSubscription
	for rows.Next() {
		var e models.ExpiringSubscription
		if err := rows.Scan(&e.SubscriptionID, &e.UserID, &e.PlanID, &e.EndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.EndDate = e.EndDate.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// ExpireOverdue переводит просроченные активные записи в expired.
func (s *Storage) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	const op = "repository.ExpireOverdue"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `UPDATE subscriptions
		SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND end_date <= $1
		RETURNING user_id`, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}
