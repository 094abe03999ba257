package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/talepify/entitlement-service/internal/models"
)

const referralColumns = `id, referrer_id, referred_id, referral_code, status, reward_claimed,
	subscription_purchased, reward_days, created_at, completed_at, grant_attempts, last_grant_attempt_at`

func scanReferral(row rowScanner) (*models.Referral, error) {
	var (
		r         models.Referral
		completed sql.NullTime
		attempted sql.NullTime
	)
	err := row.Scan(&r.ID, &r.ReferrerID, &r.ReferredID, &r.ReferralCode, &r.Status, &r.RewardClaimed,
		&r.SubscriptionPurchased, &r.RewardDays, &r.CreatedAt, &completed, &r.GrantAttempts, &attempted)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if completed.Valid {
		t := completed.Time.UTC()
		r.CompletedAt = &t
	}
	if attempted.Valid {
		t := attempted.Time.UTC()
		r.LastGrantAttemptAt = &t
	}
	return &r, nil
}

// CreateCode сохраняет код приглашения.
func (s *Storage) CreateCode(ctx context.Context, code models.ReferralCode) error {
	const op = "repository.CreateCode"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO referral_codes (code, user_id, created_at)
		VALUES ($1, $2, $3)`, code.Code, code.UserID, code.CreatedAt)
	if uniqueConstraint(err) != "" {
		return fmt.Errorf("%s: %w", op, models.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) getCode(ctx context.Context, op, where string, arg string) (*models.ReferralCode, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	var c models.ReferralCode
	err := s.DB.QueryRowContext(ctx, `SELECT code, user_id, created_at FROM referral_codes WHERE `+where+` = $1`, arg).
		Scan(&c.Code, &c.UserID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// GetCode владелец кода.
func (s *Storage) GetCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	return s.getCode(ctx, "repository.GetCode", "code", code)
}

// GetCodeByUser код пользователя.
func (s *Storage) GetCodeByUser(ctx context.Context, userID string) (*models.ReferralCode, error) {
	return s.getCode(ctx, "repository.GetCodeByUser", "user_id", userID)
}

// CreateReferral сохраняет ожидающую запись. У приглашённого может быть только одна запись.
func (s *Storage) CreateReferral(ctx context.Context, r *models.Referral) error {
	const op = "repository.CreateReferral"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO referrals (`+referralColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, r.ReferrerID, r.ReferredID, r.ReferralCode, r.Status, r.RewardClaimed,
		r.SubscriptionPurchased, r.RewardDays, r.CreatedAt, r.CompletedAt, r.GrantAttempts, r.LastGrantAttemptAt)
	switch uniqueConstraint(err) {
	case "":
	case "referrals_referred_key":
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyReferred)
	default:
		return fmt.Errorf("%s: %w", op, models.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CompleteReferral условный UPDATE pending -> completed. Если строка не обновилась,
// по текущему статусу выбирается ошибка.
func (s *Storage) CompleteReferral(ctx context.Context, code, referredID string, now time.Time) (*models.Referral, error) {
	const op = "repository.CompleteReferral"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	r, err := scanReferral(s.DB.QueryRowContext(ctx, `UPDATE referrals
		SET status = 'completed', completed_at = $3, subscription_purchased = true
		WHERE referral_code = $1 AND referred_id = $2 AND status = 'pending'
		RETURNING `+referralColumns, code, referredID, now))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var status models.ReferralStatus
	err = s.DB.QueryRowContext(ctx, `SELECT status FROM referrals
		WHERE referral_code = $1 AND referred_id = $2`, code, referredID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%s: %w", op, models.ErrReferralNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	case status == models.ReferralCompleted:
		return nil, fmt.Errorf("%s: %w", op, models.ErrReferralAlreadyCompleted)
	case status == models.ReferralExpired:
		return nil, fmt.Errorf("%s: %w", op, models.ErrReferralExpired)
	default:
		return nil, fmt.Errorf("%s: %w: %s", op, models.ErrInvalidTransition, status)
	}
}

// MarkRewardClaimed отмечает начисленную награду у завершённой записи.
func (s *Storage) MarkRewardClaimed(ctx context.Context, id string) error {
	const op = "repository.MarkRewardClaimed"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE referrals SET reward_claimed = true
		WHERE id = $1 AND status = 'completed'`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrRewardNotClaimable)
	}
	return nil
}

// RecordGrantFailure отмечает неудачную попытку начисления. Запись уходит в конец очереди повторов.
func (s *Storage) RecordGrantFailure(ctx context.Context, id string, at time.Time) error {
	const op = "repository.RecordGrantFailure"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE referrals
		SET grant_attempts = grant_attempts + 1, last_grant_attempt_at = $2
		WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrReferralNotFound)
	}
	return nil
}

// Stats агрегаты по пригласившему.
func (s *Storage) Stats(ctx context.Context, referrerID string) (models.ReferralStats, error) {
	const op = "repository.Stats"
	var stats models.ReferralStats
	if err := checkCtx(ctx, op); err != nil {
		return stats, err
	}

	err := s.DB.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COALESCE(SUM(reward_days) FILTER (WHERE status = 'completed'), 0)
		FROM referrals
		WHERE referrer_id = $1`, referrerID).
		Scan(&stats.TotalReferrals, &stats.CompletedReferrals, &stats.TotalRewardDays)
	if err != nil {
		return stats, fmt.Errorf("%s: %w", op, err)
	}

	err = s.DB.QueryRowContext(ctx, `SELECT code FROM referral_codes WHERE user_id = $1`, referrerID).
		Scan(&stats.ReferralCode)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return stats, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

// ListUnclaimed завершённые записи без начисленной награды. Записи без попыток идут первыми,
// дальше по давности последней попытки, чтобы безнадёжные записи не занимали всю пачку.
func (s *Storage) ListUnclaimed(ctx context.Context, limit int) ([]*models.Referral, error) {
	const op = "repository.ListUnclaimed"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+referralColumns+`
		FROM referrals
		WHERE status = 'completed' AND NOT reward_claimed
		ORDER BY last_grant_attempt_at NULLS FIRST, created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Referral
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// ExpirePending закрывает ожидающие записи, созданные до before.
func (s *Storage) ExpirePending(ctx context.Context, before time.Time) (int, error) {
	const op = "repository.ExpirePending"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE referrals SET status = 'expired'
		WHERE status = 'pending' AND created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}
