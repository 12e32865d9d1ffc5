// Package postgres — errors.go приводит ошибки драйвера к таксономии common.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"serotonyl.ru/storefront-bot/internal/common"
)

// Коды SQLSTATE, которые нас интересуют.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
	sqlStateNotNullViolation    = "23502"
)

// Classify оборачивает ошибку драйвера в категорию common.Err*.
// Исходная ошибка сохраняется в цепочке, errors.Is/As работают для обеих.
// Уже классифицированные ошибки и nil возвращаются как есть.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", common.ErrNotFound, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", common.ErrTransient, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == sqlStateUniqueViolation:
			return fmt.Errorf("%w: %w", common.ErrConflict, err)
		case pgErr.Code == sqlStateForeignKeyViolation:
			return fmt.Errorf("%w: %w", common.ErrNotFound, err)
		case pgErr.Code == sqlStateCheckViolation,
			pgErr.Code == sqlStateNotNullViolation,
			strings.HasPrefix(pgErr.Code, "22"):
			return fmt.Errorf("%w: %w", common.ErrValidation, err)
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			strings.HasPrefix(pgErr.Code, "53"), // insufficient resources
			strings.HasPrefix(pgErr.Code, "57"), // operator intervention (shutdown, cancel)
			pgErr.Code == "40001", pgErr.Code == "40P01": // serialization failure, deadlock
			return fmt.Errorf("%w: %w", common.ErrTransient, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", common.ErrTransient, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %w", common.ErrTransient, err)
	}

	return err
}

// ConstraintName возвращает имя нарушенного ограничения (или "").
// Нужно, чтобы отличить конфликт по user_id от конфликта по коду.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func isClassified(err error) bool {
	return errors.Is(err, common.ErrNotFound) ||
		errors.Is(err, common.ErrConflict) ||
		errors.Is(err, common.ErrValidation) ||
		errors.Is(err, common.ErrTransient)
}
