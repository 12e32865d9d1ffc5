// Package referral — repository.go работает с таблицами partner_profiles и referral_edges.
package referral

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/storefront-bot/internal/db/postgres"
)

// Repository предоставляет методы для работы с профилями и графом приглашений.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий партнёрской программы.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const profileColumns = `id, user_id, program, referral_code, balance, bonus, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var program string
	err := row.Scan(&p.ID, &p.UserID, &program, &p.ReferralCode, &p.Balance, &p.Bonus, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Program = Program(program)
	return &p, nil
}

// CreateProfile вставляет профиль. Занятый user_id или код — common.ErrConflict.
// Баланс нового профиля нулевой, его пишет только проектор.
func (r *Repository) CreateProfile(ctx context.Context, p *Profile) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO partner_profiles (user_id, program, referral_code)
		VALUES ($1, $2, $3)
		RETURNING `+profileColumns,
		p.UserID, string(p.Program), p.ReferralCode)
	created, err := scanProfile(row)
	if err != nil {
		return fmt.Errorf("ошибка создания профиля (user_id=%d): %w", p.UserID, postgres.Classify(err))
	}
	*p = *created
	return nil
}

// GetProfile возвращает профиль по id.
func (r *Repository) GetProfile(ctx context.Context, profileID int64) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM partner_profiles WHERE id = $1`, profileID))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения профиля %d: %w", profileID, postgres.Classify(err))
	}
	return p, nil
}

// GetProfileByUserID возвращает профиль пользователя или common.ErrNotFound.
func (r *Repository) GetProfileByUserID(ctx context.Context, userID int64) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM partner_profiles WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения профиля (user_id=%d): %w", userID, postgres.Classify(err))
	}
	return p, nil
}

// GetProfileByCode ищет профиль по реферальному коду.
func (r *Repository) GetProfileByCode(ctx context.Context, code string) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM partner_profiles WHERE referral_code = $1`, code))
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска кода %q: %w", code, postgres.Classify(err))
	}
	return p, nil
}

// CodeExists проверяет, занят ли код.
func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM partner_profiles WHERE referral_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки кода: %w", postgres.Classify(err))
	}
	return exists, nil
}

// SetProgram меняет вариант программы. Прошлые связи и операции не трогаются.
func (r *Repository) SetProgram(ctx context.Context, profileID int64, program Program) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE partner_profiles SET program = $2, updated_at = NOW() WHERE id = $1
	`, profileID, string(program))
	if err != nil {
		return fmt.Errorf("ошибка смены программы: %w", postgres.Classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("профиль %d: %w", profileID, postgres.Classify(pgx.ErrNoRows))
	}
	return nil
}

const edgeColumns = `id, owner_profile_id, level, referred_user_id, contact, created_at`

func scanEdge(row pgx.Row) (*Edge, error) {
	var e Edge
	if err := row.Scan(&e.ID, &e.OwnerProfileID, &e.Level, &e.ReferredUserID, &e.Contact, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEdge вставляет связь. Дубликат пары (владелец, приглашённый)
// или второй пригласивший первого уровня — common.ErrConflict.
func (r *Repository) CreateEdge(ctx context.Context, e *Edge) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO referral_edges (owner_profile_id, level, referred_user_id, contact)
		VALUES ($1, $2, $3, $4)
		RETURNING `+edgeColumns,
		e.OwnerProfileID, e.Level, e.ReferredUserID, e.Contact)
	created, err := scanEdge(row)
	if err != nil {
		if c := postgres.ConstraintName(err); c != "" {
			return fmt.Errorf("связь (owner=%d, level=%d) нарушает %s: %w", e.OwnerProfileID, e.Level, c, postgres.Classify(err))
		}
		return fmt.Errorf("ошибка создания связи (owner=%d, level=%d): %w", e.OwnerProfileID, e.Level, postgres.Classify(err))
	}
	*e = *created
	return nil
}

// FindEdge возвращает связь владельца с пользователем или common.ErrNotFound.
func (r *Repository) FindEdge(ctx context.Context, ownerProfileID, referredUserID int64) (*Edge, error) {
	e, err := scanEdge(r.db.QueryRow(ctx, `
		SELECT `+edgeColumns+` FROM referral_edges
		WHERE owner_profile_id = $1 AND referred_user_id = $2
		ORDER BY id LIMIT 1
	`, ownerProfileID, referredUserID))
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска связи: %w", postgres.Classify(err))
	}
	return e, nil
}

// InboundEdges возвращает все связи, где пользователь — приглашённый, по возрастанию уровня.
func (r *Repository) InboundEdges(ctx context.Context, referredUserID int64) ([]*Edge, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+edgeColumns+` FROM referral_edges
		WHERE referred_user_id = $1
		ORDER BY level, id
	`, referredUserID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения связей: %w", postgres.Classify(err))
	}
	defer rows.Close()

	var out []*Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования связи: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", postgres.Classify(err))
	}
	return out, nil
}

// CountEdges считает связи владельца на уровне level; level 0 — все уровни.
func (r *Repository) CountEdges(ctx context.Context, ownerProfileID int64, level int) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM referral_edges
		WHERE owner_profile_id = $1 AND ($2 = 0 OR level = $2)
	`, ownerProfileID, level).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта связей: %w", postgres.Classify(err))
	}
	return n, nil
}
