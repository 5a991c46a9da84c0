package postgres

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"

	"kairaba-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const fkViolation = "23503"
const uniqueViolation = "23505"

type shippingRepository struct {
	db *pgxpool.Pool
}

func NewShippingRepository(db *pgxpool.Pool) domain.ShippingRepository {
	return &shippingRepository{db: db}
}

// --- Modes ---

const modeColumns = `key, label, description, delivery_time_range, active, created_at, updated_at`

func scanMode(row pgx.Row) (*domain.ShippingMode, error) {
	var m domain.ShippingMode
	var desc, dtr pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&m.Key, &m.Label, &desc, &dtr, &m.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	m.Description = textToPtr(desc)
	m.DeliveryTimeRange = textToPtr(dtr)
	m.CreatedAt = pgtimeToTime(createdAt)
	m.UpdatedAt = pgtimeToTime(updatedAt)
	return &m, nil
}

func (r *shippingRepository) CreateMode(ctx context.Context, mode *domain.ShippingMode) error {
	q := querierFrom(ctx, r.db)
	row := q.QueryRow(ctx, `
		INSERT INTO shipping_modes (key, label, description, delivery_time_range, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		mode.Key, mode.Label, ptrToText(mode.Description), ptrToText(mode.DeliveryTimeRange), mode.Active)

	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&createdAt, &updatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.NewValidationError(domain.FieldModeKey, "mode %q already exists", mode.Key)
		}
		return domain.NewStorageError("create mode", err)
	}
	mode.CreatedAt = pgtimeToTime(createdAt)
	mode.UpdatedAt = pgtimeToTime(updatedAt)
	return nil
}

func (r *shippingRepository) UpdateMode(ctx context.Context, mode *domain.ShippingMode) error {
	q := querierFrom(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE shipping_modes
		SET label = $2, description = $3, delivery_time_range = $4, active = $5, updated_at = now()
		WHERE key = $1`,
		mode.Key, mode.Label, ptrToText(mode.Description), ptrToText(mode.DeliveryTimeRange), mode.Active)
	if err != nil {
		return domain.NewStorageError("update mode", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *shippingRepository) GetModeByKey(ctx context.Context, key string) (*domain.ShippingMode, error) {
	q := querierFrom(ctx, r.db)
	mode, err := scanMode(q.QueryRow(ctx,
		`SELECT `+modeColumns+` FROM shipping_modes WHERE key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStorageError("get mode", err)
	}
	return mode, nil
}

func (r *shippingRepository) ListModes(ctx context.Context, activeOnly bool) ([]domain.ShippingMode, error) {
	q := querierFrom(ctx, r.db)
	sql := `SELECT ` + modeColumns + ` FROM shipping_modes`
	if activeOnly {
		sql += ` WHERE active = true`
	}
	sql += ` ORDER BY key`

	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, domain.NewStorageError("list modes", err)
	}
	defer rows.Close()

	var modes []domain.ShippingMode
	for rows.Next() {
		m, err := scanMode(rows)
		if err != nil {
			return nil, domain.NewStorageError("list modes", err)
		}
		modes = append(modes, *m)
	}
	return modes, rows.Err()
}

func (r *shippingRepository) DeleteMode(ctx context.Context, key string) error {
	q := querierFrom(ctx, r.db)
	tag, err := q.Exec(ctx, `DELETE FROM shipping_modes WHERE key = $1`, key)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
			return domain.ErrModeInUse
		}
		return domain.NewStorageError("delete mode", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- Rules ---

const ruleColumns = `id, destination, mode_key, min_weight, max_weight, price,
	delivery_time_override, priority, active, notes, created_at, updated_at`

func scanRule(row pgx.Row) (*domain.ShippingRule, error) {
	var rule domain.ShippingRule
	var minW, maxW, price pgtype.Numeric
	var dto, notes pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&rule.ID, &rule.Destination, &rule.ModeKey, &minW, &maxW, &price,
		&dto, &rule.Priority, &rule.Active, &notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rule.MinWeight = numericToFloat64(minW)
	rule.MaxWeight = numericToFloat64(maxW)
	rule.Price = numericToFloat64(price)
	rule.DeliveryTimeOverride = textToPtr(dto)
	rule.Notes = textToPtr(notes)
	rule.CreatedAt = pgtimeToTime(createdAt)
	rule.UpdatedAt = pgtimeToTime(updatedAt)
	return &rule, nil
}

func (r *shippingRepository) CreateRule(ctx context.Context, rule *domain.ShippingRule) error {
	q := querierFrom(ctx, r.db)
	row := q.QueryRow(ctx, `
		INSERT INTO shipping_rules
			(destination, mode_key, min_weight, max_weight, price, delivery_time_override, priority, active, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		rule.Destination, rule.ModeKey,
		float64ToNumericPrecise(rule.MinWeight), float64ToNumericPrecise(rule.MaxWeight),
		float64ToNumeric(rule.Price),
		ptrToText(rule.DeliveryTimeOverride), rule.Priority, rule.Active, ptrToText(rule.Notes))

	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&rule.ID, &createdAt, &updatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
			return domain.NewValidationError(domain.FieldModeKey, "unknown shipping mode %q", rule.ModeKey)
		}
		return domain.NewStorageError("create rule", err)
	}
	rule.CreatedAt = pgtimeToTime(createdAt)
	rule.UpdatedAt = pgtimeToTime(updatedAt)
	return nil
}

func (r *shippingRepository) UpdateRule(ctx context.Context, rule *domain.ShippingRule) error {
	q := querierFrom(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE shipping_rules
		SET destination = $2, mode_key = $3, min_weight = $4, max_weight = $5, price = $6,
			delivery_time_override = $7, priority = $8, active = $9, notes = $10, updated_at = now()
		WHERE id = $1`,
		rule.ID, rule.Destination, rule.ModeKey,
		float64ToNumericPrecise(rule.MinWeight), float64ToNumericPrecise(rule.MaxWeight),
		float64ToNumeric(rule.Price),
		ptrToText(rule.DeliveryTimeOverride), rule.Priority, rule.Active, ptrToText(rule.Notes))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
			return domain.NewValidationError(domain.FieldModeKey, "unknown shipping mode %q", rule.ModeKey)
		}
		return domain.NewStorageError("update rule", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *shippingRepository) GetRuleByID(ctx context.Context, id int64) (*domain.ShippingRule, error) {
	q := querierFrom(ctx, r.db)
	rule, err := scanRule(q.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM shipping_rules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStorageError("get rule", err)
	}
	return rule, nil
}

func (r *shippingRepository) ListRules(ctx context.Context, filter domain.RuleFilter) ([]domain.ShippingRule, error) {
	q := querierFrom(ctx, r.db)

	sql := `SELECT ` + ruleColumns + ` FROM shipping_rules WHERE 1=1`
	args := []any{}
	if filter.Destination != "" {
		args = append(args, filter.Destination)
		sql += ` AND destination = $` + strconv.Itoa(len(args))
	}
	if filter.ModeKey != "" {
		args = append(args, filter.ModeKey)
		sql += ` AND mode_key = $` + strconv.Itoa(len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		sql += ` AND active = $` + strconv.Itoa(len(args))
	}
	sql += ` ORDER BY destination, mode_key, min_weight, priority DESC, id`

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, domain.NewStorageError("list rules", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

func (r *shippingRepository) SetRuleActive(ctx context.Context, id int64, active bool) error {
	q := querierFrom(ctx, r.db)
	tag, err := q.Exec(ctx,
		`UPDATE shipping_rules SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return domain.NewStorageError("set rule active", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *shippingRepository) ListOverlapScope(ctx context.Context, destination, modeKey string, excludeID int64) ([]domain.ShippingRule, error) {
	q := querierFrom(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM shipping_rules
		WHERE destination = $1 AND mode_key = $2 AND active = true AND id <> $3
		ORDER BY min_weight, id`,
		destination, modeKey, excludeID)
	if err != nil {
		return nil, domain.NewStorageError("list overlap scope", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

func (r *shippingRepository) ListCandidates(ctx context.Context, destination, modeKey string, weight float64) ([]domain.ShippingRule, error) {
	q := querierFrom(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM shipping_rules
		WHERE (destination = $1 OR destination = $2)
			AND mode_key = $3
			AND active = true
			AND min_weight <= $4 AND max_weight >= $4
		ORDER BY priority DESC, created_at, id`,
		destination, domain.DestinationWildcard, modeKey, float64ToNumericPrecise(weight))
	if err != nil {
		return nil, domain.NewStorageError("list candidates", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// LockScope takes a transaction-scoped advisory lock keyed on the
// (destination, mode) pair, so two admins mutating the same scope serialize
// their overlap-check-then-write sequences. No-op outside a transaction.
func (r *shippingRepository) LockScope(ctx context.Context, destination, modeKey string) error {
	q := querierFrom(ctx, r.db)
	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, scopeLockKey(destination, modeKey))
	if err != nil {
		return domain.NewStorageError("lock scope", err)
	}
	return nil
}

func scopeLockKey(destination, modeKey string) int64 {
	h := fnv.New64a()
	h.Write([]byte(destination))
	h.Write([]byte{0})
	h.Write([]byte(modeKey))
	return int64(h.Sum64())
}

func collectRules(rows pgx.Rows) ([]domain.ShippingRule, error) {
	var rules []domain.ShippingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan rule", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

