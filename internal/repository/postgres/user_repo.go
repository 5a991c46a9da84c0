package postgres

import (
	"context"
	"errors"

	"kairaba-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type userRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) domain.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, role, first_name, last_name, phone, avatar, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&u.ID, &u.Email, &u.Role, &u.FirstName, &u.LastName,
		&u.Phone, &u.Avatar, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = pgtimeToTime(createdAt)
	u.UpdatedAt = pgtimeToTime(updatedAt)
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	q := querierFrom(ctx, r.db)
	row := q.QueryRow(ctx, `
		INSERT INTO users (id, email, role, first_name, last_name, phone, avatar)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		user.ID, user.Email, user.Role, user.FirstName, user.LastName, user.Phone, user.Avatar)

	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&createdAt, &updatedAt); err != nil {
		return domain.NewStorageError("create user", err)
	}
	user.CreatedAt = pgtimeToTime(createdAt)
	user.UpdatedAt = pgtimeToTime(updatedAt)
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := querierFrom(ctx, r.db)
	u, err := scanUser(q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStorageError("get user by email", err)
	}
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	q := querierFrom(ctx, r.db)
	u, err := scanUser(q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStorageError("get user", err)
	}
	return u, nil
}

func (r *userRepository) GetAll(ctx context.Context, limit, offset int) ([]*domain.User, int64, error) {
	q := querierFrom(ctx, r.db)

	var total int64
	if err := q.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, domain.NewStorageError("count users", err)
	}

	rows, err := q.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, domain.NewStorageError("list users", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, domain.NewStorageError("scan user", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	q := querierFrom(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, phone = $4, avatar = $5, updated_at = now()
		WHERE id = $1`,
		user.ID, user.FirstName, user.LastName, user.Phone, user.Avatar)
	if err != nil {
		return domain.NewStorageError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- Addresses ---

func (r *userRepository) AddAddress(ctx context.Context, addr *domain.Address) error {
	q := querierFrom(ctx, r.db)

	if addr.IsDefault {
		if _, err := q.Exec(ctx,
			`UPDATE addresses SET is_default = false WHERE user_id = $1`, addr.UserID); err != nil {
			return domain.NewStorageError("reset default address", err)
		}
	}

	row := q.QueryRow(ctx, `
		INSERT INTO addresses (id, user_id, label, first_name, last_name, phone, country, city, address_line, postal_code, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		addr.ID, addr.UserID, addr.Label, addr.FirstName, addr.LastName, addr.Phone,
		addr.Country, addr.City, addr.AddressLine, addr.PostalCode, addr.IsDefault)

	var createdAt pgtype.Timestamptz
	if err := row.Scan(&createdAt); err != nil {
		return domain.NewStorageError("add address", err)
	}
	addr.CreatedAt = pgtimeToTime(createdAt)
	return nil
}

func (r *userRepository) UpdateAddress(ctx context.Context, addr *domain.Address) error {
	q := querierFrom(ctx, r.db)

	if addr.IsDefault {
		if _, err := q.Exec(ctx,
			`UPDATE addresses SET is_default = false WHERE user_id = $1 AND id <> $2`,
			addr.UserID, addr.ID); err != nil {
			return domain.NewStorageError("reset default address", err)
		}
	}

	tag, err := q.Exec(ctx, `
		UPDATE addresses
		SET label = $3, first_name = $4, last_name = $5, phone = $6, country = $7,
			city = $8, address_line = $9, postal_code = $10, is_default = $11
		WHERE id = $1 AND user_id = $2`,
		addr.ID, addr.UserID, addr.Label, addr.FirstName, addr.LastName, addr.Phone,
		addr.Country, addr.City, addr.AddressLine, addr.PostalCode, addr.IsDefault)
	if err != nil {
		return domain.NewStorageError("update address", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepository) GetAddresses(ctx context.Context, userID string) ([]domain.Address, error) {
	q := querierFrom(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT id, user_id, label, first_name, last_name, phone, country, city, address_line, postal_code, is_default, created_at
		FROM addresses WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC`, userID)
	if err != nil {
		return nil, domain.NewStorageError("get addresses", err)
	}
	defer rows.Close()

	var addrs []domain.Address
	for rows.Next() {
		var a domain.Address
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&a.ID, &a.UserID, &a.Label, &a.FirstName, &a.LastName, &a.Phone,
			&a.Country, &a.City, &a.AddressLine, &a.PostalCode, &a.IsDefault, &createdAt); err != nil {
			return nil, domain.NewStorageError("scan address", err)
		}
		a.CreatedAt = pgtimeToTime(createdAt)
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

func (r *userRepository) DeleteAddress(ctx context.Context, id, userID string) error {
	q := querierFrom(ctx, r.db)
	tag, err := q.Exec(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return domain.NewStorageError("delete address", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// --- Refresh tokens ---

func (r *userRepository) SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	q := querierFrom(ctx, r.db)
	_, err := q.Exec(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at, revoked, device)
		VALUES ($1, $2, $3, $4, $5)`,
		token.Token, token.UserID, token.ExpiresAt, token.Revoked, token.Device)
	if err != nil {
		return domain.NewStorageError("save refresh token", err)
	}
	return nil
}

func (r *userRepository) GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	q := querierFrom(ctx, r.db)
	var t domain.RefreshToken
	var expiresAt, createdAt pgtype.Timestamptz
	err := q.QueryRow(ctx, `
		SELECT token, user_id, expires_at, created_at, revoked, device
		FROM refresh_tokens WHERE token = $1`, token).
		Scan(&t.Token, &t.UserID, &expiresAt, &createdAt, &t.Revoked, &t.Device)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStorageError("get refresh token", err)
	}
	t.ExpiresAt = pgtimeToTime(expiresAt)
	t.CreatedAt = pgtimeToTime(createdAt)
	return &t, nil
}

func (r *userRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	q := querierFrom(ctx, r.db)
	_, err := q.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE token = $1`, token)
	if err != nil {
		return domain.NewStorageError("revoke refresh token", err)
	}
	return nil
}
