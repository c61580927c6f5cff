package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"expiry_tracker/internal/model"
	"expiry_tracker/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Settings keys.
const (
	settingEnabled    = "notifications_enabled"
	settingLeadTimes  = "lead_times"
	settingChatID     = "notify_chat_id"
	settingPermission = "permission"
)

const productColumns = `id, name, category_id, location_id, expiration_date, has_expiration_date,
	use_shelf_life, shelf_life_days, opened_date, notify_timing, created_at`

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: serialises writers and keeps ":memory:" databases whole.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateProduct inserts a new product and populates its ID and CreatedAt.
func (s *SQLite) CreateProduct(ctx context.Context, p *model.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullInt64(p.CategoryID), nullInt64(p.LocationID), p.ExpirationDate,
		boolToInt(p.HasExpirationDate), boolToInt(p.UseShelfLife), nullInt(p.ShelfLifeDays),
		p.OpenedDate, nullInt(p.NotifyTiming), now,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetProduct returns a single product by its ID.
func (s *SQLite) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

// ResolveProductID expands a unique ID prefix to the full product ID.
func (s *SQLite) ResolveProductID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || strings.ContainsFunc(prefix, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r == '-')
	}) {
		return "", fmt.Errorf("product %q: %w", prefix, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM products WHERE id = ? OR substr(id, 1, ?) = ? ORDER BY id LIMIT 2`,
		prefix, len(prefix), prefix,
	)
	if err != nil {
		return "", fmt.Errorf("query product ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate product ids: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("product %q: %w", prefix, ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("product %q: %w", prefix, ErrAmbiguousID)
	}
}

// ListProducts returns all products in creation order.
func (s *SQLite) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpdateProduct persists changes to an existing product.
func (s *SQLite) UpdateProduct(ctx context.Context, p *model.Product) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET name = ?, category_id = ?, location_id = ?, expiration_date = ?,
		   has_expiration_date = ?, use_shelf_life = ?, shelf_life_days = ?, opened_date = ?, notify_timing = ?
		 WHERE id = ?`,
		p.Name, nullInt64(p.CategoryID), nullInt64(p.LocationID), p.ExpirationDate,
		boolToInt(p.HasExpirationDate), boolToInt(p.UseShelfLife), nullInt(p.ShelfLifeDays),
		p.OpenedDate, nullInt(p.NotifyTiming), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return expectRow(res, "product", p.ID)
}

// DeleteProduct removes a product and the reminders recorded for it.
func (s *SQLite) DeleteProduct(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notified_keys WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("delete notified_keys: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if err := expectRow(res, "product", id); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateCategory inserts a new category and populates its ID and CreatedAt.
func (s *SQLite) CreateCategory(ctx context.Context, c *model.Category) error {
	id, created, err := s.insertNamed(ctx, "categories", c.Name)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	c.ID, c.CreatedAt = id, created
	return nil
}

// ListCategories returns all categories ordered by name.
func (s *SQLite) ListCategories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	err := s.listNamed(ctx, "categories", func(id int64, name string, created time.Time) {
		out = append(out, model.Category{ID: id, Name: name, CreatedAt: created})
	})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// DeleteCategory removes a category and clears it from products.
func (s *SQLite) DeleteCategory(ctx context.Context, id int64) error {
	return s.deleteNamed(ctx, "categories", "category_id", id)
}

// CreateLocation inserts a new location and populates its ID and CreatedAt.
func (s *SQLite) CreateLocation(ctx context.Context, l *model.Location) error {
	id, created, err := s.insertNamed(ctx, "locations", l.Name)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	l.ID, l.CreatedAt = id, created
	return nil
}

// ListLocations returns all locations ordered by name.
func (s *SQLite) ListLocations(ctx context.Context) ([]model.Location, error) {
	var out []model.Location
	err := s.listNamed(ctx, "locations", func(id int64, name string, created time.Time) {
		out = append(out, model.Location{ID: id, Name: name, CreatedAt: created})
	})
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return out, nil
}

// DeleteLocation removes a location and clears it from products.
func (s *SQLite) DeleteLocation(ctx context.Context, id int64) error {
	return s.deleteNamed(ctx, "locations", "location_id", id)
}

// ListNotifiedKeys returns every recorded reminder key.
func (s *SQLite) ListNotifiedKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT product_id, days_until FROM notified_keys ORDER BY product_id, days_until`)
	if err != nil {
		return nil, fmt.Errorf("query notified keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k NotifiedKey
		if err := rows.Scan(&k.ProductID, &k.DaysUntil); err != nil {
			return nil, fmt.Errorf("scan notified key: %w", err)
		}
		keys = append(keys, k.String())
	}
	return keys, rows.Err()
}

// AddNotifiedKeys records reminders as fired. Existing keys are kept.
func (s *SQLite) AddNotifiedKeys(ctx context.Context, keys []NotifiedKey) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO notified_keys (product_id, days_until, notified_at) VALUES (?, ?, ?)`,
			k.ProductID, k.DaysUntil, now,
		); err != nil {
			return fmt.Errorf("insert notified key %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// PruneNotifiedKeys drops keys of products that no longer exist and
// returns how many were removed.
func (s *SQLite) PruneNotifiedKeys(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notified_keys WHERE product_id NOT IN (SELECT id FROM products)`)
	if err != nil {
		return 0, fmt.Errorf("prune notified keys: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ResetNotifiedKeys forgets every recorded reminder.
func (s *SQLite) ResetNotifiedKeys(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notified_keys`); err != nil {
		return fmt.Errorf("reset notified keys: %w", err)
	}
	return nil
}

// GetSettings returns the stored settings, with defaults for missing keys.
func (s *SQLite) GetSettings(ctx context.Context) (*model.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	st := &model.Settings{Permission: model.PermissionDefault}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		switch key {
		case settingEnabled:
			st.NotificationsEnabled = value == "1"
		case settingLeadTimes:
			st.LeadTimes = parseIntList(value)
		case settingChatID:
			st.NotifyChatID, _ = strconv.ParseInt(value, 10, 64)
		case settingPermission:
			if value != "" {
				st.Permission = model.Permission(value)
			}
		}
	}
	return st, rows.Err()
}

// SaveSettings stores all settings.
func (s *SQLite) SaveSettings(ctx context.Context, st *model.Settings) error {
	values := map[string]string{
		settingEnabled:    strconv.Itoa(boolToInt(st.NotificationsEnabled)),
		settingLeadTimes:  formatIntList(st.LeadTimes),
		settingChatID:     strconv.FormatInt(st.NotifyChatID, 10),
		settingPermission: string(st.Permission),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v,
		); err != nil {
			return fmt.Errorf("save setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// GetSentMessage returns the last message recorded for tag.
func (s *SQLite) GetSentMessage(ctx context.Context, tag string) (SentMessage, error) {
	m := SentMessage{Tag: tag}
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, message_id FROM sent_messages WHERE tag = ?`, tag,
	).Scan(&m.ChatID, &m.MessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return SentMessage{}, fmt.Errorf("sent message %s: %w", tag, ErrNotFound)
	}
	if err != nil {
		return SentMessage{}, fmt.Errorf("query sent message: %w", err)
	}
	return m, nil
}

// SaveSentMessage records m as the latest message for its tag.
func (s *SQLite) SaveSentMessage(ctx context.Context, m SentMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_messages (tag, chat_id, message_id) VALUES (?, ?, ?)
		 ON CONFLICT(tag) DO UPDATE SET chat_id = excluded.chat_id, message_id = excluded.message_id`,
		m.Tag, m.ChatID, m.MessageID,
	)
	if err != nil {
		return fmt.Errorf("save sent message: %w", err)
	}
	return nil
}

func (s *SQLite) insertNamed(ctx context.Context, table, name string) (int64, time.Time, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `INSERT INTO `+table+` (name, created_at) VALUES (?, ?)`, name, now)
	if err != nil {
		return 0, time.Time{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("last insert id: %w", err)
	}
	created, _ := time.Parse(timeLayout, now)
	return id, created, nil
}

func (s *SQLite) listNamed(ctx context.Context, table string, fn func(id int64, name string, created time.Time)) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM `+table+` ORDER BY name`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		var name, created string
		if err := rows.Scan(&id, &name, &created); err != nil {
			return err
		}
		t, _ := time.Parse(timeLayout, created)
		fn(id, name, t)
	}
	return rows.Err()
}

func (s *SQLite) deleteNamed(ctx context.Context, table, column string, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE products SET `+column+` = NULL WHERE `+column+` = ?`, id); err != nil {
		return fmt.Errorf("clear %s: %w", column, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if err := expectRow(res, table, strconv.FormatInt(id, 10)); err != nil {
		return err
	}
	return tx.Commit()
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func parseIntList(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func formatIntList(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProduct(row scannable) (*model.Product, error) {
	var p model.Product
	var hasExp, useShelf int
	var category, location, shelfDays, timing sql.NullInt64
	var created string
	err := row.Scan(&p.ID, &p.Name, &category, &location, &p.ExpirationDate, &hasExp,
		&useShelf, &shelfDays, &p.OpenedDate, &timing, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan product: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.HasExpirationDate = hasExp == 1
	p.UseShelfLife = useShelf == 1
	if category.Valid {
		p.CategoryID = &category.Int64
	}
	if location.Valid {
		p.LocationID = &location.Int64
	}
	if shelfDays.Valid {
		v := int(shelfDays.Int64)
		p.ShelfLifeDays = &v
	}
	if timing.Valid {
		v := int(timing.Int64)
		p.NotifyTiming = &v
	}
	p.CreatedAt, _ = time.Parse(timeLayout, created)
	return &p, nil
}
