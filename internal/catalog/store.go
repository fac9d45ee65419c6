package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("catalog: not found")
	// ErrDuplicateVendor is returned when a vendor email is already registered.
	ErrDuplicateVendor = errors.New("catalog: vendor email already registered")
)

// Store persists the canonical product catalog, vendor listings and price
// alerts in sqlite. It is the only shared mutable state between the
// scraping worker and the HTTP API.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) the catalog database at path.
// Use ":memory:" for tests.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY between the worker and the API.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply catalog schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindByKey looks up a product by case-insensitive whole-string name match
// and exact category. Returns ErrNotFound when no product matches.
func (s *Store) FindByKey(ctx context.Context, name, category string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, unit, pack_size, description, image, search_count, created_at, updated_at
		FROM products
		WHERE lower(name) = lower(?) AND category = ?`,
		name, category)
	return s.scanProduct(ctx, row)
}

// GetProduct fetches one product by id, including current prices and history.
func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, unit, pack_size, description, image, search_count, created_at, updated_at
		FROM products
		WHERE id = ?`,
		id)
	return s.scanProduct(ctx, row)
}

// ApplyReconciliation persists one reconciled observation in a single
// transaction: the product row (inserted when created, metadata refreshed
// otherwise), the vendor's current-price upsert, and one appended history
// entry. History rows are never updated or deleted here.
func (s *Store) ApplyReconciliation(ctx context.Context, p Product, quote VendorQuote, point PricePoint, created bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reconciliation tx: %w", err)
	}
	defer tx.Rollback()

	if created {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (id, name, category, unit, pack_size, description, image, search_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			p.ID, p.Name, p.Category, p.Unit, p.PackSize, p.Description, p.Image,
			p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano())
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET unit = ?, pack_size = ?, description = ?, image = ?, updated_at = ?
			WHERE id = ?`,
			p.Unit, p.PackSize, p.Description, p.Image, p.UpdatedAt.UnixNano(), p.ID)
	}
	if err != nil {
		return fmt.Errorf("write product %s: %w", p.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO current_prices (product_id, vendor, price, in_stock, delivery_fee, delivery_time, url, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (product_id, vendor) DO UPDATE SET
			price = excluded.price,
			in_stock = excluded.in_stock,
			delivery_fee = excluded.delivery_fee,
			delivery_time = excluded.delivery_time,
			url = excluded.url,
			observed_at = excluded.observed_at`,
		p.ID, quote.Vendor, quote.Price, boolToInt(quote.InStock), quote.DeliveryFee,
		quote.DeliveryTime, quote.URL, quote.ObservedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert current price for %s/%s: %w", p.ID, quote.Vendor, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO price_history (product_id, vendor, price, in_stock, delivery_fee, delivery_time, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, point.Vendor, point.Price, boolToInt(point.InStock), point.DeliveryFee,
		point.DeliveryTime, point.ObservedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("append price history for %s: %w", p.ID, err)
	}

	return tx.Commit()
}

// Search returns products whose name or description contains the query
// (case-insensitive), optionally narrowed to an exact category.
func (s *Store) Search(ctx context.Context, query, category string) ([]Product, error) {
	q := `
		SELECT id, name, category, unit, pack_size, description, image, search_count, created_at, updated_at
		FROM products
		WHERE (instr(lower(name), lower(?)) > 0 OR instr(lower(description), lower(?)) > 0)`
	args := []any{query, query}
	if category != "" {
		q += ` AND category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY name`

	return s.queryProducts(ctx, q, args...)
}

// Trending returns up to limit products ordered by search count descending.
func (s *Store) Trending(ctx context.Context, limit int) ([]Product, error) {
	return s.queryProducts(ctx, `
		SELECT id, name, category, unit, pack_size, description, image, search_count, created_at, updated_at
		FROM products
		ORDER BY search_count DESC, name
		LIMIT ?`,
		limit)
}

// IncrementSearchCount bumps the search counter for each given product.
func (s *Store) IncrementSearchCount(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET search_count = search_count + 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("increment search count for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// History returns a product's price history in observation order,
// optionally windowed to the trailing number of days. Returns ErrNotFound
// for an unknown product.
func (s *Store) History(ctx context.Context, productID string, days int) ([]PricePoint, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM products WHERE id = ?`, productID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	q := `
		SELECT vendor, price, in_stock, delivery_fee, delivery_time, observed_at
		FROM price_history
		WHERE product_id = ?`
	args := []any{productID}
	if days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		q += ` AND observed_at >= ?`
		args = append(args, cutoff.UnixNano())
	}
	q += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []PricePoint{}
	for rows.Next() {
		var pt PricePoint
		var inStock int
		var observed int64
		if err := rows.Scan(&pt.Vendor, &pt.Price, &inStock, &pt.DeliveryFee, &pt.DeliveryTime, &observed); err != nil {
			return nil, err
		}
		pt.InStock = inStock != 0
		pt.ObservedAt = time.Unix(0, observed).UTC()
		points = append(points, pt)
	}
	return points, rows.Err()
}

// CreateVendor registers a new vendor. Returns ErrDuplicateVendor when the
// email is already taken.
func (s *Store) CreateVendor(ctx context.Context, v Vendor) error {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM vendors WHERE email = ?`, v.Email).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return ErrDuplicateVendor
	}

	pincodes, err := json.Marshal(v.ServiceablePincodes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vendors (id, name, email, phone, store_name, pincode, serviceable_pincodes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Email, v.Phone, v.StoreName, v.Pincode, string(pincodes), v.CreatedAt.UnixNano())
	return err
}

// GetVendor fetches one vendor by id. Returns ErrNotFound when absent.
func (s *Store) GetVendor(ctx context.Context, id string) (*Vendor, error) {
	var v Vendor
	var pincodes string
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, store_name, pincode, serviceable_pincodes, created_at
		FROM vendors WHERE id = ?`, id).
		Scan(&v.ID, &v.Name, &v.Email, &v.Phone, &v.StoreName, &v.Pincode, &pincodes, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pincodes), &v.ServiceablePincodes); err != nil {
		return nil, err
	}
	v.CreatedAt = time.Unix(0, created).UTC()
	return &v, nil
}

// ReplaceVendorProducts swaps a vendor's submitted listing wholesale, the
// way the vendor submit endpoint replaces the previous submission.
func (s *Store) ReplaceVendorProducts(ctx context.Context, vendorID string, products []VendorProduct) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM vendor_products WHERE vendor_id = ?`, vendorID); err != nil {
		return err
	}
	for _, p := range products {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO vendor_products (vendor_id, name, category, price, unit, pack_size, in_stock, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			vendorID, p.Name, p.Category, p.Price, p.Unit, p.PackSize,
			boolToInt(p.InStock), p.UpdatedAt.UnixNano()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// VendorProducts lists a vendor's submitted products.
func (s *Store) VendorProducts(ctx context.Context, vendorID string) ([]VendorProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, category, price, unit, pack_size, in_stock, updated_at
		FROM vendor_products WHERE vendor_id = ?
		ORDER BY name`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []VendorProduct{}
	for rows.Next() {
		var p VendorProduct
		var inStock int
		var updated int64
		if err := rows.Scan(&p.Name, &p.Category, &p.Price, &p.Unit, &p.PackSize, &inStock, &updated); err != nil {
			return nil, err
		}
		p.InStock = inStock != 0
		p.UpdatedAt = time.Unix(0, updated).UTC()
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpsertAlert creates or refreshes the alert for (user, product). A
// refreshed alert resets its notified flag.
func (s *Store) UpsertAlert(ctx context.Context, a PriceAlert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_alerts (id, user_id, product_id, target_price, notified, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			target_price = excluded.target_price,
			notified = 0,
			created_at = excluded.created_at`,
		a.ID, a.UserID, a.ProductID, a.TargetPrice, a.CreatedAt.UnixNano())
	return err
}

// AlertsForUser lists a user's alert subscriptions.
func (s *Store) AlertsForUser(ctx context.Context, userID string) ([]PriceAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, target_price, notified, created_at
		FROM price_alerts WHERE user_id = ?
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []PriceAlert{}
	for rows.Next() {
		var a PriceAlert
		var notified int
		var created int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.ProductID, &a.TargetPrice, &notified, &created); err != nil {
			return nil, err
		}
		a.Notified = notified != 0
		a.CreatedAt = time.Unix(0, created).UTC()
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// DeleteAlert removes one alert. Returns ErrNotFound when nothing matched.
func (s *Store) DeleteAlert(ctx context.Context, userID, alertID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM price_alerts WHERE user_id = ? AND id = ?`, userID, alertID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProductRow(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range products {
		if err := s.loadQuotes(ctx, &products[i]); err != nil {
			return nil, err
		}
		history, err := s.History(ctx, products[i].ID, 0)
		if err != nil {
			return nil, err
		}
		products[i].PriceHistory = history
	}
	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProductRow(row rowScanner) (*Product, error) {
	var p Product
	var created, updated int64
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Unit, &p.PackSize,
		&p.Description, &p.Image, &p.SearchCount, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return &p, nil
}

func (s *Store) scanProduct(ctx context.Context, row rowScanner) (*Product, error) {
	p, err := scanProductRow(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadQuotes(ctx, p); err != nil {
		return nil, err
	}
	history, err := s.History(ctx, p.ID, 0)
	if err != nil {
		return nil, err
	}
	p.PriceHistory = history
	return p, nil
}

func (s *Store) loadQuotes(ctx context.Context, p *Product) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vendor, price, in_stock, delivery_fee, delivery_time, url, observed_at
		FROM current_prices WHERE product_id = ?
		ORDER BY vendor`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	quotes := []VendorQuote{}
	for rows.Next() {
		var q VendorQuote
		var inStock int
		var observed int64
		if err := rows.Scan(&q.Vendor, &q.Price, &inStock, &q.DeliveryFee, &q.DeliveryTime, &q.URL, &observed); err != nil {
			return err
		}
		q.InStock = inStock != 0
		q.ObservedAt = time.Unix(0, observed).UTC()
		quotes = append(quotes, q)
	}
	p.CurrentPrices = quotes
	return rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
