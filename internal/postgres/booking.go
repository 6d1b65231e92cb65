// Package postgres implements the durable stores on pgx. Status
// transitions and intent linkage are single conditional statements so
// concurrent webhook deliveries coordinate through the database, not
// through in-process locks.
package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ziplinepark/canopy/internal/domain"
)

// BookingStore implements domain.BookingStore on a pgx connection pool.
type BookingStore struct {
	pool *pgxpool.Pool
}

// NewBookingStore creates a booking store using the given pool.
// The pool is injected, never constructed here, so tests and callers
// control connection lifecycle.
func NewBookingStore(pool *pgxpool.Pool) *BookingStore {
	return &BookingStore{pool: pool}
}

const bookingColumns = `
	b.id, b.booking_ref, b.package_id, b.package_name, b.package_price,
	b.activity_date, b.time_slot, b.guest_count, b.status,
	b.total_amount, b.discount_amount, b.currency, b.special_requests,
	b.promo_code, b.promo_discount_type, b.promo_discount_value,
	b.stripe_payment_intent_id, b.created_at`

// CreateBooking inserts the aggregate in one transaction.
func (s *BookingStore) CreateBooking(ctx context.Context, d *domain.BookingDetail) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "booking.create", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	b := d.Booking
	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (
			id, booking_ref, package_id, package_name, package_price,
			activity_date, time_slot, guest_count, status,
			total_amount, discount_amount, currency, special_requests,
			promo_code, promo_discount_type, promo_discount_value
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		b.ID, b.Ref, b.PackageID, b.PackageName, b.PackagePrice,
		b.ActivityDate, b.TimeSlot, b.GuestCount, string(b.Status),
		b.TotalAmount, b.Discount, b.Currency, nullText(b.Requests),
		nullText(b.PromoCode), nullText(string(b.PromoType)), b.PromoValue,
	)
	if err != nil {
		return domain.Internal(err, "booking.create", "failed to insert booking")
	}

	c := d.Customer
	_, err = tx.Exec(ctx, `
		INSERT INTO booking_customers (booking_id, first_name, last_name, email, phone, country_code)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, c.FirstName, c.LastName, c.Email, nullText(c.Phone), nullText(c.CountryCode),
	)
	if err != nil {
		return domain.Internal(err, "booking.create", "failed to insert customer")
	}

	t := d.Transport
	_, err = tx.Exec(ctx, `
		INSERT INTO booking_transport (booking_id, transport_type, hotel_name, room_number, non_players, private_passengers, transport_cost)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		b.ID, string(t.Mode), nullText(t.HotelName), nullText(t.RoomNumber),
		t.NonPlayers, t.PrivatePassengers, t.Cost,
	)
	if err != nil {
		return domain.Internal(err, "booking.create", "failed to insert transport")
	}

	for _, a := range d.Addons {
		_, err = tx.Exec(ctx, `
			INSERT INTO booking_addons (booking_id, addon_id, name, unit_price, quantity)
			VALUES ($1,$2,$3,$4,$5)`,
			b.ID, a.AddonID, a.Name, a.UnitPrice, a.Quantity,
		)
		if err != nil {
			return domain.Internal(err, "booking.create", "failed to insert add-on line")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "booking.create", "failed to commit booking")
	}
	return nil
}

// GetByID loads the full aggregate by booking id.
func (s *BookingStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.BookingDetail, error) {
	return s.getDetail(ctx, "b.id = $1", id)
}

// GetByRef loads the full aggregate by booking ref.
func (s *BookingStore) GetByRef(ctx context.Context, ref string) (*domain.BookingDetail, error) {
	return s.getDetail(ctx, "b.booking_ref = $1", ref)
}

// GetByIntent loads the full aggregate by payment intent id.
func (s *BookingStore) GetByIntent(ctx context.Context, intentID string) (*domain.BookingDetail, error) {
	return s.getDetail(ctx, "b.stripe_payment_intent_id = $1", intentID)
}

func (s *BookingStore) getDetail(ctx context.Context, where string, arg any) (*domain.BookingDetail, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+bookingColumns+` FROM bookings b WHERE `+where, arg)

	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, domain.Internal(err, "booking.get", "failed to load booking")
	}

	d := &domain.BookingDetail{Booking: *b}

	err = s.pool.QueryRow(ctx, `
		SELECT first_name, last_name, email, COALESCE(phone, ''), COALESCE(country_code, '')
		FROM booking_customers WHERE booking_id = $1`, b.ID,
	).Scan(&d.Customer.FirstName, &d.Customer.LastName, &d.Customer.Email,
		&d.Customer.Phone, &d.Customer.CountryCode)
	if err != nil {
		return nil, domain.Internal(err, "booking.get", "failed to load customer")
	}

	var mode string
	err = s.pool.QueryRow(ctx, `
		SELECT transport_type, COALESCE(hotel_name, ''), COALESCE(room_number, ''),
		       non_players, private_passengers, transport_cost
		FROM booking_transport WHERE booking_id = $1`, b.ID,
	).Scan(&mode, &d.Transport.HotelName, &d.Transport.RoomNumber,
		&d.Transport.NonPlayers, &d.Transport.PrivatePassengers, &d.Transport.Cost)
	if err != nil {
		return nil, domain.Internal(err, "booking.get", "failed to load transport")
	}
	d.Transport.Mode = domain.TransportMode(mode)

	rows, err := s.pool.Query(ctx, `
		SELECT addon_id, name, unit_price, quantity
		FROM booking_addons WHERE booking_id = $1 ORDER BY id`, b.ID)
	if err != nil {
		return nil, domain.Internal(err, "booking.get", "failed to load add-ons")
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.AddonLine
		if err := rows.Scan(&a.AddonID, &a.Name, &a.UnitPrice, &a.Quantity); err != nil {
			return nil, domain.Internal(err, "booking.get", "failed to scan add-on line")
		}
		d.Addons = append(d.Addons, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "booking.get", "failed to read add-on lines")
	}

	return d, nil
}

// SetPaymentIntent records the payment intent id for a booking. Repeating
// the same value is a no-op; a different value is a correlation bug and
// surfaces as ErrIntentMismatch.
func (s *BookingStore) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bookings SET stripe_payment_intent_id = $2
		WHERE id = $1 AND (stripe_payment_intent_id IS NULL OR stripe_payment_intent_id = $2)`,
		id, intentID,
	)
	if err != nil {
		return domain.Internal(err, "booking.set_intent", "failed to set payment intent")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return domain.Internal(err, "booking.set_intent", "failed to check booking")
	}
	if !exists {
		return domain.ErrBookingNotFound
	}
	return domain.ErrIntentMismatch
}

// UpdateStatus applies a status transition as a single conditional UPDATE.
func (s *BookingStore) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.Status, allowedFrom ...domain.Status) (bool, error) {
	from := make([]string, len(allowedFrom))
	for i, st := range allowedFrom {
		from[i] = string(st)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE bookings SET status = $2 WHERE id = $1 AND status = ANY($3)`,
		id, string(to), from,
	)
	if err != nil {
		return false, domain.Internal(err, "booking.update_status", "failed to update status")
	}
	return tag.RowsAffected() > 0, nil
}

// MarkEventProcessed records a payment event id, first writer wins.
func (s *BookingStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType,
	)
	if err != nil {
		return false, domain.Internal(err, "booking.mark_event", "failed to record event")
	}
	return tag.RowsAffected() > 0, nil
}

// ListSyncable returns confirmed and completed bookings, newest first.
func (s *BookingStore) ListSyncable(ctx context.Context, ids []uuid.UUID) ([]*domain.BookingDetail, error) {
	query := `
		SELECT id FROM bookings
		WHERE status IN ('confirmed', 'completed')`
	args := []any{}
	if len(ids) > 0 {
		query += ` AND id = ANY($1)`
		args = append(args, ids)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, "booking.list_syncable", "failed to list bookings")
	}
	defer rows.Close()

	var bookingIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, domain.Internal(err, "booking.list_syncable", "failed to scan booking id")
		}
		bookingIDs = append(bookingIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "booking.list_syncable", "failed to read booking ids")
	}

	details := make([]*domain.BookingDetail, 0, len(bookingIDs))
	for _, id := range bookingIDs {
		d, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

// GetPackage resolves an active bookable package.
func (s *BookingStore) GetPackage(ctx context.Context, packageID string) (*domain.Package, error) {
	var p domain.Package
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, price, active FROM packages WHERE id = $1`, packageID,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, domain.Internal(err, "package.get", "failed to load package")
	}
	return &p, nil
}

func (s *BookingStore) GetAddon(ctx context.Context, addonID string) (*domain.Addon, error) {
	var a domain.Addon
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, price, active FROM addons WHERE id = $1`, addonID,
	).Scan(&a.ID, &a.Name, &a.Price, &a.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAddonNotFound
		}
		return nil, domain.Internal(err, "addon.get", "failed to load add-on")
	}
	return &a, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var status, requests, promoCode, promoType, intentID pgtype.Text

	err := row.Scan(
		&b.ID, &b.Ref, &b.PackageID, &b.PackageName, &b.PackagePrice,
		&b.ActivityDate, &b.TimeSlot, &b.GuestCount, &status,
		&b.TotalAmount, &b.Discount, &b.Currency, &requests,
		&promoCode, &promoType, &b.PromoValue,
		&intentID, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status = domain.Status(status.String)
	b.Requests = requests.String
	b.PromoCode = promoCode.String
	b.PromoType = domain.DiscountType(promoType.String)
	b.PaymentIntentID = intentID.String
	return &b, nil
}

// nullText maps an empty string to NULL for optional text columns.
func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
