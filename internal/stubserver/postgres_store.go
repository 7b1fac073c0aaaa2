package stubserver

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/freight-booking/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveOrder(o *models.Order) error {
	_, err := p.db.Exec(`INSERT INTO orders(id, customer_id, pickup_address, dropoff_address, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, payment_by, customer_note, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.CustomerID, o.PickupAddress, o.DropoffAddress,
		o.PickupLocation.Lat, o.PickupLocation.Lng, o.DropoffLocation.Lat, o.DropoffLocation.Lng,
		o.PaymentBy, o.CustomerNote, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		_, err := p.db.Exec(`INSERT INTO order_items(id, order_id, vehicle_type, price_per_km, weight_kg, distance_km, loading_service, insurance, total_price, status, driver_id, driver_name)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			it.ID, o.ID, it.VehicleType, it.PricePerKm, it.WeightKg, it.DistanceKm,
			it.LoadingService, it.Insurance, it.TotalPrice, it.Status, it.DriverID, it.DriverName)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) GetOrder(id string) (*models.Order, error) {
	var o models.Order
	err := p.db.QueryRow(`SELECT id, customer_id, pickup_address, dropoff_address, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, payment_by, customer_note, created_at, updated_at FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.CustomerID, &o.PickupAddress, &o.DropoffAddress,
			&o.PickupLocation.Lat, &o.PickupLocation.Lng, &o.DropoffLocation.Lat, &o.DropoffLocation.Lng,
			&o.PaymentBy, &o.CustomerNote, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := p.itemsFor(id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (p *PostgresStore) itemsFor(orderID string) ([]models.OrderItem, error) {
	rows, err := p.db.Query(`SELECT id, vehicle_type, price_per_km, weight_kg, distance_km, loading_service, insurance, total_price, status, COALESCE(driver_id,''), COALESCE(driver_name,'') FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.VehicleType, &it.PricePerKm, &it.WeightKg, &it.DistanceKm,
			&it.LoadingService, &it.Insurance, &it.TotalPrice, &it.Status, &it.DriverID, &it.DriverName); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (p *PostgresStore) UpdateItem(orderID, itemID string, from, to models.ItemStatus, driverID, driverName string) (*models.Order, error) {
	var res sql.Result
	var err error
	if driverID != "" {
		res, err = p.db.Exec(`UPDATE order_items SET status=$1, driver_id=$2, driver_name=$3 WHERE id=$4 AND order_id=$5 AND status=$6`,
			to, driverID, driverName, itemID, orderID, from)
	} else {
		res, err = p.db.Exec(`UPDATE order_items SET status=$1 WHERE id=$2 AND order_id=$3 AND status=$4`, to, itemID, orderID, from)
	}
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		var exists bool
		if err := p.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM order_items WHERE id=$1 AND order_id=$2)`, itemID, orderID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, errStatusConflict
	}
	if _, err := p.db.Exec(`UPDATE orders SET updated_at=$1 WHERE id=$2`, time.Now(), orderID); err != nil {
		return nil, err
	}
	return p.GetOrder(orderID)
}

func (p *PostgresStore) ListUnclaimed() ([]models.Order, error) {
	rows, err := p.db.Query(`SELECT DISTINCT order_id FROM order_items WHERE status='created' AND (driver_id IS NULL OR driver_id='')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		o, err := p.GetOrder(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}
