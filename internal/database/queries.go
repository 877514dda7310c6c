package database

// Money columns are read as text and parsed into decimal.Decimal, and
// written as decimal strings so no precision is lost in either direction.

// Menu queries
const (
	LockMenuItemSQL = `
		SELECT m.id, m.name, m.price::text, m.stock_managed, m.stock, m.stock_status,
			   m.category_id, COALESCE(c.station, '')
		FROM menu_items m
		LEFT JOIN categories c ON c.id = m.category_id
		WHERE m.id = $1
		FOR UPDATE OF m`

	UpdateStockSQL = `
		UPDATE menu_items SET stock = $1, stock_status = $2, updated_at = NOW()
		WHERE id = $3`
)

// Sequence queries
const (
	NextSequenceSQL = `
		INSERT INTO table_sequences (prefix, business_day, last_value)
		VALUES ($1, $2::date, 1)
		ON CONFLICT (prefix, business_day)
		DO UPDATE SET last_value = table_sequences.last_value + 1
		RETURNING last_value`
)

// Table queries
const (
	LockTableByNameSQL = `
		SELECT id, name, status, sort_order
		FROM restaurant_tables WHERE name = $1
		FOR UPDATE`

	SetTableStatusSQL = `
		UPDATE restaurant_tables SET status = $1, updated_at = NOW()
		WHERE id = $2`

	ListTablesSQL = `
		SELECT id, name, status, sort_order
		FROM restaurant_tables
		ORDER BY sort_order ASC, name ASC`
)

// Order queries
const (
	orderColumns = `
		id::text, table_name, subtotal::text, discount_percentage::text, discount_amount::text,
		total::text, special_request, status, takeaway, discount_by, completed_stations,
		COALESCE(paid_from_status, ''), created_at, updated_at`

	InsertOrderSQL = `
		INSERT INTO orders (id, table_name, subtotal, discount_percentage, discount_amount, total,
			special_request, status, takeaway, discount_by, completed_stations)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	InsertOrderItemSQL = `
		INSERT INTO order_items (order_id, line_no, menu_item_id, name, category_id, station, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	GetOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	LockOrderSQL = GetOrderSQL + ` FOR UPDATE`

	UpdateOrderSQL = `
		UPDATE orders SET status = $1, discount_percentage = $2, discount_amount = $3, total = $4,
			discount_by = $5, completed_stations = $6, paid_from_status = NULLIF($7, ''), updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at`

	ListOpenOrdersByTableSQL = `SELECT ` + orderColumns + `
		FROM orders
		WHERE table_name = $1 AND status <> 'Paid'
		ORDER BY created_at ASC, id ASC`

	LockOpenOrdersByTableSQL = ListOpenOrdersByTableSQL + `
		FOR UPDATE`

	ListOpenOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders
		WHERE status <> 'Paid'
		ORDER BY created_at ASC, id ASC`

	orderItemColumns = `
		oi.order_id::text, oi.menu_item_id, oi.name, oi.category_id, oi.station, oi.unit_price::text, oi.quantity`

	GetOrderItemsSQL = `SELECT ` + orderItemColumns + `
		FROM order_items oi
		WHERE oi.order_id = $1
		ORDER BY oi.line_no ASC`

	ListOpenOrderItemsByTableSQL = `SELECT ` + orderItemColumns + `
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.table_name = $1 AND o.status <> 'Paid'
		ORDER BY oi.order_id, oi.line_no ASC`

	ListOpenOrderItemsSQL = `SELECT ` + orderItemColumns + `
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status <> 'Paid'
		ORDER BY oi.order_id, oi.line_no ASC`
)

// Status log queries
const (
	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, status, changed_by, notes)
		VALUES ($1, $2, $3, $4)`

	GetOrderStatusHistorySQL = `
		SELECT order_id::text, status, changed_by, notes, changed_at
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC`
)
