package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
)

// LineItem is one ordered product.
type LineItem struct {
	ProductID string  `json:"prod_id"`
	Title     string  `json:"title"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

// Order is a customer order. Dates are dd-mm-yyyy strings as stored.
type Order struct {
	ID                string     `json:"order_id"`
	UserEmail         string     `json:"user_email"`
	UserName          string     `json:"user_name"`
	Items             []LineItem `json:"items"`
	TotalAmount       float64    `json:"total_amount"`
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	PlacedDate        string     `json:"placed_date"`
	EstimatedDelivery string     `json:"estimated_delivery"`
}

var orderColumns = []string{
	"order_id", "user_email", "user_name", "items", "total_amount",
	"currency", "status", "placed_date", "estimated_delivery",
}

// OrderStore is a CSV-backed order map keyed by upper-cased order id.
type OrderStore struct {
	mu     sync.RWMutex
	path   string
	orders map[string]*Order
}

// OpenOrderStore loads the orders CSV. A missing file yields an empty
// store; the file is created on first Create.
func OpenOrderStore(path string) (*OrderStore, error) {
	s := &OrderStore{path: path, orders: make(map[string]*Order)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorage, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, path, err)
	}
	if len(rows) == 0 {
		return s, nil
	}

	col := columnIndex(rows[0])
	for _, row := range rows[1:] {
		o := &Order{
			ID:                field(row, col, "order_id"),
			UserEmail:         field(row, col, "user_email"),
			UserName:          field(row, col, "user_name"),
			Currency:          field(row, col, "currency"),
			Status:            field(row, col, "status"),
			PlacedDate:        field(row, col, "placed_date"),
			EstimatedDelivery: field(row, col, "estimated_delivery"),
		}
		if o.ID == "" {
			continue
		}
		o.TotalAmount, _ = strconv.ParseFloat(field(row, col, "total_amount"), 64)
		// tolerate unparseable item blobs; the order itself stays usable
		_ = json.Unmarshal([]byte(field(row, col, "items")), &o.Items)
		s.orders[strings.ToUpper(o.ID)] = o
	}
	return s, nil
}

// GetByID looks an order up by id, exact key first, then a
// case-insensitive scan.
func (s *OrderStore) GetByID(id string) (*Order, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[id]; ok {
		return o, true
	}
	upper := strings.ToUpper(id)
	if o, ok := s.orders[upper]; ok {
		return o, true
	}
	for _, o := range s.orders {
		if strings.EqualFold(o.ID, id) {
			return o, true
		}
	}
	return nil, false
}

// GetScoped is GetByID with ownership verification. When email is
// non-empty and does not match the order's registered email
// (case-insensitive), ErrEmailMismatch is returned without the order.
func (s *OrderStore) GetScoped(id, email string) (*Order, error) {
	o, ok := s.GetByID(id)
	if !ok {
		return nil, nil
	}
	if email != "" && !strings.EqualFold(email, o.UserEmail) {
		return nil, ErrEmailMismatch
	}
	return o, nil
}

// Create persists a new order. An empty ID gets a generated ORD<digits>
// id unique within the store. The row is appended and synced before the
// order becomes visible to readers.
func (s *OrderStore) Create(o *Order) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = s.nextIDLocked()
	}
	key := strings.ToUpper(o.ID)
	if _, exists := s.orders[key]; exists {
		return nil, fmt.Errorf("%w: duplicate order id %s", ErrStorage, o.ID)
	}

	if err := s.appendRowLocked(o); err != nil {
		return nil, err
	}
	s.orders[key] = o
	return o, nil
}

// Len reports the number of loaded orders.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *OrderStore) nextIDLocked() string {
	for {
		id := fmt.Sprintf("ORD%d", 10000+rand.Intn(90000))
		if _, exists := s.orders[id]; !exists {
			return id
		}
	}
}

func (s *OrderStore) appendRowLocked(o *Order) error {
	writeHeader := false
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrStorage, s.path, err)
	}
	defer f.Close()

	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("%w: marshal items: %v", ErrStorage, err)
	}

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(orderColumns); err != nil {
			return fmt.Errorf("%w: write header: %v", ErrStorage, err)
		}
	}
	row := []string{
		o.ID, o.UserEmail, o.UserName, string(items),
		strconv.FormatFloat(o.TotalAmount, 'f', 2, 64),
		o.Currency, o.Status, o.PlacedDate, o.EstimatedDelivery,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("%w: write row: %v", ErrStorage, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrStorage, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrStorage, err)
	}
	return nil
}

// shared CSV helpers

func columnIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	return col
}

func field(row []string, col map[string]int, key string) string {
	i, ok := col[key]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
