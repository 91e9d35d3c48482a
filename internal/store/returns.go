package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ReturnRequest is one filed return. Demographic and fulfillment fields
// are denormalized placeholders carried for the downstream analytics
// export, defaulted at creation.
type ReturnRequest struct {
	OrderID         string `json:"order_id"`
	ProductID       string `json:"product_id"`
	UserID          string `json:"user_id"`
	OrderDate       string `json:"order_date"`
	ReturnDate      string `json:"return_date"`
	ProductCategory string `json:"product_category"`
	ProductPrice    string `json:"product_price"`
	OrderQuantity   int    `json:"order_quantity"`
	ReturnReason    string `json:"return_reason"`
	ReturnStatus    string `json:"return_status"`
	DaysToReturn    int    `json:"days_to_return"`
	UserAge         string `json:"user_age"`
	UserGender      string `json:"user_gender"`
	UserLocation    string `json:"user_location"`
	PaymentMethod   string `json:"payment_method"`
	ShippingMethod  string `json:"shipping_method"`
	DiscountApplied string `json:"discount_applied"`
}

var returnColumns = []string{
	"order_id", "product_id", "user_id", "order_date", "return_date",
	"product_category", "product_price", "order_quantity", "return_reason",
	"return_status", "days_to_return", "user_age", "user_gender",
	"user_location", "payment_method", "shipping_method", "discount_applied",
}

// ReturnStore is a CSV-backed return-request map keyed by upper-cased
// order id.
type ReturnStore struct {
	mu      sync.RWMutex
	path    string
	returns map[string]*ReturnRequest
}

// OpenReturnStore loads the returns CSV; a missing file yields an empty
// store.
func OpenReturnStore(path string) (*ReturnStore, error) {
	s := &ReturnStore{path: path, returns: make(map[string]*ReturnRequest)}

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
		rr := &ReturnRequest{
			OrderID:         field(row, col, "order_id"),
			ProductID:       field(row, col, "product_id"),
			UserID:          field(row, col, "user_id"),
			OrderDate:       field(row, col, "order_date"),
			ReturnDate:      field(row, col, "return_date"),
			ProductCategory: field(row, col, "product_category"),
			ProductPrice:    field(row, col, "product_price"),
			ReturnReason:    field(row, col, "return_reason"),
			ReturnStatus:    field(row, col, "return_status"),
			UserAge:         field(row, col, "user_age"),
			UserGender:      field(row, col, "user_gender"),
			UserLocation:    field(row, col, "user_location"),
			PaymentMethod:   field(row, col, "payment_method"),
			ShippingMethod:  field(row, col, "shipping_method"),
			DiscountApplied: field(row, col, "discount_applied"),
		}
		if rr.OrderID == "" {
			continue
		}
		rr.OrderQuantity, _ = strconv.Atoi(field(row, col, "order_quantity"))
		rr.DaysToReturn, _ = strconv.Atoi(field(row, col, "days_to_return"))
		s.returns[strings.ToUpper(rr.OrderID)] = rr
	}
	return s, nil
}

// GetByOrderID returns the return request filed for an order, if any.
// Lookup is case-insensitive.
func (s *ReturnStore) GetByOrderID(orderID string) (*ReturnRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rr, ok := s.returns[strings.ToUpper(orderID)]
	return rr, ok
}

// Create appends a return request durably. The at-most-one-per-order rule
// is the caller's to enforce; a second create for the same order id is
// rejected here as a safety net.
func (s *ReturnStore) Create(rr *ReturnRequest) (*ReturnRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToUpper(rr.OrderID)
	if existing, ok := s.returns[key]; ok {
		return existing, nil
	}

	if err := s.appendRowLocked(rr); err != nil {
		return nil, err
	}
	s.returns[key] = rr
	return rr, nil
}

func (s *ReturnStore) appendRowLocked(rr *ReturnRequest) error {
	writeHeader := false
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrStorage, s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(returnColumns); err != nil {
			return fmt.Errorf("%w: write header: %v", ErrStorage, err)
		}
	}
	row := []string{
		rr.OrderID, rr.ProductID, rr.UserID, rr.OrderDate, rr.ReturnDate,
		rr.ProductCategory, rr.ProductPrice, strconv.Itoa(rr.OrderQuantity),
		rr.ReturnReason, rr.ReturnStatus, strconv.Itoa(rr.DaysToReturn),
		rr.UserAge, rr.UserGender, rr.UserLocation, rr.PaymentMethod,
		rr.ShippingMethod, rr.DiscountApplied,
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
