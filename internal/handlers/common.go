package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/platform/pagination"
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

const defaultMaxBodySize = 64 * 1024

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePointer(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	filters := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			filters = append(filters, trimmed)
		}
	}
	return filters
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("must be RFC3339 timestamp")
}

// parsePagination reads page_size/page_token query parameters, clamping the
// size to [1, max] with def as the fallback. Malformed tokens are rejected
// here so listings fail before reaching the repository.
func parsePagination(query url.Values, def, max int) (domain.Pagination, error) {
	params, err := pagination.Parse(query, pagination.Options{
		DefaultPageSize: def,
		MaxPageSize:     max,
	})
	if err != nil {
		return domain.Pagination{}, err
	}
	return domain.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	}, nil
}

type addressPayload struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

func buildAddressPayload(addr *domain.Address) *addressPayload {
	if addr == nil {
		return nil
	}
	return &addressPayload{
		Name:       addr.Name,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		Region:     addr.Region,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

func (p *addressPayload) toDomain() domain.Address {
	if p == nil {
		return domain.Address{}
	}
	return domain.Address{
		Name:       strings.TrimSpace(p.Name),
		Line1:      strings.TrimSpace(p.Line1),
		Line2:      strings.TrimSpace(p.Line2),
		City:       strings.TrimSpace(p.City),
		Region:     strings.TrimSpace(p.Region),
		PostalCode: strings.TrimSpace(p.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(p.Country)),
		Phone:      strings.TrimSpace(p.Phone),
	}
}

type orderPayload struct {
	ID              string               `json:"id"`
	OrderNumber     string               `json:"order_number"`
	UserID          string               `json:"user_id"`
	Status          string               `json:"status"`
	Items           []orderItemPayload   `json:"items"`
	History         []statusChangeEntry  `json:"history"`
	TotalAmount     int64                `json:"total_amount"`
	Currency        string               `json:"currency"`
	ShippingAddress *addressPayload      `json:"shipping_address,omitempty"`
	IsCustomOrder   bool                 `json:"is_custom_order"`
	CancelReason    *string              `json:"cancel_reason,omitempty"`
	Metadata        map[string]string    `json:"metadata,omitempty"`
	Version         int64                `json:"version"`
	CreatedAt       string               `json:"created_at"`
	UpdatedAt       string               `json:"updated_at,omitempty"`
	PaidAt          string               `json:"paid_at,omitempty"`
	DeliveredAt     string               `json:"delivered_at,omitempty"`
	CancelledAt     string               `json:"cancelled_at,omitempty"`
	RefundedAt      string               `json:"refunded_at,omitempty"`
}

type orderItemPayload struct {
	ProductRef string `json:"product_ref"`
	SKU        string `json:"sku,omitempty"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	Total      int64  `json:"total"`
}

type statusChangeEntry struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          string(order.CurrentStatus()),
		Items:           make([]orderItemPayload, 0, len(order.Items)),
		History:         make([]statusChangeEntry, 0, len(order.History)),
		TotalAmount:     order.TotalAmount,
		Currency:        strings.ToUpper(order.Currency),
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		IsCustomOrder:   order.IsCustomOrder,
		CancelReason:    order.CancelReason,
		Metadata:        order.Metadata,
		Version:         order.Version,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		PaidAt:          formatTimePointer(order.PaidAt),
		DeliveredAt:     formatTimePointer(order.DeliveredAt),
		CancelledAt:     formatTimePointer(order.CancelledAt),
		RefundedAt:      formatTimePointer(order.RefundedAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductRef: item.ProductRef,
			SKU:        item.SKU,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
		})
	}
	for _, change := range order.History {
		payload.History = append(payload.History, statusChangeEntry{
			Status:    string(change.Status),
			Timestamp: formatTime(change.Timestamp),
		})
	}
	return payload
}
