package floor

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aquamarinepk/aqm"
)

// OrderDataAccess centralizes decoding of order service responses. The
// service is not strict about field naming, so everything comes back as raw
// maps and normalization happens at the store boundary.
type OrderDataAccess struct {
	client *aqm.ServiceClient
}

func NewOrderDataAccess(client *aqm.ServiceClient) *OrderDataAccess {
	return &OrderDataAccess{client: client}
}

func (da *OrderDataAccess) ListOpenOrders(ctx context.Context) ([]map[string]interface{}, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}

	resp, err := da.client.List(ctx, "orders")
	if err != nil {
		return nil, err
	}

	var orders []map[string]interface{}
	if err := decodeSuccessResponse(resp, &orders); err != nil {
		return nil, fmt.Errorf("unexpected orders response: %w", err)
	}

	return orders, nil
}

func (da *OrderDataAccess) ListReservations(ctx context.Context, startDate string) ([]map[string]interface{}, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}

	path := "/orders/reservations"
	if startDate != "" {
		path += "?start_date=" + url.QueryEscape(startDate)
	}
	resp, err := da.client.Request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	// Some deployments wrap the list, others return it bare.
	var wrapped struct {
		Reservations []map[string]interface{} `json:"reservations"`
	}
	if err := decodeSuccessResponse(resp, &wrapped); err == nil && wrapped.Reservations != nil {
		return wrapped.Reservations, nil
	}
	var reservations []map[string]interface{}
	if err := decodeSuccessResponse(resp, &reservations); err != nil {
		return nil, fmt.Errorf("unexpected reservations response: %w", err)
	}
	return reservations, nil
}

func (da *OrderDataAccess) ListOrderItems(ctx context.Context, orderID int64) ([]map[string]interface{}, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}

	path := fmt.Sprintf("/orders/%d/items", orderID)
	resp, err := da.client.Request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var items []map[string]interface{}
	if err := decodeSuccessResponse(resp, &items); err != nil {
		return nil, fmt.Errorf("unexpected order items response: %w", err)
	}
	return items, nil
}

func (da *OrderDataAccess) GetOrderReservation(ctx context.Context, orderID int64) (map[string]interface{}, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("order client not configured")
	}

	path := fmt.Sprintf("/orders/reservations/%d", orderID)
	resp, err := da.client.Request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Success     bool                   `json:"success"`
		Reservation map[string]interface{} `json:"reservation"`
	}
	if err := decodeSuccessResponse(resp, &payload); err != nil {
		return nil, fmt.Errorf("unexpected reservation response: %w", err)
	}
	if !payload.Success || payload.Reservation == nil {
		return nil, nil
	}
	return payload.Reservation, nil
}

func (da *OrderDataAccess) DeleteReservation(ctx context.Context, reservationID int64) error {
	if da == nil || da.client == nil {
		return fmt.Errorf("order client not configured")
	}

	path := fmt.Sprintf("/reservations/%d", reservationID)
	if _, err := da.client.Request(ctx, "DELETE", path, nil); err != nil {
		return fmt.Errorf("cannot delete reservation %d: %w", reservationID, err)
	}
	return nil
}

// TableDataAccess wraps the table service: floor-plan configs and staff
// edits to them.
type TableDataAccess struct {
	client *aqm.ServiceClient
}

func NewTableDataAccess(client *aqm.ServiceClient) *TableDataAccess {
	return &TableDataAccess{client: client}
}

func (da *TableDataAccess) ListTableConfigs(ctx context.Context) ([]TableConfig, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("table client not configured")
	}

	resp, err := da.client.List(ctx, "tables")
	if err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	if err := decodeSuccessResponse(resp, &rows); err != nil {
		return nil, fmt.Errorf("unexpected tables response: %w", err)
	}
	configs := make([]TableConfig, 0, len(rows))
	for _, row := range rows {
		if tc := NormalizeTableConfig(row); tc.Number > 0 {
			configs = append(configs, tc)
		}
	}
	return configs, nil
}

func (da *TableDataAccess) UpdateTableConfig(ctx context.Context, tableNumber int, payload map[string]interface{}) error {
	if da == nil || da.client == nil {
		return fmt.Errorf("table client not configured")
	}

	path := fmt.Sprintf("/tables/%d", tableNumber)
	if _, err := da.client.Request(ctx, "PATCH", path, payload); err != nil {
		return fmt.Errorf("cannot update table %d: %w", tableNumber, err)
	}
	return nil
}

// ProductDataAccess serves the per-product preparation minutes used by the
// prep tracker.
type ProductDataAccess struct {
	client *aqm.ServiceClient
}

func NewProductDataAccess(client *aqm.ServiceClient) *ProductDataAccess {
	return &ProductDataAccess{client: client}
}

func (da *ProductDataAccess) ListProductPrepTimes(ctx context.Context) (map[int64]float64, error) {
	if da == nil || da.client == nil {
		return nil, fmt.Errorf("product client not configured")
	}

	resp, err := da.client.List(ctx, "products")
	if err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	if err := decodeSuccessResponse(resp, &rows); err != nil {
		return nil, fmt.Errorf("unexpected products response: %w", err)
	}
	prep := make(map[int64]float64, len(rows))
	for _, row := range rows {
		id := pickInt64Ptr(row, "id", "product_id", "productId")
		if id == nil {
			continue
		}
		minutes, ok := pickFloat(row, "preparation_time", "preparationTime", "prep_minutes", "prepMinutes")
		if !ok || minutes <= 0 {
			continue
		}
		prep[*id] = minutes
	}
	return prep, nil
}
