package crm

import (
	"encoding/json"
	"fmt"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// OrderSignal extracts the ordering customer and the normalized order
// total from an orders/create event. An empty customer ID means a guest
// checkout; callers skip qualification for those. Money normalization
// follows each platform's single conversion function.
func OrderSignal(event *domain.WebhookEvent) (platformCustomerID string, total float64, err error) {
	switch event.CRMType {
	case domain.CRMTypeCommerce7:
		var order c7Order
		if err := json.Unmarshal(event.Payload, &order); err != nil {
			return "", 0, fmt.Errorf("undecodable commerce7 order payload: %w", err)
		}
		cents := order.TotalAfterTip
		if cents == 0 {
			cents = order.Total
		}
		return order.CustomerID, centsToUnits(cents), nil
	case domain.CRMTypeShopify:
		var order shopifyOrder
		if err := json.Unmarshal(event.Payload, &order); err != nil {
			return "", 0, fmt.Errorf("undecodable shopify order payload: %w", err)
		}
		if order.Customer == nil {
			return "", shopifyMoney(order.TotalPrice), nil
		}
		return formatShopifyID(order.Customer.ID), shopifyMoney(order.TotalPrice), nil
	default:
		return "", 0, fmt.Errorf("unsupported crm type %q", event.CRMType)
	}
}
