package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/salonware/booking-assistant/internal/customers"
)

// ManageCustomer builds the customer record tool. update_name
// overwrites both name fields so a restated name fully replaces the
// old one, last name included.
func ManageCustomer(repo customers.Repository) *Tool {
	if repo == nil {
		panic("tools: customers repository required")
	}
	return &Tool{
		Name:        "manage_customer",
		Description: "Read or update the customer record keyed by phone.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type": "string",
					"enum": []string{"get", "update_name"},
				},
				"phone":      map[string]any{"type": "string"},
				"first_name": map[string]any{"type": "string"},
				"last_name":  map[string]any{"type": "string"},
			},
			"required": []string{"action", "phone"},
		},
		Run: func(ctx context.Context, args Args) (map[string]any, error) {
			phone := args.String("phone")
			if phone == "" {
				return nil, errors.New("tools: manage_customer: phone is required")
			}

			switch action := args.String("action"); action {
			case "get":
				cust, err := repo.GetByPhone(ctx, phone)
				if errors.Is(err, customers.ErrCustomerNotFound) {
					return map[string]any{"found": false}, nil
				}
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"found":       true,
					"customer_id": cust.ID,
					"first_name":  cust.FirstName,
					"last_name":   cust.LastName,
				}, nil

			case "update_name":
				first := strings.TrimSpace(args.String("first_name"))
				if first == "" {
					return nil, errors.New("tools: manage_customer: first_name is required")
				}
				last := strings.TrimSpace(args.String("last_name"))

				cust, err := repo.GetByPhone(ctx, phone)
				switch {
				case errors.Is(err, customers.ErrCustomerNotFound):
					cust, err = repo.Upsert(ctx, &customers.UpsertRequest{
						Phone: phone, FirstName: first, LastName: last,
					})
				case err == nil:
					cust, err = repo.UpdateName(ctx, cust.ID, first, last)
				}
				if err != nil {
					return nil, fmt.Errorf("tools: manage_customer: %w", err)
				}
				return map[string]any{
					"updated":     true,
					"customer_id": cust.ID,
					"first_name":  cust.FirstName,
					"last_name":   cust.LastName,
				}, nil

			default:
				return nil, fmt.Errorf("tools: manage_customer: unknown action %q", action)
			}
		},
	}
}
