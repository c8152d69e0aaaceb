package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonware/booking-assistant/internal/customers"
)

func TestManageCustomerGetUnknownPhone(t *testing.T) {
	tool := ManageCustomer(customers.NewInMemoryRepository())

	out, err := tool.Run(context.Background(), Args{"action": "get", "phone": "+34600000001"})
	require.NoError(t, err)
	assert.Equal(t, false, out["found"])
}

func TestManageCustomerGetKnownPhone(t *testing.T) {
	repo := customers.NewInMemoryRepository()
	seeded, err := repo.Upsert(context.Background(), &customers.UpsertRequest{
		Phone: "+34600000001", FirstName: "Marta", LastName: "López",
	})
	require.NoError(t, err)
	tool := ManageCustomer(repo)

	out, err := tool.Run(context.Background(), Args{"action": "get", "phone": "+34600000001"})
	require.NoError(t, err)

	assert.Equal(t, true, out["found"])
	assert.Equal(t, seeded.ID, out["customer_id"])
	assert.Equal(t, "Marta", out["first_name"])
}

func TestManageCustomerUpdateNameReplacesBothParts(t *testing.T) {
	repo := customers.NewInMemoryRepository()
	_, err := repo.Upsert(context.Background(), &customers.UpsertRequest{
		Phone: "+34600000001", FirstName: "Marta", LastName: "López",
	})
	require.NoError(t, err)
	tool := ManageCustomer(repo)

	out, err := tool.Run(context.Background(), Args{
		"action": "update_name", "phone": "+34600000001", "first_name": "Lucía",
	})
	require.NoError(t, err)
	assert.Equal(t, true, out["updated"])

	cust, err := repo.GetByPhone(context.Background(), "+34600000001")
	require.NoError(t, err)
	assert.Equal(t, "Lucía", cust.FirstName)
	assert.Empty(t, cust.LastName)
}

func TestManageCustomerUpdateNameCreatesMissingRecord(t *testing.T) {
	repo := customers.NewInMemoryRepository()
	tool := ManageCustomer(repo)

	out, err := tool.Run(context.Background(), Args{
		"action": "update_name", "phone": "+34600000002", "first_name": "Carmen", "last_name": "Ruiz",
	})
	require.NoError(t, err)
	assert.Equal(t, true, out["updated"])

	cust, err := repo.GetByPhone(context.Background(), "+34600000002")
	require.NoError(t, err)
	assert.Equal(t, "Carmen", cust.FirstName)
	assert.Equal(t, "Ruiz", cust.LastName)
}

func TestManageCustomerRejectsUnknownAction(t *testing.T) {
	tool := ManageCustomer(customers.NewInMemoryRepository())

	_, err := tool.Run(context.Background(), Args{"action": "delete", "phone": "+34600000001"})
	assert.Error(t, err)
}
