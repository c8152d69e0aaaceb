package customers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestPostgresGetByPhone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := &PostgresRepository{pool: mock}
	now := time.Now()
	mock.ExpectQuery("SELECT id, phone, first_name, last_name, created_at").
		WithArgs("+34600111222").
		WillReturnRows(pgxmock.NewRows([]string{"id", "phone", "first_name", "last_name", "created_at"}).
			AddRow("c-1", "+34600111222", "Maite", "García", now))

	c, err := repo.GetByPhone(context.Background(), "+34600111222")
	if err != nil {
		t.Fatalf("get by phone: %v", err)
	}
	if c.FirstName != "Maite" || c.FullName() != "Maite García" {
		t.Fatalf("unexpected customer %+v", c)
	}
}

func TestPostgresGetByPhoneNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := &PostgresRepository{pool: mock}
	mock.ExpectQuery("SELECT id, phone, first_name, last_name, created_at").
		WithArgs("+34999999999").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetByPhone(context.Background(), "+34999999999")
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestPostgresUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := &PostgresRepository{pool: mock}
	mock.ExpectQuery("INSERT INTO customers").
		WithArgs(pgxmock.AnyArg(), "+34600111222", "Maite", "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "phone", "first_name", "last_name", "created_at"}).
			AddRow("c-1", "+34600111222", "Maite", "", time.Now()))

	c, err := repo.Upsert(context.Background(), &UpsertRequest{Phone: "+34600111222", FirstName: "Maite"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if c.ID != "c-1" {
		t.Fatalf("unexpected id %s", c.ID)
	}
}

func TestUpsertRequiresPhone(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.Upsert(context.Background(), &UpsertRequest{FirstName: "Maite"}); !errors.Is(err, ErrMissingPhone) {
		t.Fatalf("expected ErrMissingPhone, got %v", err)
	}
}

func TestInMemoryUpsertPreservesName(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first, err := repo.Upsert(ctx, &UpsertRequest{Phone: "+34600111222", FirstName: "Maite", LastName: "García"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	again, err := repo.Upsert(ctx, &UpsertRequest{Phone: "+34600111222"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected same customer id, got %s / %s", first.ID, again.ID)
	}
	if again.FirstName != "Maite" || again.LastName != "García" {
		t.Fatalf("blank upsert clobbered names: %+v", again)
	}
}
