package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingEmail struct {
	mu   sync.Mutex
	sent []EmailMessage
	fail bool
}

func (r *recordingEmail) Send(ctx context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("smtp down")
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestBookingCreatedWritesRow(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, nil, nil, nil)

	svc.BookingCreated(context.Background(), "a-1", "Maite", "Ana",
		time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC), []string{"Corte de Caballero"})

	rows := repo.All()
	if len(rows) != 1 {
		t.Fatalf("expected one notification, got %d", len(rows))
	}
	if rows[0].Type != TypeBookingCreated || rows[0].EntityID != "a-1" {
		t.Fatalf("unexpected notification %+v", rows[0])
	}
}

func TestEscalationEmailsRecipients(t *testing.T) {
	repo := NewInMemoryRepository()
	email := &recordingEmail{}
	svc := NewService(repo, email, []string{"dueña@salon.example", "gerente@salon.example"}, nil)

	svc.Escalation(context.Background(), "conv-9", "+34600111222", "tres errores seguidos")

	if len(repo.All()) != 1 {
		t.Fatalf("expected admin row, got %d", len(repo.All()))
	}
	email.mu.Lock()
	defer email.mu.Unlock()
	if len(email.sent) != 2 {
		t.Fatalf("expected two emails, got %d", len(email.sent))
	}
	if email.sent[0].Subject == "" {
		t.Fatal("expected subject on escalation email")
	}
}

func TestEscalationSurvivesEmailFailure(t *testing.T) {
	repo := NewInMemoryRepository()
	email := &recordingEmail{fail: true}
	svc := NewService(repo, email, []string{"dueña@salon.example"}, nil)

	// Must not panic or propagate; the admin row still lands.
	svc.Escalation(context.Background(), "conv-9", "+34600111222", "fallo")
	if len(repo.All()) != 1 {
		t.Fatalf("expected admin row despite email failure, got %d", len(repo.All()))
	}
}
