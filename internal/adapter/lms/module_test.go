package lms

import (
	"io"
	"log/slog"
	"testing"

	"go.uber.org/fx"

	"github.com/polkiloo/coursemart/internal/config"
	"github.com/polkiloo/coursemart/internal/domain/port"
)

func TestNewClientUsesConfig(t *testing.T) {
	cfg := &config.Config{LMSAddress: "http://example.com"}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	client, err := newClient(clientParams{Config: cfg, Logger: logger})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.baseURL.Host != "example.com" {
		t.Fatalf("unexpected base url %v", client.baseURL)
	}
}

func TestModuleProvidesPorts(t *testing.T) {
	var (
		enrollments port.Enrollments
		sync        port.EnrollmentSynchronizer
	)
	app := fx.New(
		fx.NopLogger,
		fx.Supply(&config.Config{LMSAddress: "http://example.com"}),
		fx.Supply(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		Module,
		fx.Populate(&enrollments, &sync),
	)
	if err := app.Err(); err != nil {
		t.Fatalf("fx graph failed: %v", err)
	}
	if enrollments == nil || sync == nil {
		t.Fatal("expected both ports provided")
	}
}
