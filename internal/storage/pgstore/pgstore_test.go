package pgstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/storage/pgstore"
	"github.com/seatsync/seatsync/internal/storage/storetest"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s, err := pgstore.Open(context.Background(), dsn, "test-"+uuid.NewString(), log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	storetest.Run(t, s, "")
}
