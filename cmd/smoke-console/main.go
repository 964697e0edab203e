package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/lifecycle"
	"parceldesk.org/internal/session"
	"parceldesk.org/internal/store"
)

type memStore struct {
	values map[string]string
}

func (m *memStore) Save(_ context.Context, key, value string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

func (m *memStore) Load(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func main() {
	base := os.Getenv("CONSOLE_API_BASE_URL")
	if base == "" {
		base = "http://localhost:5000/api"
	}
	email := os.Getenv("CONSOLE_SMOKE_EMAIL")
	password := os.Getenv("CONSOLE_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("CONSOLE_SMOKE_EMAIL and CONSOLE_SMOKE_PASSWORD are required")
	}

	sess := session.NewService(&memStore{})
	client := backend.New(base, sess)
	bus := lifecycle.NewBus()
	counter := lifecycle.NewCounter(bus, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	auth := store.NewAuth(client, bus, sess)
	if err := auth.Login(ctx, email, password); err != nil {
		log.Fatalf("login against %s: %v", base, err)
	}
	user, _ := sess.User()

	parcels := store.NewParcels(client, bus)
	if err := parcels.Fetch(ctx, nil); err != nil {
		log.Fatalf("fetch parcels: %v", err)
	}
	list, _ := parcels.Snapshot()

	departments := store.NewDepartments(client, bus)
	_ = departments.Fetch(ctx)
	depts := departments.Snapshot()

	if n := counter.InFlight(); n != 0 {
		log.Fatalf("lifecycle counter not drained: %d", n)
	}

	fmt.Printf("✅ console smoke passed: user=%s parcels=%d departments=%d\n", user.Email, len(list), len(depts))
}
