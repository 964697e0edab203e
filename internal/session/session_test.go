package session

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"parceldesk.org/internal/model"
)

type memStore struct {
	values map[string]string
}

func newMemStore() *memStore { return &memStore{values: map[string]string{}} }

func (m *memStore) Save(_ context.Context, key, value string) error {
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

func TestEstablishPersistsBothKeys(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)

	user := model.User{ID: "u1", Email: "a@b.com", Role: model.RoleAdmin}
	if err := svc.Establish(context.Background(), "T1", user); err != nil {
		t.Fatalf("establish: %v", err)
	}

	if svc.Token() != "T1" {
		t.Fatalf("token not held, got %q", svc.Token())
	}
	if got, ok := svc.User(); !ok || got.ID != "u1" {
		t.Fatalf("user not held: %+v ok=%v", got, ok)
	}
	if _, ok := store.values[KeyToken]; !ok {
		t.Fatalf("token key not persisted")
	}
	if _, ok := store.values[KeyUser]; !ok {
		t.Fatalf("user key not persisted")
	}
}

func TestTeardownClearsStateAndStorage(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	_ = svc.Establish(context.Background(), "T1", model.User{ID: "u1"})

	if err := svc.Teardown(context.Background()); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if svc.Authenticated() {
		t.Fatalf("expected anonymous session")
	}
	if _, ok := svc.User(); ok {
		t.Fatalf("expected no user after teardown")
	}
	if len(store.values) != 0 {
		t.Fatalf("storage not cleared: %v", store.values)
	}
}

func TestInitRestoresSession(t *testing.T) {
	store := newMemStore()
	store.values[KeyToken] = "T9"
	store.values[KeyUser] = `{"_id":"u9","role":"operator"}`

	svc := NewService(store)
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if svc.Token() != "T9" {
		t.Fatalf("token not restored, got %q", svc.Token())
	}
	user, ok := svc.User()
	if !ok || user.ID != "u9" || user.Role != model.RoleOperator {
		t.Fatalf("user not restored: %+v ok=%v", user, ok)
	}
}

func TestInitToleratesCorruptUser(t *testing.T) {
	store := newMemStore()
	store.values[KeyToken] = "T1"
	store.values[KeyUser] = "{corrupt"

	svc := NewService(store)
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if svc.Token() != "T1" {
		t.Fatalf("token must survive a corrupt user record")
	}
	if _, ok := svc.User(); ok {
		t.Fatalf("corrupt user must not be restored")
	}
}

func TestSQLStoreSaveLoadDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectExec("create table if not exists session_store").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	mock.ExpectExec("insert into session_store").
		WithArgs(KeyToken, "T1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := store.Save(context.Background(), KeyToken, "T1"); err != nil {
		t.Fatalf("save: %v", err)
	}

	mock.ExpectQuery("select value from session_store").
		WithArgs(KeyToken).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("T1"))
	value, ok, err := store.Load(context.Background(), KeyToken)
	if err != nil || !ok || value != "T1" {
		t.Fatalf("load: value=%q ok=%v err=%v", value, ok, err)
	}

	mock.ExpectQuery("select value from session_store").
		WithArgs(KeyUser).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	_, ok, err = store.Load(context.Background(), KeyUser)
	if err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}

	mock.ExpectExec("delete from session_store").WithArgs(KeyToken).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from session_store").WithArgs(KeyUser).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.Delete(context.Background(), KeyToken, KeyUser); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
