package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	balances map[uuid.UUID]*Balance
	spends   map[string]int64
	failFor  map[uuid.UUID]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances: make(map[uuid.UUID]*Balance),
		spends:   make(map[string]int64),
		failFor:  make(map[uuid.UUID]error),
	}
}

func (f *fakeStore) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	if b, ok := f.balances[userID]; ok {
		return b, nil
	}
	return &Balance{UserID: userID, UpdatedAt: time.Now()}, nil
}

func (f *fakeStore) Spend(ctx context.Context, userID uuid.UUID, amount int64, referenceID string) error {
	key := userID.String() + "/" + referenceID
	if prev, ok := f.spends[key]; ok {
		if prev == amount {
			return nil
		}
		return ErrReferenceConflict
	}

	b, ok := f.balances[userID]
	if !ok || b.CurrentXP < amount {
		return ErrInsufficientXP
	}
	b.CurrentXP -= amount
	b.TotalSpentXP += amount
	f.spends[key] = amount
	return nil
}

func (f *fakeStore) Overwrite(ctx context.Context, userID uuid.UUID, amount int64) error {
	if err, ok := f.failFor[userID]; ok {
		return err
	}
	f.balances[userID] = &Balance{
		UserID:        userID,
		CurrentXP:     amount,
		TotalEarnedXP: amount,
		TotalSpentXP:  0,
		UpdatedAt:     time.Now(),
	}
	return nil
}

type fakeUsers struct {
	ids []uuid.UUID
	err error
}

func (f *fakeUsers) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	return f.ids, f.err
}

type fakePublisher struct {
	events map[uuid.UUID][]interface{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{events: make(map[uuid.UUID][]interface{})}
}

func (f *fakePublisher) PublishBalanceChange(userID uuid.UUID, payload interface{}) {
	f.events[userID] = append(f.events[userID], payload)
}

func TestSetAllBalances(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	store := newFakeStore()
	publisher := newFakePublisher()
	svc := NewService(store, &fakeUsers{ids: ids}, publisher)

	result, err := svc.SetAllBalances(context.Background(), 1000)
	if err != nil {
		t.Fatalf("SetAllBalances: %v", err)
	}
	if result.UpdatedCount != 3 {
		t.Errorf("UpdatedCount = %d, want 3", result.UpdatedCount)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v, want none", result.Errors)
	}

	for _, id := range ids {
		b := store.balances[id]
		if b == nil {
			t.Fatalf("no balance written for %s", id)
		}
		if b.CurrentXP != 1000 || b.TotalEarnedXP != 1000 || b.TotalSpentXP != 0 {
			t.Errorf("balance for %s = %+v, want 1000/1000/0", id, b)
		}
		if b.CurrentXP != b.TotalEarnedXP-b.TotalSpentXP {
			t.Errorf("invariant violated for %s: %d != %d - %d", id, b.CurrentXP, b.TotalEarnedXP, b.TotalSpentXP)
		}
		if len(publisher.events[id]) != 1 {
			t.Errorf("published %d events for %s, want 1", len(publisher.events[id]), id)
		}
	}
}

func TestSetAllBalancesPartialFailure(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	store := newFakeStore()
	store.failFor[ids[1]] = errors.New("row locked")
	publisher := newFakePublisher()
	svc := NewService(store, &fakeUsers{ids: ids}, publisher)

	result, err := svc.SetAllBalances(context.Background(), 500)
	if err != nil {
		t.Fatalf("partial failure must not fail the whole rewrite: %v", err)
	}
	if result.UpdatedCount != 2 {
		t.Errorf("UpdatedCount = %d, want 2", result.UpdatedCount)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", result.Errors)
	}
	if result.Errors[0].UserID != ids[1] {
		t.Errorf("failed user = %s, want %s", result.Errors[0].UserID, ids[1])
	}

	// The failed user keeps their old balance and gets no event
	if _, ok := store.balances[ids[1]]; ok {
		t.Error("failed user's balance was written")
	}
	if len(publisher.events[ids[1]]) != 0 {
		t.Error("event published for a failed user")
	}
	if len(publisher.events[ids[0]]) != 1 || len(publisher.events[ids[2]]) != 1 {
		t.Error("events missing for successfully rewritten users")
	}
}

func TestSetAllBalancesErrorCap(t *testing.T) {
	store := newFakeStore()
	var ids []uuid.UUID
	for i := 0; i < maxBulkErrors+10; i++ {
		id := uuid.New()
		ids = append(ids, id)
		store.failFor[id] = errors.New("boom")
	}
	svc := NewService(store, &fakeUsers{ids: ids}, newFakePublisher())

	result, err := svc.SetAllBalances(context.Background(), 100)
	if err != nil {
		t.Fatalf("SetAllBalances: %v", err)
	}
	if result.UpdatedCount != 0 {
		t.Errorf("UpdatedCount = %d, want 0", result.UpdatedCount)
	}
	if len(result.Errors) != maxBulkErrors {
		t.Errorf("Errors = %d, want capped at %d", len(result.Errors), maxBulkErrors)
	}
}

func TestSetAllBalancesInvalidAmount(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeUsers{}, newFakePublisher())

	for _, amount := range []int64{0, -1} {
		if _, err := svc.SetAllBalances(context.Background(), amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("SetAllBalances(%d) error = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestSetAllBalancesListFailure(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeUsers{err: errors.New("db down")}, newFakePublisher())

	if _, err := svc.SetAllBalances(context.Background(), 100); err == nil {
		t.Fatal("expected error when user enumeration fails")
	}
}

func TestSpend(t *testing.T) {
	userID := uuid.New()
	store := newFakeStore()
	store.balances[userID] = &Balance{UserID: userID, CurrentXP: 1000, TotalEarnedXP: 1000}
	publisher := newFakePublisher()
	svc := NewService(store, &fakeUsers{}, publisher)

	if err := svc.Spend(context.Background(), userID, 300, "order-1"); err != nil {
		t.Fatalf("Spend: %v", err)
	}

	b := store.balances[userID]
	if b.CurrentXP != 700 || b.TotalSpentXP != 300 {
		t.Errorf("balance after spend = %+v, want 700 current / 300 spent", b)
	}
	if len(publisher.events[userID]) != 1 {
		t.Errorf("published %d events, want 1", len(publisher.events[userID]))
	}
}

func TestSpendIdempotentByReference(t *testing.T) {
	userID := uuid.New()
	store := newFakeStore()
	store.balances[userID] = &Balance{UserID: userID, CurrentXP: 1000, TotalEarnedXP: 1000}
	svc := NewService(store, &fakeUsers{}, newFakePublisher())

	if err := svc.Spend(context.Background(), userID, 300, "order-1"); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	if err := svc.Spend(context.Background(), userID, 300, "order-1"); err != nil {
		t.Fatalf("replayed spend must succeed: %v", err)
	}
	if store.balances[userID].CurrentXP != 700 {
		t.Errorf("CurrentXP = %d after replay, want 700", store.balances[userID].CurrentXP)
	}

	if err := svc.Spend(context.Background(), userID, 100, "order-1"); !errors.Is(err, ErrReferenceConflict) {
		t.Errorf("conflicting replay error = %v, want ErrReferenceConflict", err)
	}
}

func TestSpendValidation(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeUsers{}, newFakePublisher())
	userID := uuid.New()

	if err := svc.Spend(context.Background(), userID, 0, "order-1"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount error = %v, want ErrInvalidAmount", err)
	}
	if err := svc.Spend(context.Background(), userID, 100, ""); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("empty reference error = %v, want ErrInvalidAmount", err)
	}
}

func TestSpendInsufficient(t *testing.T) {
	userID := uuid.New()
	store := newFakeStore()
	store.balances[userID] = &Balance{UserID: userID, CurrentXP: 50, TotalEarnedXP: 50}
	publisher := newFakePublisher()
	svc := NewService(store, &fakeUsers{}, publisher)

	if err := svc.Spend(context.Background(), userID, 100, "order-1"); !errors.Is(err, ErrInsufficientXP) {
		t.Fatalf("error = %v, want ErrInsufficientXP", err)
	}
	if store.balances[userID].CurrentXP != 50 {
		t.Error("balance mutated by a rejected spend")
	}
	if len(publisher.events[userID]) != 0 {
		t.Error("event published for a rejected spend")
	}
}
