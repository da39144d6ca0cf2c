package memory

import (
	"context"
	"errors"
	"testing"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

func makeTrade(id, runID, date, instrument string, seq int, ret float64) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:     id,
		RunID:       runID,
		TradingDate: date,
		Instrument:  instrument,
		Seq:         seq,
		Trade: domain.Trade{
			OpenAction:  domain.ActionBTO,
			CloseAction: domain.ActionBTC,
			Sign:        1,
			Return:      ret,
		},
	}
}

func TestTradeStore_InsertBulkAndGet(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		makeTrade("t3", "run1", "20240103", "IF2401_M", 0, 0.01),
		makeTrade("t2", "run1", "20240102", "RB2405_M", 0, 0.02),
		makeTrade("t1b", "run1", "20240102", "IF2401_M", 1, -0.01),
		makeTrade("t1a", "run1", "20240102", "IF2401_M", 0, 0.03),
		makeTrade("x1", "run2", "20240102", "IF2401_M", 0, 0.5),
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	want := []string{"t1a", "t1b", "t2", "t3"}
	if len(got) != len(want) {
		t.Fatalf("got %d trades, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].TradeID != id {
			t.Errorf("got[%d] = %s, want %s", i, got[i].TradeID, id)
		}
	}

	day, err := store.GetByInstrumentDay(ctx, "run1", "20240102", "IF2401_M")
	if err != nil {
		t.Fatalf("GetByInstrumentDay failed: %v", err)
	}
	if len(day) != 2 || day[0].Seq != 0 || day[1].Seq != 1 {
		t.Errorf("unexpected instrument-day blotter: %+v", day)
	}
}

func TestTradeStore_InsertBulkAtomic(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.TradeRecord{makeTrade("t1", "run1", "20240102", "IF", 0, 0)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.TradeRecord{
		makeTrade("t2", "run1", "20240102", "IF", 1, 0),
		makeTrade("t1", "run1", "20240102", "IF", 2, 0),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByRun(ctx, "run1")
	if len(got) != 1 {
		t.Errorf("failed batch must not insert anything, have %d trades", len(got))
	}
}

func TestTradeStore_IntraBatchDuplicate(t *testing.T) {
	store := NewTradeStore()
	err := store.InsertBulk(context.Background(), []*domain.TradeRecord{
		makeTrade("t1", "run1", "20240102", "IF", 0, 0),
		makeTrade("t1", "run1", "20240102", "IF", 1, 0),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStore_InvalidInput(t *testing.T) {
	store := NewTradeStore()
	err := store.InsertBulk(context.Background(), []*domain.TradeRecord{{TradeID: "t1"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTradeStore_ReturnsCopies(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	in := makeTrade("t1", "run1", "20240102", "IF", 0, 0.01)
	if err := store.InsertBulk(ctx, []*domain.TradeRecord{in}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	in.Return = 99

	got, _ := store.GetByRun(ctx, "run1")
	got[0].Return = 42

	again, _ := store.GetByRun(ctx, "run1")
	if again[0].Return != 0.01 {
		t.Errorf("stored trade was mutated: %v", again[0].Return)
	}
}
