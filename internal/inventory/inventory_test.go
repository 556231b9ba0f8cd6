package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stocksync/internal/store"
)

func TestValidateItems(t *testing.T) {
	require.NoError(t, ValidateItems([]Item{{ID: "a", RemoteID: "1"}, {ID: "b"}, {ID: "c"}}))
	require.ErrorIs(t, ValidateItems([]Item{{ID: "a", Quantity: -1}}), ErrNegativeQuantity)
	require.ErrorIs(t, ValidateItems([]Item{{ID: "a", RemoteID: "7"}, {ID: "b", RemoteID: "7"}}), ErrDuplicateRemoteID)
}

func TestDecrementFloorsAtZero(t *testing.T) {
	now := time.Now()
	item := Item{ID: "a", Quantity: 3}

	applied, short := Decrement(&item, 2, now)
	require.Equal(t, 2, applied)
	require.False(t, short)
	require.Equal(t, 1, item.Quantity)

	applied, short = Decrement(&item, 5, now)
	require.Equal(t, 1, applied)
	require.True(t, short)
	require.Equal(t, 0, item.Quantity)

	applied, _ = Decrement(&item, 1, now)
	require.Zero(t, applied)
	require.Zero(t, item.Quantity)
}

func TestNewSaleComputesProfit(t *testing.T) {
	item := Item{ID: "a", Title: "Alpha", BuybackPrice: decimal.RequireFromString("4.50")}
	sale, err := NewSale(item, SaleInput{
		Quantity:   2,
		UnitPrice:  decimal.RequireFromString("10.00"),
		Provenance: ProvenanceRemoteSync,
	}, time.Now())
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("11.00").Equal(sale.Profit))
	require.Equal(t, "Alpha", sale.Title)

	_, err = NewSale(item, SaleInput{Quantity: 0}, time.Now())
	require.ErrorIs(t, err, ErrInvalidSaleQuantity)
}

func TestLedgerFromSaleRedactsSyncCounterparty(t *testing.T) {
	redactor, err := NewRedactor([]byte("k"))
	require.NoError(t, err)
	now := time.Now()

	synced := SaleRecord{ID: "s1", Quantity: 2, UnitPrice: decimal.NewFromInt(3), Counterparty: "ACME GmbH", Provenance: ProvenanceRemoteSync}
	entry := LedgerFromSale(synced, redactor, now)
	require.Equal(t, "s1", entry.SaleID)
	require.True(t, entry.Redacted)
	require.Empty(t, entry.CounterpartyName)
	require.Len(t, entry.CounterpartyRef, refLen)
	require.Equal(t, redactor.Ref("acme gmbh"), entry.CounterpartyRef)
	require.True(t, decimal.NewFromInt(6).Equal(entry.Amount))

	manual := synced
	manual.Provenance = ProvenanceManual
	entry = LedgerFromSale(manual, redactor, now)
	require.False(t, entry.Redacted)
	require.Equal(t, "ACME GmbH", entry.CounterpartyName)
}

func TestRedactorKeyed(t *testing.T) {
	a, err := NewRedactor([]byte("one"))
	require.NoError(t, err)
	b, err := NewRedactor([]byte("two"))
	require.NoError(t, err)
	require.NotEqual(t, a.Ref("x"), b.Ref("x"))
	require.Empty(t, a.Ref("  "))

	_, err = NewRedactor(make([]byte, 65))
	require.Error(t, err)
}

func TestRepositoryCommitSale(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(store.NewMemoryRepository())

	items := []Item{{ID: "a", Title: "Alpha", Quantity: 4, RemoteID: "42"}}
	require.NoError(t, repo.SaveItems(ctx, items))

	items[0].Quantity = 3
	sale := SaleRecord{ID: "s1", ItemID: "a", Quantity: 1}
	ledger := LedgerEntry{ID: "l1", SaleID: "s1"}
	require.NoError(t, repo.CommitSale(ctx, items, []SaleRecord{sale}, []LedgerEntry{ledger}))

	gotItems, err := repo.Items(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, gotItems[0].Quantity)
	gotSales, err := repo.Sales(ctx)
	require.NoError(t, err)
	require.Len(t, gotSales, 1)
	gotLedger, err := repo.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, gotLedger, 1)

	items = append(items, Item{ID: "b", RemoteID: "42"})
	require.ErrorIs(t, repo.CommitSale(ctx, items, gotSales, gotLedger), ErrDuplicateRemoteID)
}
