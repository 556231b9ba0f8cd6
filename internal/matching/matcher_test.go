package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stocksync/internal/inventory"
	"github.com/odyssey-erp/stocksync/internal/remote"
)

func TestResolvePrefersRemoteID(t *testing.T) {
	items := []inventory.Item{
		{ID: "a", Title: "Alpha"},
		{ID: "b", Title: "Beta", RemoteID: "42"},
	}
	res, err := Resolve(Target{RemoteID: "42", Title: "Alpha"}, items)
	require.NoError(t, err)
	require.Equal(t, 1, res.Index)
	require.Equal(t, RuleRemoteID, res.Rule)
}

func TestResolveFallsBackToTitle(t *testing.T) {
	items := []inventory.Item{
		{ID: "a", Title: "Alpha", RemoteID: "7"},
		{ID: "b", Title: "Beta"},
	}
	res, err := Resolve(Target{RemoteID: "99", Title: "Beta"}, items)
	require.NoError(t, err)
	require.Equal(t, 1, res.Index)
	require.Equal(t, RuleTitle, res.Rule)
}

func TestResolveMatchesAlternateTitles(t *testing.T) {
	items := []inventory.Item{{ID: "a", Title: "Alpha", AltTitles: []string{"Alpha (boxed)"}}}
	res, err := Resolve(Target{Title: "Alpha (boxed)"}, items)
	require.NoError(t, err)
	require.Zero(t, res.Index)
}

func TestResolveAmbiguousTitle(t *testing.T) {
	items := []inventory.Item{{ID: "a", Title: "Alpha"}, {ID: "b", Title: "Alpha"}}
	_, err := Resolve(Target{RemoteID: "42", Title: "Alpha"}, items)
	require.ErrorIs(t, err, ErrAmbiguousMatch)
}

func TestResolveNoMatch(t *testing.T) {
	items := []inventory.Item{{ID: "a", Title: "Alpha", RemoteID: "1"}}
	_, err := Resolve(Target{RemoteID: "99", Title: "Gamma"}, items)
	require.ErrorIs(t, err, ErrNoMatch)

	_, err = Resolve(Target{}, items)
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestTitleEqualityIsExact(t *testing.T) {
	items := []inventory.Item{{ID: "a", Title: "Caf\u00e9"}}

	_, err := Resolve(Target{Title: "caf\u00e9"}, items)
	require.ErrorIs(t, err, ErrNoMatch)
	_, err = Resolve(Target{Title: "Caf\u00e9 "}, items)
	require.ErrorIs(t, err, ErrNoMatch)

	// decomposed e + combining acute is the same text
	res, err := Resolve(Target{Title: "Cafe\u0301"}, items)
	require.NoError(t, err)
	require.Zero(t, res.Index)
}

func TestEventKeys(t *testing.T) {
	day := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	a := remote.OutboundDeliveryEvent{
		ShipmentID: "S1", RemoteInventoryID: "42", Title: "Alpha",
		UnitPrice: decimal.RequireFromString("9.50"), DeliveryDate: day, CounterpartyName: "Jane",
	}
	b := a
	b.CounterpartyName = "John"

	pa, sa := EventKeys(a)
	pb, sb := EventKeys(b)
	require.Equal(t, pa, pb)
	require.NotEqual(t, sa, sb)

	c := a
	c.ShipmentID = ""
	pc, sc := EventKeys(c)
	require.Empty(t, pc)
	require.Equal(t, sa, sc)

	require.Equal(t, SecondaryKey("Alpha", "9.5", "2026-03-04", "Jane"), sa)
}
