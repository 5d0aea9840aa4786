package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "SO-2026-0001", Format(FamilySaleOrder, "2026", 1))
	require.Equal(t, "DC-202608-0042", Format(FamilyDispatch, "202608", 42))
	require.Equal(t, "INV-2026-12345", Format(FamilyInvoice, "2026", 12345))
}

func TestPrefixes(t *testing.T) {
	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	require.Equal(t, "2026", YearPrefix(at))
	require.Equal(t, "202608", MonthPrefix(at))
}
