package documents

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvoiceLineExclTax(t *testing.T) {
	line := InvoiceLine{Quantity: 2, UnitPrice: 100, DiscountPercent: 10, VATRate: 20}
	require.InDelta(t, 180.0, line.ExclTax(), 0.001)
	require.InDelta(t, 36.0, line.Tax(), 0.001)

	// No discount.
	line = InvoiceLine{Quantity: 3, UnitPrice: 50, VATRate: 20}
	require.InDelta(t, 150.0, line.ExclTax(), 0.001)
	require.InDelta(t, 30.0, line.Tax(), 0.001)

	// Amount-only lines keep their stored totals.
	line = InvoiceLine{TotalHT: 99.9, TotalVAT: 19.98}
	require.InDelta(t, 99.9, line.ExclTax(), 0.001)
	require.InDelta(t, 19.98, line.Tax(), 0.001)

	// A stale snapshot never wins over the computed amount.
	line = InvoiceLine{Quantity: 1, UnitPrice: 80, DiscountPercent: 25, VATRate: 20, TotalHT: 80, TotalVAT: 16}
	require.InDelta(t, 60.0, line.ExclTax(), 0.001)
	require.InDelta(t, 12.0, line.Tax(), 0.001)
}
