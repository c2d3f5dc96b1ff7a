package db

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NumericToDecimal converts a scanned pgtype.Numeric into a decimal without
// a float64 round trip. NULL maps to zero.
func NumericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, fmt.Errorf("db: non-finite numeric")
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

// DecimalParam renders a decimal as a text parameter for NUMERIC columns.
func DecimalParam(d decimal.Decimal) string {
	return d.String()
}
