package trialbalance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medledger-hq/medledger/internal/accounting/accounts"
)

// imbalanceTolerance absorbs rounding drift from data imported out of
// systems that stored amounts at lower precision. Anything at or beyond
// it is reported, never corrected.
var imbalanceTolerance = decimal.NewFromFloat(0.01)

// Query scopes a trial balance report.
type Query struct {
	FinancialYearID int64
	AsOf            time.Time
	ExcludeZero     bool
	GroupByType     bool
}

// AccountActivity models one account's aggregated movement for the
// reporting window.
type AccountActivity struct {
	Code    string
	Name    string
	Type    accounts.AccountType
	Opening decimal.Decimal
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// Closing applies the movement to the opening balance using the
// account type's sign convention.
func (a AccountActivity) Closing() decimal.Decimal {
	return a.Opening.Add(a.Type.Delta(a.Debit, a.Credit))
}

// Row is one trial balance line. A positive closing balance sits in the
// account's normal column; a negative one flips to the opposite column
// as a positive figure.
type Row struct {
	Code          string               `json:"code"`
	Name          string               `json:"name"`
	Type          accounts.AccountType `json:"type"`
	Opening       decimal.Decimal      `json:"opening"`
	PeriodDebit   decimal.Decimal      `json:"period_debit"`
	PeriodCredit  decimal.Decimal      `json:"period_credit"`
	Closing       decimal.Decimal      `json:"closing"`
	DebitBalance  decimal.Decimal      `json:"debit_balance"`
	CreditBalance decimal.Decimal      `json:"credit_balance"`
}

// Group aggregates rows sharing an account type.
type Group struct {
	Type        accounts.AccountType `json:"type"`
	Rows        []Row                `json:"rows"`
	DebitTotal  decimal.Decimal      `json:"debit_total"`
	CreditTotal decimal.Decimal      `json:"credit_total"`
}

// TrialBalance is the complete report. Rows carries the flat listing;
// Groups is populated instead when the report is grouped by type.
type TrialBalance struct {
	FinancialYearID int64           `json:"financial_year_id"`
	AsOf            time.Time       `json:"as_of"`
	ExcludeZero     bool            `json:"exclude_zero"`
	Rows            []Row           `json:"rows,omitempty"`
	Groups          []Group         `json:"groups,omitempty"`
	TotalDebit      decimal.Decimal `json:"total_debit"`
	TotalCredit     decimal.Decimal `json:"total_credit"`
	IsBalanced      bool            `json:"is_balanced"`
	Difference      decimal.Decimal `json:"difference"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// typeOrder fixes the presentation order of grouped reports.
var typeOrder = []accounts.AccountType{
	accounts.AccountTypeAsset,
	accounts.AccountTypeLiability,
	accounts.AccountTypeEquity,
	accounts.AccountTypeRevenue,
	accounts.AccountTypeExpense,
}

// Build converts per-account activity into the report. ExcludeZero drops
// accounts with no balance and no movement in the window; GroupByType
// replaces the flat listing with per-type groups and subtotals.
func Build(activities []AccountActivity, q Query) TrialBalance {
	rows := make([]Row, 0, len(activities))
	for _, act := range activities {
		row := Row{
			Code:         act.Code,
			Name:         act.Name,
			Type:         act.Type,
			Opening:      act.Opening,
			PeriodDebit:  act.Debit,
			PeriodCredit: act.Credit,
			Closing:      act.Closing(),
		}
		if q.ExcludeZero && row.Closing.IsZero() && act.Debit.IsZero() && act.Credit.IsZero() {
			continue
		}
		row.DebitBalance, row.CreditBalance = placeBalance(act.Type, row.Closing)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })

	result := TrialBalance{
		ExcludeZero: q.ExcludeZero,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, row := range rows {
		result.TotalDebit = result.TotalDebit.Add(row.DebitBalance)
		result.TotalCredit = result.TotalCredit.Add(row.CreditBalance)
	}

	if q.GroupByType {
		byType := make(map[accounts.AccountType]*Group, len(typeOrder))
		for _, row := range rows {
			grp, ok := byType[row.Type]
			if !ok {
				grp = &Group{Type: row.Type, DebitTotal: decimal.Zero, CreditTotal: decimal.Zero}
				byType[row.Type] = grp
			}
			grp.Rows = append(grp.Rows, row)
			grp.DebitTotal = grp.DebitTotal.Add(row.DebitBalance)
			grp.CreditTotal = grp.CreditTotal.Add(row.CreditBalance)
		}
		for _, t := range typeOrder {
			if grp, ok := byType[t]; ok {
				result.Groups = append(result.Groups, *grp)
			}
		}
	} else {
		result.Rows = rows
	}

	result.Difference = result.TotalDebit.Sub(result.TotalCredit)
	result.IsBalanced = result.Difference.Abs().LessThan(imbalanceTolerance)
	return result
}

// placeBalance puts a closing balance in the account's normal column,
// flipping negative balances to the opposite side.
func placeBalance(t accounts.AccountType, closing decimal.Decimal) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	normalDebit := t.DebitNormal()
	if closing.IsNegative() {
		normalDebit = !normalDebit
		closing = closing.Neg()
	}
	if normalDebit {
		return closing, credit
	}
	return debit, closing
}
