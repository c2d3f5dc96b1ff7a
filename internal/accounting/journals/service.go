package journals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medledger-hq/medledger/internal/accounting/fiscalyears"
	"github.com/medledger-hq/medledger/internal/accounting/shared"
	"github.com/medledger-hq/medledger/internal/observability"
)

// ReferenceTypeReversal marks entries generated by Reverse. Reversal
// entries are themselves regular posted entries with the sides swapped.
const ReferenceTypeReversal = "REVERSAL"

// Service implements journal posting. Every mutation runs inside one
// transaction: the entry, its items, the source link and the balance
// updates commit together or not at all.
type Service struct {
	logger *slog.Logger
	repo   Repository
	now    func() time.Time
}

func NewService(logger *slog.Logger, repo Repository) *Service {
	return &Service{logger: logger, repo: repo, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListJournalsRequest) ([]JournalEntry, int, error) {
	return s.repo.List(ctx, req)
}

// Post validates and atomically writes a balanced journal entry,
// applying balance deltas to every referenced account.
func (s *Service) Post(ctx context.Context, in PostingInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}

	var created JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year, err := tx.GetYearForUpdate(ctx, in.FinancialYearID)
		if err != nil {
			return err
		}
		if err := checkPostable(year, in.EntryDate); err != nil {
			return err
		}

		deltas, err := s.lockAndComputeDeltas(ctx, tx, buildItems(in.Items))
		if err != nil {
			return err
		}

		entry := JournalEntry{
			EntryDate:       in.EntryDate,
			FinancialYearID: in.FinancialYearID,
			ReferenceType:   in.ReferenceType,
			ReferenceID:     in.ReferenceID,
			Memo:            in.Memo,
			Status:          EntryStatusPosted,
			PostedBy:        in.PostedBy,
		}
		created, err = s.writeEntry(ctx, tx, entry, buildItems(in.Items), deltas)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}

	observability.JournalPostings.Inc()
	s.logger.Info("journal entry posted",
		slog.Int64("entry_id", created.ID),
		slog.Int64("entry_number", created.EntryNumber),
		slog.String("reference_type", created.ReferenceType))
	return created, nil
}

// SaveDraft stores an entry without touching balances. Drafts only need
// structural validity; they may be unbalanced until posted.
func (s *Service) SaveDraft(ctx context.Context, in PostingInput) (JournalEntry, error) {
	if err := in.validateItems(); err != nil {
		return JournalEntry{}, err
	}

	var created JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year, err := tx.GetYearForUpdate(ctx, in.FinancialYearID)
		if err != nil {
			return err
		}
		if err := checkPostable(year, in.EntryDate); err != nil {
			return err
		}

		entry := JournalEntry{
			EntryDate:       in.EntryDate,
			FinancialYearID: in.FinancialYearID,
			ReferenceType:   in.ReferenceType,
			ReferenceID:     in.ReferenceID,
			Memo:            in.Memo,
			Status:          EntryStatusDraft,
		}
		created, err = tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		items := buildItems(in.Items)
		if err := tx.InsertItems(ctx, created.ID, items); err != nil {
			return err
		}
		created.Items = items
		return tx.LinkSource(ctx, in.ReferenceType, in.ReferenceID, created.ID)
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return created, nil
}

// PostDraft promotes a draft to posted. The draft is revalidated in full
// because it may have been saved unbalanced or its year closed since.
func (s *Service) PostDraft(ctx context.Context, entryID, actorID int64) (JournalEntry, error) {
	var posted JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntryWithItems(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != EntryStatusDraft {
			return fmt.Errorf("%w: entry %d is %s", shared.ErrInvalidStatus, entryID, entry.Status)
		}

		debit, credit := itemTotals(entry.Items)
		if !debit.Equal(credit) {
			return fmt.Errorf("%w: debits %s, credits %s", shared.ErrUnbalanced,
				debit.StringFixed(2), credit.StringFixed(2))
		}

		year, err := tx.GetYearForUpdate(ctx, entry.FinancialYearID)
		if err != nil {
			return err
		}
		if err := checkPostable(year, entry.EntryDate); err != nil {
			return err
		}

		deltas, err := s.lockAndComputeDeltas(ctx, tx, entry.Items)
		if err != nil {
			return err
		}
		if err := tx.MarkPosted(ctx, entryID, actorID); err != nil {
			return err
		}
		if err := applyDeltas(ctx, tx, deltas); err != nil {
			return err
		}
		posted = entry
		posted.Status = EntryStatusPosted
		posted.PostedBy = actorID
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}

	observability.JournalPostings.Inc()
	s.logger.Info("journal draft posted", slog.Int64("entry_id", posted.ID))
	return posted, nil
}

// Reverse creates and posts a mirror-image entry for a posted original.
// The original stays untouched; its effect is cancelled, not erased.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (JournalEntry, error) {
	var created JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryWithItems(ctx, in.EntryID)
		if err != nil {
			return err
		}
		if original.Status != EntryStatusPosted {
			return fmt.Errorf("%w: only posted entries can be reversed", shared.ErrInvalidStatus)
		}

		year, err := tx.GetYearForUpdate(ctx, original.FinancialYearID)
		if err != nil {
			return err
		}
		if year.Status != fiscalyears.YearStatusActive {
			return fmt.Errorf("%w: financial year %q is closed", shared.ErrPeriodClosed, year.YearName)
		}

		items := make([]JournalItem, 0, len(original.Items))
		for _, item := range original.Items {
			items = append(items, JournalItem{
				AccountID:   item.AccountID,
				Debit:       item.Credit,
				Credit:      item.Debit,
				Description: item.Description,
			})
		}
		deltas, err := s.lockAndComputeDeltas(ctx, tx, items)
		if err != nil {
			return err
		}

		memo := in.Reason
		if memo == "" {
			memo = fmt.Sprintf("Reversal of entry %d", original.EntryNumber)
		}
		// Reversals are dated today when today falls inside the year,
		// otherwise they reuse the original date.
		reversalDate := s.now().UTC()
		if !year.Contains(reversalDate) {
			reversalDate = original.EntryDate
		}
		originalID := original.ID
		entry := JournalEntry{
			EntryDate:       reversalDate,
			FinancialYearID: original.FinancialYearID,
			ReferenceType:   ReferenceTypeReversal,
			ReferenceID:     uuid.New(),
			Memo:            memo,
			Status:          EntryStatusPosted,
			ReversalOfID:    &originalID,
			PostedBy:        in.ActorID,
		}
		created, err = s.writeEntry(ctx, tx, entry, items, deltas)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}

	observability.JournalReversals.Inc()
	s.logger.Info("journal entry reversed",
		slog.Int64("original_id", in.EntryID),
		slog.Int64("reversal_id", created.ID))
	return created, nil
}

func checkPostable(year fiscalyears.FinancialYear, date time.Time) error {
	if year.Status != fiscalyears.YearStatusActive {
		return fmt.Errorf("%w: financial year %q", shared.ErrPeriodClosed, year.YearName)
	}
	if !year.Contains(date) {
		return fmt.Errorf("%w: %s not within %s..%s", shared.ErrDateOutOfPeriod,
			date.Format("2006-01-02"), year.StartDate.Format("2006-01-02"), year.EndDate.Format("2006-01-02"))
	}
	return nil
}

type balanceDelta struct {
	accountID int64
	amount    decimal.Decimal
}

// lockAndComputeDeltas locks every referenced account and derives the
// per-account signed balance change from the account type. Inactive
// accounts reject the whole posting.
func (s *Service) lockAndComputeDeltas(ctx context.Context, tx TxRepository, items []JournalItem) ([]balanceDelta, error) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.AccountID)
	}
	locked, err := tx.LockAccounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	byAccount := make(map[int64]decimal.Decimal, len(locked))
	order := make([]int64, 0, len(locked))
	for _, item := range items {
		account, ok := locked[item.AccountID]
		if !ok {
			return nil, fmt.Errorf("%w: id %d", shared.ErrAccountNotFound, item.AccountID)
		}
		if !account.IsActive {
			return nil, fmt.Errorf("%w: account %s", shared.ErrInactiveAccount, account.Code)
		}
		delta := account.Type.Delta(item.Debit, item.Credit)
		if _, seen := byAccount[item.AccountID]; !seen {
			order = append(order, item.AccountID)
		}
		byAccount[item.AccountID] = byAccount[item.AccountID].Add(delta)
	}

	deltas := make([]balanceDelta, 0, len(order))
	for _, id := range order {
		deltas = append(deltas, balanceDelta{accountID: id, amount: byAccount[id]})
	}
	return deltas, nil
}

func (s *Service) writeEntry(ctx context.Context, tx TxRepository, entry JournalEntry, items []JournalItem, deltas []balanceDelta) (JournalEntry, error) {
	created, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.InsertItems(ctx, created.ID, items); err != nil {
		return JournalEntry{}, err
	}
	created.Items = items
	if err := tx.LinkSource(ctx, entry.ReferenceType, entry.ReferenceID, created.ID); err != nil {
		return JournalEntry{}, err
	}
	if err := applyDeltas(ctx, tx, deltas); err != nil {
		return JournalEntry{}, err
	}
	return created, nil
}

func applyDeltas(ctx context.Context, tx TxRepository, deltas []balanceDelta) error {
	for _, d := range deltas {
		if d.amount.IsZero() {
			continue
		}
		if err := tx.ApplyBalanceDelta(ctx, d.accountID, d.amount.String()); err != nil {
			return err
		}
	}
	return nil
}

func buildItems(inputs []ItemInput) []JournalItem {
	items := make([]JournalItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, JournalItem{
			AccountID:   in.AccountID,
			Debit:       in.Debit,
			Credit:      in.Credit,
			Description: in.Description,
		})
	}
	return items
}

func itemTotals(items []JournalItem) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, item := range items {
		debit = debit.Add(item.Debit)
		credit = credit.Add(item.Credit)
	}
	return debit, credit
}
