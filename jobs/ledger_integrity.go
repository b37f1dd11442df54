package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/accounts"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// NewLedgerIntegrityHandler returns a handler that recomputes every account
// balance from its posted journal lines and logs any drift from the stored
// running balance. Drift indicates a bug or manual data surgery; the job
// never repairs, only reports.
func NewLedgerIntegrityHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		rows, err := pool.Query(ctx, `
SELECT a.id, a.code, a.type, a.balance,
       COALESCE(SUM(CASE WHEN l.side = 'DEBIT' THEN l.amount ELSE 0 END), 0) AS debits,
       COALESCE(SUM(CASE WHEN l.side = 'CREDIT' THEN l.amount ELSE 0 END), 0) AS credits
FROM accounts a
LEFT JOIN journal_lines l ON l.account_id = a.id
LEFT JOIN journal_entries e ON e.id = l.entry_id AND e.status = 'POSTED'
WHERE e.id IS NOT NULL OR l.id IS NULL
GROUP BY a.id, a.code, a.type, a.balance`)
		if err != nil {
			return err
		}
		defer rows.Close()

		drifted := 0
		for rows.Next() {
			var (
				id              int64
				code            string
				typ             accounts.AccountType
				stored          decimal.Decimal
				debits, credits decimal.Decimal
			)
			if err := rows.Scan(&id, &code, &typ, &stored, &debits, &credits); err != nil {
				return err
			}
			account := accounts.Account{ID: id, Type: typ}
			expected := account.SignedEffect(debits, credits)
			if !expected.Equal(stored) {
				drifted++
				logger.Error("ledger balance drift",
					slog.Int64("account_id", id),
					slog.String("code", code),
					slog.String("stored", shared.FormatAmount(stored)),
					slog.String("computed", shared.FormatAmount(expected)),
				)
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if drifted == 0 {
			logger.Info("ledger integrity check passed")
		}
		return nil
	}
}
