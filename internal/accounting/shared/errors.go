// Package shared holds the accounting error taxonomy used across accounts
// and journals.
package shared

import "errors"

var (
	// ErrTooFewLines rejects entries with fewer than two lines.
	ErrTooFewLines = errors.New("accounting: journal entry requires at least two lines")
	// ErrNonPositiveAmount rejects zero or negative line amounts.
	ErrNonPositiveAmount = errors.New("accounting: line amount must be positive")
	// ErrUnbalanced rejects entries whose debit and credit totals differ
	// beyond the rounding tolerance.
	ErrUnbalanced = errors.New("accounting: debit and credit totals do not balance")
	// ErrAlreadyPosted rejects posting a non-draft entry.
	ErrAlreadyPosted = errors.New("accounting: journal entry already posted")
	// ErrAlreadyVoid rejects posting a voided entry.
	ErrAlreadyVoid = errors.New("accounting: journal entry is void")
	// ErrInvalidVoidTarget rejects voiding anything but a posted entry.
	ErrInvalidVoidTarget = errors.New("accounting: only posted entries can be voided")
	// ErrJournalNotFound indicates a missing journal entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrAccountInactive rejects postings against deactivated accounts.
	ErrAccountInactive = errors.New("accounting: account is inactive")
	// ErrHasChildren blocks deleting an account that other accounts reference
	// as parent.
	ErrHasChildren = errors.New("accounting: account has child accounts")
	// ErrHasJournalLines blocks deleting an account with posting history.
	ErrHasJournalLines = errors.New("accounting: account has journal lines")
	// ErrDuplicateCode indicates the account code is taken.
	ErrDuplicateCode = errors.New("accounting: account code already exists")
)
