/**
 * @description
 * Account and client models. An account carries two external identifiers: the bank's own
 * account number (fixed prefix plus six digits) and the 18-digit CLABE.
 */

package domain

import (
	"strings"
	"time"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountFrozen AccountStatus = "frozen"
	AccountClosed AccountStatus = "closed"
)

// Account is a single bank account. Balance never goes below zero.
type Account struct {
	ID            int64         `json:"id"`
	ClientID      int64         `json:"client_id"`
	AccountNumber string        `json:"account_number"`
	Clabe         string        `json:"clabe"`
	Balance       Money         `json:"balance"`
	Status        AccountStatus `json:"status"`
	OpenedAt      time.Time     `json:"aperture_date"`
}

// IsActive reports whether the account can send or receive transfers.
func (a Account) IsActive() bool {
	return a.Status == AccountActive
}

// AccountSummary is the admin dashboard row for an account.
type AccountSummary struct {
	Account
	ClientName string `json:"client_name"`
}

// Client is the person who owns accounts and logins.
type Client struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName joins first and last name.
func (c Client) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}
