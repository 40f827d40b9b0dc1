package app

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/upbank/core-service/internal/domain"
	"github.com/upbank/core-service/internal/store"
)

var clabePattern = regexp.MustCompile(`^[0-9]{18}$`)

// IdentityResolver turns the destination typed by a sender into an account.
type IdentityResolver struct {
	accounts             store.AccountStore
	accountNumberPattern *regexp.Regexp
}

// NewIdentityResolver recognises account numbers made of prefix followed by six digits.
func NewIdentityResolver(accounts store.AccountStore, accountNumberPrefix string) *IdentityResolver {
	prefix := strings.TrimSpace(accountNumberPrefix)
	if prefix == "" {
		prefix = "ACC"
	}
	return &IdentityResolver{
		accounts:             accounts,
		accountNumberPattern: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `[0-9]{6}$`),
	}
}

// Classify is purely syntactic. Eighteen digits is a CLABE, prefix plus six digits is an
// account number and everything else is invalid.
func (r *IdentityResolver) Classify(raw string) domain.Identifier {
	value := strings.TrimSpace(raw)
	switch {
	case clabePattern.MatchString(value):
		return domain.Identifier{Kind: domain.IdentifierNationalID, Value: value}
	case r.accountNumberPattern.MatchString(value):
		return domain.Identifier{Kind: domain.IdentifierAccountNumber, Value: value}
	default:
		return domain.Identifier{Kind: domain.IdentifierInvalid, Value: value}
	}
}

// Resolve runs a single lookup keyed by the identifier's column.
func (r *IdentityResolver) Resolve(ctx context.Context, id domain.Identifier) (*domain.Account, error) {
	var (
		account *domain.Account
		err     error
	)
	switch id.Kind {
	case domain.IdentifierNationalID:
		account, err = r.accounts.FindAccountByClabe(ctx, id.Value)
	case domain.IdentifierAccountNumber:
		account, err = r.accounts.FindAccountByNumber(ctx, id.Value)
	default:
		return nil, domain.ErrDestinationNotFound
	}
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, domain.ErrDestinationNotFound
		}
		return nil, domain.ErrStoreUnavailable.Wrap(err)
	}
	return account, nil
}
