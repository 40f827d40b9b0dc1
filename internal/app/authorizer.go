/**
 * @description
 * The transfer authorizer validates a transfer request against a snapshot of the source
 * account and the resolved destination. It is pure: it reads nothing and writes nothing, so the
 * same request always yields the same decision. Checks run in a fixed order and the first
 * failing check decides the rejection shown to the user.
 */

package app

import (
	"errors"
	"strings"

	"github.com/upbank/core-service/internal/domain"
)

// ConceptPolicy decides what happens when a transfer has no concept.
type ConceptPolicy string

const (
	// ConceptAdvisory lets the transfer through with a MISSING_CONCEPT warning.
	ConceptAdvisory ConceptPolicy = "advisory"
	// ConceptRequired rejects the transfer.
	ConceptRequired ConceptPolicy = "required"
)

// ParseConceptPolicy falls back to advisory for unknown values.
func ParseConceptPolicy(value string) ConceptPolicy {
	if ConceptPolicy(strings.ToLower(strings.TrimSpace(value))) == ConceptRequired {
		return ConceptRequired
	}
	return ConceptAdvisory
}

// AuthorizationRequest is everything the authorizer looks at. Destination is nil when the
// destination text could not be resolved to an account.
type AuthorizationRequest struct {
	Source          domain.Account
	AmountText      string
	Concept         string
	DestinationText string
	Destination     *domain.Account
}

// Decision is the outcome of a successful authorization.
type Decision struct {
	Amount   domain.Money
	Warnings []domain.Reason
}

type Authorizer struct {
	conceptPolicy ConceptPolicy
}

func NewAuthorizer(policy ConceptPolicy) Authorizer {
	if policy != ConceptRequired {
		policy = ConceptAdvisory
	}
	return Authorizer{conceptPolicy: policy}
}

func (a Authorizer) ConceptPolicy() ConceptPolicy {
	return a.conceptPolicy
}

// Authorize returns the first rejection in check order, or the parsed amount.
func (a Authorizer) Authorize(req AuthorizationRequest) (Decision, error) {
	var decision Decision

	// 1. amount present
	if strings.TrimSpace(req.AmountText) == "" {
		return Decision{}, domain.ErrMissingAmount
	}

	// 2. amount is a positive fixed-point number
	amount, err := domain.ParseMoney(req.AmountText)
	if err != nil {
		if errors.Is(err, domain.ErrAmountEmpty) {
			return Decision{}, domain.ErrMissingAmount
		}
		return Decision{}, domain.ErrInvalidAmount.Wrap(err)
	}
	if amount <= 0 {
		return Decision{}, domain.ErrInvalidAmount
	}
	decision.Amount = amount

	// 3. funds
	if amount > req.Source.Balance {
		return Decision{}, domain.ErrInsufficientFunds
	}

	// 4. concept
	if strings.TrimSpace(req.Concept) == "" {
		if a.conceptPolicy == ConceptRequired {
			return Decision{}, domain.ErrMissingConcept
		}
		decision.Warnings = append(decision.Warnings, domain.ReasonMissingConcept)
	}

	// 5. destination present
	if strings.TrimSpace(req.DestinationText) == "" {
		return Decision{}, domain.ErrMissingDestination
	}

	// 6. destination resolved
	if req.Destination == nil {
		return Decision{}, domain.ErrDestinationNotFound
	}

	// 7. not the sender's own account
	if req.Destination.AccountNumber == req.Source.AccountNumber || req.Destination.ID == req.Source.ID {
		return Decision{}, domain.ErrSelfTransferNotAllowed
	}

	return decision, nil
}
