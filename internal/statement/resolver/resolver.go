// Package resolver maps draft account and category names onto existing budget entities.
// Resolution is pure: the same payload and snapshot always give the same result.
package resolver

import (
	"fmt"
	"strings"

	"github.com/family-finance-ledger/internal/domain/account"
	"github.com/family-finance-ledger/internal/domain/category"
	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	warnAccountNotFound   = "Счет не найден: %s"
	warnToAccountNotFound = "Счет назначения не найден: %s"
	warnCategoryNotFound  = "Категория не найдена: %s"
)

type orderedSet[T any] struct {
	order []string
	items map[string]T
}

func newOrderedSet[T any]() *orderedSet[T] {
	return &orderedSet[T]{items: map[string]T{}}
}

func (s *orderedSet[T]) add(key string, item T) bool {
	if _, ok := s.items[key]; ok {
		return false
	}
	s.items[key] = item
	s.order = append(s.order, key)
	return true
}

func (s *orderedSet[T]) list() []T {
	out := make([]T, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.items[key])
	}
	return out
}

// Resolve annotates a validated payload with resolved ids and the entities apply must create
func Resolve(payload *draft.ValidatedPayload, accounts []*account.Account, categories []*category.Category) *draft.ResolvedPayload {
	accountIDs := make(map[string]uuid.UUID, len(accounts))
	for _, a := range accounts {
		accountIDs[shared.NameKey(a.Name)] = a.ID
	}
	categoryIDs := make(map[string]uuid.UUID, len(categories))
	for _, c := range categories {
		categoryIDs[shared.NameKey(c.Name)] = c.ID
	}

	missingAccounts := newOrderedSet[draft.MissingAccount]()
	missingCategories := newOrderedSet[draft.MissingCategory]()
	warnings := newOrderedSet[string]()
	warn := func(format, name string) {
		msg := fmt.Sprintf(format, name)
		warnings.add(msg, msg)
	}
	for _, w := range payload.Warnings {
		warnings.add(w, w)
	}

	for _, proposal := range payload.AccountsToCreate {
		key := shared.NameKey(proposal.Name)
		if key == "" {
			continue
		}
		if _, exists := accountIDs[key]; exists {
			continue
		}
		missingAccounts.add(key, draft.MissingAccount{
			Name:     strings.TrimSpace(proposal.Name),
			Kind:     account.ClampKind(proposal.Kind),
			Currency: strings.ToUpper(strings.TrimSpace(proposal.Currency)),
		})
	}

	for _, proposal := range payload.CategoriesToCreate {
		key := shared.NameKey(proposal.Name)
		if key == "" {
			continue
		}
		if _, exists := categoryIDs[key]; exists {
			continue
		}
		missingCategories.add(key, draft.MissingCategory{
			Name:   strings.TrimSpace(proposal.Name),
			Type:   categoryTypeFor(payload.Operations, key),
			Parent: strings.TrimSpace(proposal.Parent),
		})
	}

	normalized := make([]draft.ResolvedOperation, 0, len(payload.Operations))
	for i, op := range payload.Operations {
		resolved := draft.ResolvedOperation{
			Index:        i,
			Date:         strings.TrimSpace(op.Date),
			Type:         op.Type,
			Amount:       op.Amount,
			Currency:     op.Currency,
			AccountName:  strings.TrimSpace(op.Account),
			Counterparty: strings.TrimSpace(op.Counterparty),
			Note:         strings.TrimSpace(op.Description),
			Debt:         op.Debt,
		}

		if key := shared.NameKey(op.Account); key != "" {
			if id, ok := accountIDs[key]; ok {
				resolved.AccountID = &id
			} else {
				missingAccounts.add(key, draft.MissingAccount{Name: resolved.AccountName, Kind: account.KindBank})
				warn(warnAccountNotFound, resolved.AccountName)
			}
		}

		if op.Type == draft.OperationTransfer {
			resolveTransferTarget(&resolved, op, accountIDs, missingAccounts, warn)
		} else if key := shared.NameKey(op.Category); key != "" {
			resolved.CategoryName = strings.TrimSpace(op.Category)
			if id, ok := categoryIDs[key]; ok {
				resolved.CategoryID = &id
			} else {
				typ := draft.CategoryExpense
				if op.Type == draft.OperationIncome {
					typ = draft.CategoryIncome
				}
				missingCategories.add(key, draft.MissingCategory{Name: resolved.CategoryName, Type: typ})
				warn(warnCategoryNotFound, resolved.CategoryName)
			}
		}

		normalized = append(normalized, resolved)
	}

	return &draft.ResolvedPayload{
		ValidatedPayload:       withWarnings(payload, warnings.list()),
		MissingAccounts:        missingAccounts.list(),
		MissingCategories:      missingCategories.list(),
		NormalizedTransactions: normalized,
	}
}

// resolveTransferTarget picks the destination account of a transfer. An explicit to_account
// may be created on apply; a counterparty is only used when it names an existing account.
func resolveTransferTarget(
	resolved *draft.ResolvedOperation,
	op draft.Operation,
	accountIDs map[string]uuid.UUID,
	missingAccounts *orderedSet[draft.MissingAccount],
	warn func(format, name string),
) {
	if key := shared.NameKey(op.ToAccount); key != "" {
		resolved.ToAccountName = strings.TrimSpace(op.ToAccount)
		if id, ok := accountIDs[key]; ok {
			resolved.ToAccountID = &id
			return
		}
		missingAccounts.add(key, draft.MissingAccount{Name: resolved.ToAccountName, Kind: account.KindBank})
		warn(warnToAccountNotFound, resolved.ToAccountName)
		return
	}

	if key := shared.NameKey(op.Counterparty); key != "" {
		if id, ok := accountIDs[key]; ok {
			resolved.ToAccountName = strings.TrimSpace(op.Counterparty)
			resolved.ToAccountID = &id
		}
	}
}

// categoryTypeFor types a proposed category by the first operation that uses it
func categoryTypeFor(operations []draft.Operation, key string) draft.CategoryType {
	for _, op := range operations {
		if shared.NameKey(op.Category) != key {
			continue
		}
		if op.Type == draft.OperationIncome {
			return draft.CategoryIncome
		}
		return draft.CategoryExpense
	}
	return draft.CategoryExpense
}

func withWarnings(payload *draft.ValidatedPayload, warnings []string) draft.ValidatedPayload {
	out := *payload
	out.Warnings = warnings
	return out
}
