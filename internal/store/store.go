// Package store is the persistence collaborator. It exposes typed
// records, single-field updates and the port re-execution clone. No
// transactional isolation is assumed across separate calls and
// callers must not treat consecutive updates as atomic together.
package store

import (
	"context"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

// Store is the persistence surface consumed by the trading core.
type Store interface {
	Account(ctx context.Context, id string) (model.Account, error)
	Strategy(ctx context.Context, id uint64) (model.Strategy, error)
	Strategies(ctx context.Context) ([]model.Strategy, error)
	Ports(ctx context.Context, strategyID uint64) ([]model.Port, error)
	Legs(ctx context.Context, portID uint64) ([]model.Leg, error)
	PendingAlerts(ctx context.Context, portID uint64) ([]model.Alert, error)

	UpdateAccount(ctx context.Context, id string, field string, value any) error
	UpdateStrategy(ctx context.Context, id uint64, field string, value any) error
	UpdatePort(ctx context.Context, id uint64, field string, value any) error
	UpdateLeg(ctx context.Context, id uint64, field string, value any) error

	// SaveLeg persists the whole row in one statement. It is a writer
	// convenience, not a transaction with anything else.
	SaveLeg(ctx context.Context, leg *model.Leg) error
	SaveAccount(ctx context.Context, account *model.Account) error

	// ClonePort inserts a sibling port under the given name with fresh
	// copies of the source port's legs reset to no_position. The
	// source rows are not touched.
	ClonePort(ctx context.Context, source model.Port, name string) (model.Port, error)

	MarkAlertConsumed(ctx context.Context, alertID uint64) error
	AddAlert(ctx context.Context, alert *model.Alert) error
	AddOrder(ctx context.Context, order *model.Order) error
	AddLog(ctx context.Context, at time.Time, text string, level enum.LogLevel, portID uint64) error
}
