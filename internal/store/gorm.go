package store

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"main/internal/model"
	"main/internal/model/enum"
)

// GormStore implements Store on PostgreSQL through gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the backing tables.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(
		&model.Account{},
		&model.Strategy{},
		&model.Port{},
		&model.Leg{},
		&model.Alert{},
		&model.Order{},
		&model.Log{},
	)
}

func (s *GormStore) Account(ctx context.Context, id string) (model.Account, error) {
	var account model.Account
	err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error
	return account, errors.Wrap(err, "query account")
}

func (s *GormStore) Strategy(ctx context.Context, id uint64) (model.Strategy, error) {
	var strategy model.Strategy
	err := s.db.WithContext(ctx).First(&strategy, id).Error
	return strategy, errors.Wrap(err, "query strategy")
}

func (s *GormStore) Strategies(ctx context.Context) ([]model.Strategy, error) {
	var strategies []model.Strategy
	err := s.db.WithContext(ctx).Where("enabled").Find(&strategies).Error
	return strategies, errors.Wrap(err, "query strategies")
}

func (s *GormStore) Ports(ctx context.Context, strategyID uint64) ([]model.Port, error) {
	var ports []model.Port
	err := s.db.WithContext(ctx).Where("strategy_id = ?", strategyID).Order("id").Find(&ports).Error
	return ports, errors.Wrap(err, "query ports")
}

func (s *GormStore) Legs(ctx context.Context, portID uint64) ([]model.Leg, error) {
	var legs []model.Leg
	err := s.db.WithContext(ctx).Where("port_id = ?", portID).Order("id").Find(&legs).Error
	return legs, errors.Wrap(err, "query legs")
}

func (s *GormStore) PendingAlerts(ctx context.Context, portID uint64) ([]model.Alert, error) {
	var alerts []model.Alert
	err := s.db.WithContext(ctx).
		Where("port_id = ? AND NOT consumed", portID).
		Order("created_at").
		Find(&alerts).Error
	return alerts, errors.Wrap(err, "query pending alerts")
}

func (s *GormStore) UpdateAccount(ctx context.Context, id string, field string, value any) error {
	err := s.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Update(field, value).Error
	return errors.Wrap(err, "update account")
}

func (s *GormStore) UpdateStrategy(ctx context.Context, id uint64, field string, value any) error {
	err := s.db.WithContext(ctx).Model(&model.Strategy{}).Where("id = ?", id).Update(field, value).Error
	return errors.Wrap(err, "update strategy")
}

func (s *GormStore) UpdatePort(ctx context.Context, id uint64, field string, value any) error {
	err := s.db.WithContext(ctx).Model(&model.Port{}).Where("id = ?", id).Update(field, value).Error
	return errors.Wrap(err, "update port")
}

func (s *GormStore) UpdateLeg(ctx context.Context, id uint64, field string, value any) error {
	err := s.db.WithContext(ctx).Model(&model.Leg{}).Where("id = ?", id).Update(field, value).Error
	return errors.Wrap(err, "update leg")
}

func (s *GormStore) SaveLeg(ctx context.Context, leg *model.Leg) error {
	return errors.Wrap(s.db.WithContext(ctx).Save(leg).Error, "save leg")
}

func (s *GormStore) SaveAccount(ctx context.Context, account *model.Account) error {
	return errors.Wrap(s.db.WithContext(ctx).Save(account).Error, "save account")
}

func (s *GormStore) ClonePort(ctx context.Context, source model.Port, name string) (model.Port, error) {
	clone := source
	clone.ID = 0
	clone.Name = name
	clone.CombinedExitDone = false
	clone.IsReExecutedPort = true
	clone.ExecuteRequested = false

	var legs []model.Leg
	if err := s.db.WithContext(ctx).Where("port_id = ?", source.ID).Find(&legs).Error; err != nil {
		return model.Port{}, errors.Wrap(err, "query source legs")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&clone).Error; err != nil {
			return errors.Wrap(err, "insert port clone")
		}
		for i := range legs {
			leg := legs[i]
			leg.ID = 0
			leg.PortID = clone.ID
			leg.BookedPnl = 0
			leg.ResetPosition()
			if err := tx.Create(&leg).Error; err != nil {
				return errors.Wrap(err, "insert leg clone")
			}
		}
		return nil
	})
	if err != nil {
		return model.Port{}, err
	}
	return clone, nil
}

func (s *GormStore) MarkAlertConsumed(ctx context.Context, alertID uint64) error {
	err := s.db.WithContext(ctx).Model(&model.Alert{}).Where("id = ?", alertID).Update("consumed", true).Error
	return errors.Wrap(err, "mark alert consumed")
}

func (s *GormStore) AddAlert(ctx context.Context, alert *model.Alert) error {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(alert).Error, "insert alert")
}

func (s *GormStore) AddOrder(ctx context.Context, order *model.Order) error {
	if order.PlacedAt.IsZero() {
		order.PlacedAt = time.Now()
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(order).Error, "insert order")
}

func (s *GormStore) AddLog(ctx context.Context, at time.Time, text string, level enum.LogLevel, portID uint64) error {
	row := model.Log{PortID: portID, Level: level, Text: text, At: at}
	return errors.Wrap(s.db.WithContext(ctx).Create(&row).Error, "insert log")
}
