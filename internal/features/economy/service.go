// Package economy — service.go содержит бизнес-логику экономики.
// Валидация, переводы, админ-операции, топы и история транзакций.
package economy

import (
	"context"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"svetogorskrp.ru/discord-bot/internal/common"
)

// Store описывает операции хранилища, которые нужны сервису экономики.
// Реализуется Repository; в тестах подменяется in-memory хранилищем.
type Store interface {
	EnsureAccount(ctx context.Context, guildID, userID int64) error
	GetAccount(ctx context.Context, guildID, userID int64) (*Account, error)
	GetBalance(ctx context.Context, guildID, userID int64) (int64, error)
	Transfer(ctx context.Context, guildID, fromUserID, toUserID, amount int64) error
	AdjustBalance(ctx context.Context, guildID, userID, delta int64, txType string) error
	SetBalance(ctx context.Context, guildID, userID, amount int64) error
	TopByBalance(ctx context.Context, guildID int64, limit int) ([]*Account, error)
	TopByLevel(ctx context.Context, guildID int64, limit int) ([]*Account, error)
	Work(ctx context.Context, guildID, userID, reward int64, cooldown time.Duration) (int64, error)
	Transactions(ctx context.Context, guildID, userID int64, limit int) ([]*Transaction, error)
	CleanupGuild(ctx context.Context, guildID int64) error
}

// WorkConfig — параметры команды work.
type WorkConfig struct {
	RewardMin int64         // Минимальная награда
	RewardMax int64         // Максимальная награда
	Cooldown  time.Duration // Перезарядка между работами
}

// Service управляет экономикой бота (монеты).
type Service struct {
	store Store
	work  WorkConfig
}

// NewService создаёт новый сервис экономики.
func NewService(store Store, work WorkConfig) *Service {
	return &Service{store: store, work: work}
}

// EnsureAccount создаёт счёт участника, если его ещё нет.
// Повторный вызов — no-op; стартовый баланс задаётся конфигурацией.
func (s *Service) EnsureAccount(ctx context.Context, guildID, userID int64) error {
	return s.store.EnsureAccount(ctx, guildID, userID)
}

// GetBalance возвращает текущий баланс участника.
// Счёт создаётся лениво при первом обращении.
func (s *Service) GetBalance(ctx context.Context, guildID, userID int64) (int64, error) {
	if err := s.store.EnsureAccount(ctx, guildID, userID); err != nil {
		return 0, err
	}
	return s.store.GetBalance(ctx, guildID, userID)
}

// GetAccount возвращает счёт участника целиком (баланс, опыт, уровень).
func (s *Service) GetAccount(ctx context.Context, guildID, userID int64) (*Account, error) {
	if err := s.store.EnsureAccount(ctx, guildID, userID); err != nil {
		return nil, err
	}
	return s.store.GetAccount(ctx, guildID, userID)
}

// Transfer переводит монеты от одного участника к другому.
// Выполняет все необходимые проверки:
//   - Нельзя переводить себе
//   - Сумма должна быть положительной
//   - У отправителя должно быть достаточно монет
func (s *Service) Transfer(ctx context.Context, guildID, fromUserID, toUserID, amount int64) error {
	if fromUserID == toUserID {
		return common.ErrSelfTransfer
	}
	if amount <= 0 {
		return common.ErrInvalidAmount
	}

	// Оба счёта должны существовать до перевода
	if err := s.store.EnsureAccount(ctx, guildID, fromUserID); err != nil {
		return err
	}
	if err := s.store.EnsureAccount(ctx, guildID, toUserID); err != nil {
		return err
	}

	// Выполняем перевод (проверка баланса внутри транзакции БД)
	if err := s.store.Transfer(ctx, guildID, fromUserID, toUserID, amount); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"guild":  guildID,
		"from":   fromUserID,
		"to":     toUserID,
		"amount": amount,
	}).Info("Перевод выполнен")

	return nil
}

// Work начисляет участнику случайную награду за работу.
// Размер награды равномерный в [RewardMin, RewardMax]; повторный вызов
// до истечения перезарядки возвращает *CooldownError
// (разворачивается в common.ErrWorkCooldown).
func (s *Service) Work(ctx context.Context, guildID, userID int64) (*WorkResult, error) {
	if err := s.store.EnsureAccount(ctx, guildID, userID); err != nil {
		return nil, err
	}

	// Если границы перепутаны в настройках, меняем местами, а не падаем
	lo, hi := s.work.RewardMin, s.work.RewardMax
	if lo > hi {
		lo, hi = hi, lo
	}
	reward := lo
	if hi > lo {
		reward += rand.Int63n(hi - lo + 1)
	}

	newBalance, err := s.store.Work(ctx, guildID, userID, reward, s.work.Cooldown)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"guild":  guildID,
		"user":   userID,
		"reward": reward,
	}).Info("Награда за работу начислена")

	return &WorkResult{Reward: reward, NewBalance: newBalance}, nil
}

// Deposit начисляет монеты участнику (админ-операция, эмиссия).
func (s *Service) Deposit(ctx context.Context, guildID, userID, amount int64) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	if err := s.store.EnsureAccount(ctx, guildID, userID); err != nil {
		return err
	}
	return s.store.AdjustBalance(ctx, guildID, userID, amount, TxTypeAdminGive)
}

// Withdraw изымает монеты у участника (админ-операция, сжигание).
// Проверки средств НЕТ: изъятие может увести баланс в минус —
// пользовательские траты при этом остаются под защитой проверки баланса.
func (s *Service) Withdraw(ctx context.Context, guildID, userID, amount int64) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	if err := s.store.EnsureAccount(ctx, guildID, userID); err != nil {
		return err
	}
	return s.store.AdjustBalance(ctx, guildID, userID, -amount, TxTypeAdminTake)
}

// SetBalance устанавливает точное значение баланса (админ-операция).
func (s *Service) SetBalance(ctx context.Context, guildID, userID, amount int64) error {
	if amount < 0 {
		return common.ErrInvalidAmount
	}
	if err := s.store.EnsureAccount(ctx, guildID, userID); err != nil {
		return err
	}
	return s.store.SetBalance(ctx, guildID, userID, amount)
}

// TopByBalance возвращает таблицу лидеров по балансу.
func (s *Service) TopByBalance(ctx context.Context, guildID int64, limit int) ([]*Account, error) {
	return s.store.TopByBalance(ctx, guildID, limit)
}

// TopByLevel возвращает таблицу лидеров по уровню.
func (s *Service) TopByLevel(ctx context.Context, guildID int64, limit int) ([]*Account, error) {
	return s.store.TopByLevel(ctx, guildID, limit)
}

// History возвращает последние транзакции участника.
func (s *Service) History(ctx context.Context, guildID, userID int64, limit int) ([]*Transaction, error) {
	return s.store.Transactions(ctx, guildID, userID, limit)
}

// CleanupGuild удаляет все данные сервера. Вызывается при удалении бота с сервера.
func (s *Service) CleanupGuild(ctx context.Context, guildID int64) error {
	if err := s.store.CleanupGuild(ctx, guildID); err != nil {
		return err
	}
	log.WithField("guild", guildID).Info("Данные сервера удалены")
	return nil
}
