// Package casino — service.go координирует спин слотов от начала до конца.
package casino

import (
	"context"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"svetogorskrp.ru/discord-bot/internal/common"
	"svetogorskrp.ru/discord-bot/internal/features/economy"
)

// Store описывает операции хранилища, которые нужны сервису казино.
// Реализуется Repository; в тестах подменяется in-memory хранилищем.
type Store interface {
	Settle(ctx context.Context, guildID, userID, bet, payout int64) (int64, error)
	GetStats(ctx context.Context, guildID, userID int64) (*Stats, error)
}

// Service управляет казино.
type Service struct {
	store          Store
	economyService *economy.Service
	minBet         int64
	maxBet         int64
}

// NewService создаёт сервис казино.
func NewService(store Store, economyService *economy.Service, minBet, maxBet int64) *Service {
	return &Service{
		store:          store,
		economyService: economyService,
		minBet:         minBet,
		maxBet:         maxBet,
	}
}

// Spin выполняет полный цикл спина: валидация ставки, вращение барабанов
// и атомарный расчёт (списание ставки, выплата, статистика).
func (s *Service) Spin(ctx context.Context, guildID, userID, bet int64) (*SpinResult, error) {
	if bet < s.minBet || bet > s.maxBet {
		return nil, common.ErrInvalidBet
	}
	if err := s.economyService.EnsureAccount(ctx, guildID, userID); err != nil {
		return nil, err
	}

	var reels [Reels]string
	for i := range reels {
		reels[i] = Symbols[rand.Intn(len(Symbols))]
	}
	payout := payoutFor(reels, bet)

	newBalance, err := s.store.Settle(ctx, guildID, userID, bet, payout)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"guild":  guildID,
		"user":   userID,
		"bet":    bet,
		"payout": payout,
	}).Info("Спин рассчитан")

	return &SpinResult{
		Reels:      reels,
		Bet:        bet,
		Payout:     payout,
		NewBalance: newBalance,
		IsWin:      payout > 0,
	}, nil
}

// Stats возвращает статистику казино участника.
func (s *Service) Stats(ctx context.Context, guildID, userID int64) (*Stats, error) {
	return s.store.GetStats(ctx, guildID, userID)
}

// payoutFor считает выплату за комбинацию.
// Три одинаковых символа платят ставку ×5, два одинаковых ПОДРЯД
// (первый-второй или второй-третий) — ставку ×2.
// Пара по краям (первый-третий) не платит.
func payoutFor(reels [Reels]string, bet int64) int64 {
	switch {
	case reels[0] == reels[1] && reels[1] == reels[2]:
		return bet * TripleMultiplier
	case reels[0] == reels[1] || reels[1] == reels[2]:
		return bet * PairMultiplier
	}
	return 0
}
