// Package giveaway — service.go содержит бизнес-логику розыгрышей.
// Создание, участие и фоновое подведение итогов.
package giveaway

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"svetogorskrp.ru/discord-bot/internal/common"
	"svetogorskrp.ru/discord-bot/internal/platform"
)

// Store описывает операции хранилища, которые нужны сервису розыгрышей.
// Реализуется Repository; в тестах подменяется in-memory хранилищем.
type Store interface {
	CreateGiveaway(ctx context.Context, g *Giveaway) (int64, error)
	GetGiveaway(ctx context.Context, guildID, giveawayID int64) (*Giveaway, error)
	AddEntry(ctx context.Context, guildID, giveawayID, userID int64) error
	Entrants(ctx context.Context, guildID, giveawayID int64) ([]int64, error)
	ActiveGiveaways(ctx context.Context, guildID int64) ([]*Giveaway, error)
	DueGiveaways(ctx context.Context, now time.Time) ([]*Giveaway, error)
	ClaimEnded(ctx context.Context, guildID, giveawayID int64) (bool, []int64, error)
	SetEndAt(ctx context.Context, guildID, giveawayID int64, endAt time.Time) error
}

// Service управляет розыгрышами.
type Service struct {
	store    Store
	notifier platform.Notifier // Объявление итогов в канал розыгрыша
}

// NewService создаёт сервис розыгрышей.
func NewService(store Store, notifier platform.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Start создаёт розыгрыш.
// Проверки:
//   - Приз не пустой
//   - Количество победителей в пределах 1..50
//   - Длительность положительная
func (s *Service) Start(ctx context.Context, guildID, channelID, hostID int64, prize string, winnersCount int, duration time.Duration) (*Giveaway, error) {
	prize = strings.TrimSpace(prize)
	if prize == "" {
		return nil, common.ErrEmptyPrize
	}
	if winnersCount < MinWinners || winnersCount > MaxWinners {
		return nil, common.ErrInvalidWinnersCount
	}
	if duration <= 0 {
		return nil, common.ErrInvalidDuration
	}

	g := &Giveaway{
		GuildID:      guildID,
		ChannelID:    channelID,
		HostID:       hostID,
		Prize:        prize,
		WinnersCount: winnersCount,
		EndAt:        time.Now().UTC().Add(duration),
	}
	id, err := s.store.CreateGiveaway(ctx, g)
	if err != nil {
		return nil, err
	}
	g.GiveawayID = id

	log.WithFields(log.Fields{
		"guild":    guildID,
		"giveaway": id,
		"prize":    prize,
		"winners":  winnersCount,
		"end_at":   g.EndAt,
	}).Info("Розыгрыш создан")

	return g, nil
}

// Join регистрирует участие в розыгрыше.
// Повторное участие — no-op. Участвовать в завершённом или просроченном
// розыгрыше нельзя: между окончанием и проходом фонового обработчика
// новые участники не принимаются.
func (s *Service) Join(ctx context.Context, guildID, giveawayID, userID int64) error {
	g, err := s.store.GetGiveaway(ctx, guildID, giveawayID)
	if err != nil {
		return err
	}
	if g.Ended || time.Now().UTC().After(g.EndAt) {
		return common.ErrGiveawayClosed
	}
	return s.store.AddEntry(ctx, guildID, giveawayID, userID)
}

// ListActive возвращает незавершённые розыгрыши сервера.
func (s *Service) ListActive(ctx context.Context, guildID int64) ([]*Giveaway, error) {
	return s.store.ActiveGiveaways(ctx, guildID)
}

// EndEarly завершает розыгрыш досрочно: переносит окончание на текущий
// момент. Итоги подведёт ближайший проход фонового обработчика —
// так досрочное и штатное завершение идут одним путём.
func (s *Service) EndEarly(ctx context.Context, guildID, giveawayID int64) error {
	if err := s.store.SetEndAt(ctx, guildID, giveawayID, time.Now().UTC()); err != nil {
		return err
	}
	log.WithFields(log.Fields{"guild": guildID, "giveaway": giveawayID}).Info("Розыгрыш завершён досрочно")
	return nil
}

// Reroll повторно разыгрывает победителей уже завершённого розыгрыша.
// Состав участников не меняется, флаг ended остаётся TRUE.
func (s *Service) Reroll(ctx context.Context, guildID, giveawayID int64) (*ResolveResult, error) {
	g, err := s.store.GetGiveaway(ctx, guildID, giveawayID)
	if err != nil {
		return nil, err
	}
	if !g.Ended {
		return nil, common.ErrGiveawayNotEnded
	}

	entrants, err := s.store.Entrants(ctx, guildID, giveawayID)
	if err != nil {
		return nil, err
	}

	winners := drawWinners(entrants, g.WinnersCount)
	s.announce(ctx, g, winners, len(entrants), true)

	log.WithFields(log.Fields{
		"guild":    guildID,
		"giveaway": giveawayID,
		"winners":  len(winners),
	}).Info("Повторный розыгрыш победителей")

	return &ResolveResult{Giveaway: g, Winners: winners, Entrants: len(entrants)}, nil
}

// ResolveTick — один проход фонового подведения итогов.
// Запускается кроном каждые GIVEAWAY_POLL_INTERVAL (по умолчанию 30 секунд).
//
// Для каждого просроченного розыгрыша:
//  1. Атомарно забираем его условным UPDATE ended FALSE → TRUE
//     вместе со снимком участников (ровно один проход подведёт итоги)
//  2. Разыгрываем победителей без повторов
//  3. Объявляем итоги в канал (best-effort: неудачная отправка
//     не отменяет завершение)
//
// Ошибка на одном розыгрыше не прерывает обработку остальных.
func (s *Service) ResolveTick(ctx context.Context) error {
	due, err := s.store.DueGiveaways(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ошибка выборки просроченных розыгрышей: %w", err)
	}

	for _, g := range due {
		s.resolveOne(ctx, g)
	}
	return nil
}

// resolveOne подводит итоги одного розыгрыша.
func (s *Service) resolveOne(ctx context.Context, g *Giveaway) {
	fields := log.Fields{"guild": g.GuildID, "giveaway": g.GiveawayID}

	claimed, entrants, err := s.store.ClaimEnded(ctx, g.GuildID, g.GiveawayID)
	if err != nil {
		log.WithError(err).WithFields(fields).Error("Ошибка завершения розыгрыша")
		return
	}
	if !claimed {
		// Итоги уже подвёл параллельный проход
		return
	}

	winners := drawWinners(entrants, g.WinnersCount)
	s.announce(ctx, g, winners, len(entrants), false)

	log.WithFields(log.Fields{
		"guild":    g.GuildID,
		"giveaway": g.GiveawayID,
		"entrants": len(entrants),
		"winners":  len(winners),
	}).Info("Итоги розыгрыша подведены")
}

// announce публикует итоги в канал розыгрыша (best-effort).
func (s *Service) announce(ctx context.Context, g *Giveaway, winners []int64, entrants int, reroll bool) {
	var b strings.Builder
	if reroll {
		b.WriteString(fmt.Sprintf("🔁 Повторный розыгрыш приза «%s»!\n", g.Prize))
	} else {
		b.WriteString(fmt.Sprintf("🎉 Розыгрыш приза «%s» завершён!\n", g.Prize))
	}
	if len(winners) == 0 {
		b.WriteString("Участников не было — победителей нет.")
	} else {
		b.WriteString("Победители: ")
		for i, w := range winners {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("<@%d>", w))
		}
		b.WriteString(fmt.Sprintf("\nВсего участников: %d", entrants))
	}

	if err := s.notifier.PostToChannel(ctx, g.ChannelID, b.String()); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"guild": g.GuildID, "giveaway": g.GiveawayID, "channel": g.ChannelID,
		}).Warn("Не удалось объявить итоги розыгрыша")
	}
}

// drawWinners выбирает до count различных победителей из entrants.
// Если участников меньше, чем призовых мест, побеждают все.
func drawWinners(entrants []int64, count int) []int64 {
	if len(entrants) == 0 || count <= 0 {
		return nil
	}

	pool := make([]int64, len(entrants))
	copy(pool, entrants)
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	if count > len(pool) {
		count = len(pool)
	}
	return pool[:count]
}
