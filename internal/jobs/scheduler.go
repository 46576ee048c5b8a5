// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: чистка просроченных предметов
// и подведение итогов розыгрышей.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"svetogorskrp.ru/discord-bot/internal/features/giveaway"
	"svetogorskrp.ru/discord-bot/internal/features/shop"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron            *cron.Cron
	shopService     *shop.Service
	giveawayService *giveaway.Service
	sweepInterval   time.Duration
	pollInterval    time.Duration
}

// NewScheduler создаёт планировщик задач.
// Интервалы задаются конфигурацией: SHOP_SWEEP_INTERVAL (по умолчанию 5m)
// и GIVEAWAY_POLL_INTERVAL (по умолчанию 30s).
func NewScheduler(shopService *shop.Service, giveawayService *giveaway.Service, sweepInterval, pollInterval time.Duration) *Scheduler {
	return &Scheduler{
		cron:            cron.New(),
		shopService:     shopService,
		giveawayService: giveawayService,
		sweepInterval:   sweepInterval,
		pollInterval:    pollInterval,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Чистка просроченных предметов инвентаря
	s.cron.AddFunc(fmt.Sprintf("@every %s", s.sweepInterval), func() {
		log.Debug("[CRON] Чистка просроченных предметов")
		if err := s.shopService.ExpireTick(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка чистки предметов")
		}
	})

	// Подведение итогов просроченных розыгрышей
	s.cron.AddFunc(fmt.Sprintf("@every %s", s.pollInterval), func() {
		log.Debug("[CRON] Проверка розыгрышей")
		if err := s.giveawayService.ResolveTick(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка подведения итогов")
		}
	})

	s.cron.Start()
	log.WithFields(log.Fields{
		"sweep": s.sweepInterval.String(),
		"poll":  s.pollInterval.String(),
	}).Info("Планировщик задач запущен")
}

// Stop останавливает планировщик и дожидается завершения текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
