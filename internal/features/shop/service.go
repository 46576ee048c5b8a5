// Package shop — service.go содержит бизнес-логику магазина.
// Валидация предметов, покупки и фоновое снятие просроченных предметов.
package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"svetogorskrp.ru/discord-bot/internal/common"
	"svetogorskrp.ru/discord-bot/internal/features/economy"
	"svetogorskrp.ru/discord-bot/internal/platform"
)

// Store описывает операции хранилища, которые нужны сервису магазина.
// Реализуется Repository; в тестах подменяется in-memory хранилищем.
type Store interface {
	CreateItem(ctx context.Context, item *Item) (int64, error)
	GetItem(ctx context.Context, guildID, itemID int64) (*Item, error)
	DeleteItem(ctx context.Context, guildID, itemID int64) error
	ListItems(ctx context.Context, guildID int64) ([]*Item, error)
	Purchase(ctx context.Context, guildID, userID int64, item *Item) (int64, error)
	PurchaseCount(ctx context.Context, guildID, userID, itemID int64) (int, error)
	Inventory(ctx context.Context, guildID, userID int64) ([]*InventoryItem, error)
	HasInventoryItem(ctx context.Context, guildID, userID, itemID int64) (bool, error)
	RemoveInventoryItem(ctx context.Context, guildID, userID, itemID int64) error
	ExpiredEntries(ctx context.Context, now time.Time) ([]*InventoryEntry, error)
	RemoveExpiredEntry(ctx context.Context, entry *InventoryEntry, now time.Time) (bool, error)
}

// Service управляет магазином.
type Service struct {
	store          Store
	economyService *economy.Service   // Ленивое создание счетов перед покупкой
	directory      platform.Directory // Снятие ролей у просроченных предметов
	notifier       platform.Notifier  // Уведомления об истечении срока
}

// NewService создаёт сервис магазина.
func NewService(store Store, economyService *economy.Service, directory platform.Directory, notifier platform.Notifier) *Service {
	return &Service{
		store:          store,
		economyService: economyService,
		directory:      directory,
		notifier:       notifier,
	}
}

// AddItem добавляет предмет в каталог.
// Проверки:
//   - Название не пустое
//   - Цена неотрицательная
//   - Тип известен; для role обязательна привязанная роль
//   - Лимит покупок не меньше -1
func (s *Service) AddItem(ctx context.Context, guildID int64, in ItemInput) (*Item, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, common.ErrEmptyItemName
	}
	if in.Price < 0 {
		return nil, common.ErrInvalidPrice
	}
	if !ValidItemType(in.ItemType) {
		return nil, common.ErrInvalidItemType
	}
	if in.ItemType == ItemTypeRole && in.RoleID == nil {
		return nil, common.ErrRoleRequired
	}
	if in.MaxPurchases < -1 {
		return nil, common.ErrInvalidPurchaseLimit
	}
	if in.Duration < 0 {
		in.Duration = 0
	}

	item := &Item{
		GuildID:      guildID,
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		Price:        in.Price,
		ItemType:     in.ItemType,
		RoleID:       in.RoleID,
		Duration:     in.Duration,
		MaxPurchases: in.MaxPurchases,
	}

	id, err := s.store.CreateItem(ctx, item)
	if err != nil {
		return nil, err
	}
	item.ItemID = id

	log.WithFields(log.Fields{
		"guild": guildID,
		"item":  id,
		"name":  item.Name,
		"price": item.Price,
	}).Info("Предмет добавлен в магазин")

	return item, nil
}

// RemoveItem удаляет предмет из каталога. Без каскада:
// уже купленные экземпляры остаются в инвентарях.
func (s *Service) RemoveItem(ctx context.Context, guildID, itemID int64) error {
	if err := s.store.DeleteItem(ctx, guildID, itemID); err != nil {
		return err
	}
	log.WithFields(log.Fields{"guild": guildID, "item": itemID}).Info("Предмет удалён из магазина")
	return nil
}

// GetItem возвращает предмет каталога.
func (s *Service) GetItem(ctx context.Context, guildID, itemID int64) (*Item, error) {
	return s.store.GetItem(ctx, guildID, itemID)
}

// ListItems возвращает каталог сервера по возрастанию цены.
func (s *Service) ListItems(ctx context.Context, guildID int64) ([]*Item, error) {
	return s.store.ListItems(ctx, guildID)
}

// Purchase покупает предмет из магазина.
// Порядок: предмет → лимит → баланс; списание, инвентарь, счётчик и журнал
// выполняются одной транзакцией БД внутри хранилища.
// Выдача роли — ответственность вызывающего слоя (по RoleID из результата),
// ядро не ходит в Discord до и во время денежной операции.
func (s *Service) Purchase(ctx context.Context, guildID, userID, itemID int64) (*PurchaseResult, error) {
	item, err := s.store.GetItem(ctx, guildID, itemID)
	if err != nil {
		return nil, err
	}

	// Счёт должен существовать до транзакции покупки
	if err := s.economyService.EnsureAccount(ctx, guildID, userID); err != nil {
		return nil, err
	}

	newBalance, err := s.store.Purchase(ctx, guildID, userID, item)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"guild":   guildID,
		"user":    userID,
		"item":    itemID,
		"price":   item.Price,
		"balance": newBalance,
	}).Info("Покупка в магазине")

	return &PurchaseResult{Item: item, NewBalance: newBalance}, nil
}

// PurchaseCount возвращает, сколько раз участник покупал предмет.
func (s *Service) PurchaseCount(ctx context.Context, guildID, userID, itemID int64) (int, error) {
	return s.store.PurchaseCount(ctx, guildID, userID, itemID)
}

// HasItem проверяет, держит ли участник предмет в инвентаре.
// Используется площадкой перед выставлением предмета на продажу.
func (s *Service) HasItem(ctx context.Context, guildID, userID, itemID int64) (bool, error) {
	return s.store.HasInventoryItem(ctx, guildID, userID, itemID)
}

// Inventory возвращает инвентарь участника.
func (s *Service) Inventory(ctx context.Context, guildID, userID int64) ([]*InventoryItem, error) {
	return s.store.Inventory(ctx, guildID, userID)
}

// ClearInventory полностью очищает инвентарь участника (админ-операция).
// У предметов-ролей предварительно снимает привязанную роль (best-effort).
func (s *Service) ClearInventory(ctx context.Context, guildID, userID int64) error {
	inventory, err := s.store.Inventory(ctx, guildID, userID)
	if err != nil {
		return err
	}

	for _, inv := range inventory {
		if inv.Item != nil && inv.Item.ItemType == ItemTypeRole && inv.Item.RoleID != nil {
			if err := s.directory.RevokeRole(ctx, guildID, userID, *inv.Item.RoleID); err != nil {
				log.WithError(err).WithFields(log.Fields{
					"guild": guildID, "user": userID, "role": *inv.Item.RoleID,
				}).Warn("Не удалось снять роль при очистке инвентаря")
			}
		}
		if err := s.store.RemoveInventoryItem(ctx, guildID, userID, inv.Entry.ItemID); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{"guild": guildID, "user": userID}).Info("Инвентарь очищен")
	return nil
}

// ExpireTick — один проход фоновой чистки просроченных предметов.
// Запускается кроном каждые SHOP_SWEEP_INTERVAL (по умолчанию 5 минут).
//
// Для каждой просроченной записи:
//  1. Удаляем запись С ПЕРЕПРОВЕРКОЙ срока: если участник успел купить
//     предмет заново, строка уже со свежим сроком и её не трогаем
//  2. Только если строка действительно удалена — снимаем роль (best-effort)
//     и уведомляем участника (best-effort)
//
// Ошибка на одной записи не прерывает обработку остальных.
func (s *Service) ExpireTick(ctx context.Context) error {
	now := time.Now().UTC()

	entries, err := s.store.ExpiredEntries(ctx, now)
	if err != nil {
		return fmt.Errorf("ошибка выборки просроченных предметов: %w", err)
	}

	for _, entry := range entries {
		s.expireEntry(ctx, entry, now)
	}

	if len(entries) > 0 {
		log.WithField("count", len(entries)).Debug("Проход чистки просроченных предметов завершён")
	}
	return nil
}

// expireEntry обрабатывает одну просроченную запись инвентаря.
func (s *Service) expireEntry(ctx context.Context, entry *InventoryEntry, now time.Time) {
	fields := log.Fields{"guild": entry.GuildID, "user": entry.UserID, "item": entry.ItemID}

	// Предмет мог быть удалён из каталога: запись всё равно снимаем,
	// но побочных эффектов (роль, текст уведомления) не будет
	item, err := s.store.GetItem(ctx, entry.GuildID, entry.ItemID)
	if err != nil && !errors.Is(err, common.ErrItemNotFound) {
		log.WithError(err).WithFields(fields).Error("Ошибка чтения предмета при чистке")
		return
	}

	removed, err := s.store.RemoveExpiredEntry(ctx, entry, now)
	if err != nil {
		log.WithError(err).WithFields(fields).Error("Ошибка удаления просроченной записи")
		return
	}
	if !removed {
		// Участник успел купить предмет заново — запись свежая
		return
	}

	if item != nil && item.ItemType == ItemTypeRole && item.RoleID != nil {
		held, err := s.directory.IsRoleHeld(ctx, entry.GuildID, entry.UserID, *item.RoleID)
		if err != nil {
			log.WithError(err).WithFields(fields).Warn("Не удалось проверить роль")
			held = true // пробуем снять всё равно
		}
		if held {
			if err := s.directory.RevokeRole(ctx, entry.GuildID, entry.UserID, *item.RoleID); err != nil {
				log.WithError(err).WithFields(fields).Warn("Не удалось снять роль у просроченного предмета")
			}
		}
	}

	if item != nil {
		msg := fmt.Sprintf("⏰ Срок действия предмета истёк: «%s» удалён из вашего инвентаря", item.Name)
		if err := s.notifier.NotifyUser(ctx, entry.UserID, msg); err != nil {
			log.WithError(err).WithFields(fields).Debug("Не удалось уведомить об истечении срока")
		}
	}

	log.WithFields(fields).Info("Просроченный предмет снят")
}
