// Package market — service.go содержит бизнес-логику торговой площадки.
// Выставление, покупка и снятие предложений.
package market

import (
	"context"

	log "github.com/sirupsen/logrus"

	"svetogorskrp.ru/discord-bot/internal/common"
	"svetogorskrp.ru/discord-bot/internal/features/economy"
	"svetogorskrp.ru/discord-bot/internal/features/shop"
	"svetogorskrp.ru/discord-bot/internal/platform"
)

// Store описывает операции хранилища, которые нужны сервису площадки.
// Реализуется Repository; в тестах подменяется in-memory хранилищем.
type Store interface {
	CreateListing(ctx context.Context, l *Listing) (int64, error)
	GetListing(ctx context.Context, guildID, listingID int64) (*Listing, error)
	Buy(ctx context.Context, guildID, buyerID, listingID int64) (*BuyResult, error)
	CancelListing(ctx context.Context, guildID, listingID int64) error
	ActiveListings(ctx context.Context, guildID int64) ([]*ListingView, error)
	ListingsBySeller(ctx context.Context, guildID, sellerID int64) ([]*ListingView, error)
}

// Service управляет торговой площадкой.
type Service struct {
	store          Store
	shopService    *shop.Service        // Проверка инвентаря и каталога
	economyService *economy.Service     // Ленивое создание счетов
	perms          platform.Permissions // Админ может снимать чужие предложения
}

// NewService создаёт сервис площадки.
func NewService(store Store, shopService *shop.Service, economyService *economy.Service, perms platform.Permissions) *Service {
	return &Service{
		store:          store,
		shopService:    shopService,
		economyService: economyService,
		perms:          perms,
	}
}

// CreateListing выставляет предмет из инвентаря на продажу.
// Проверки:
//   - Цена положительная
//   - Предмет всё ещё существует в каталоге
//   - Предмет есть в инвентаре продавца
func (s *Service) CreateListing(ctx context.Context, guildID, sellerID, itemID, price int64) (*Listing, error) {
	if price <= 0 {
		return nil, common.ErrInvalidPrice
	}

	if _, err := s.shopService.GetItem(ctx, guildID, itemID); err != nil {
		return nil, err
	}

	owned, err := s.shopService.HasItem(ctx, guildID, sellerID, itemID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, common.ErrItemNotOwned
	}

	l := &Listing{
		GuildID:  guildID,
		SellerID: sellerID,
		ItemID:   itemID,
		Price:    price,
		Status:   StatusActive,
	}
	id, err := s.store.CreateListing(ctx, l)
	if err != nil {
		return nil, err
	}
	l.ListingID = id

	log.WithFields(log.Fields{
		"guild":   guildID,
		"seller":  sellerID,
		"item":    itemID,
		"price":   price,
		"listing": id,
	}).Info("Предмет выставлен на площадку")

	return l, nil
}

// Buy покупает предложение. Перевод монет, смена статуса и передача
// предмета выполняются одной транзакцией БД внутри хранилища:
// второй покупатель того же предложения получит ErrListingSettled.
func (s *Service) Buy(ctx context.Context, guildID, buyerID, listingID int64) (*BuyResult, error) {
	// Счёт покупателя должен существовать до транзакции
	if err := s.economyService.EnsureAccount(ctx, guildID, buyerID); err != nil {
		return nil, err
	}

	result, err := s.store.Buy(ctx, guildID, buyerID, listingID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"guild":   guildID,
		"buyer":   buyerID,
		"seller":  result.Listing.SellerID,
		"listing": listingID,
		"price":   result.Listing.Price,
	}).Info("Покупка на торговой площадке")

	return result, nil
}

// Cancel снимает предложение с площадки.
// Разрешено продавцу и администраторам; предложение должно быть активным.
func (s *Service) Cancel(ctx context.Context, guildID, actorID, listingID int64) error {
	listing, err := s.store.GetListing(ctx, guildID, listingID)
	if err != nil {
		return err
	}

	if listing.SellerID != actorID && !s.perms.HasAdminCapability(ctx, guildID, actorID) {
		return common.ErrForbidden
	}

	if err := s.store.CancelListing(ctx, guildID, listingID); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"guild":   guildID,
		"actor":   actorID,
		"listing": listingID,
	}).Info("Предложение снято с площадки")

	return nil
}

// ActiveListings возвращает витрину сервера (только активные предложения).
func (s *Service) ActiveListings(ctx context.Context, guildID int64) ([]*ListingView, error) {
	return s.store.ActiveListings(ctx, guildID)
}

// MyListings возвращает активные предложения продавца.
func (s *Service) MyListings(ctx context.Context, guildID, sellerID int64) ([]*ListingView, error) {
	return s.store.ListingsBySeller(ctx, guildID, sellerID)
}
