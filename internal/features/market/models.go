// Package market управляет торговой площадкой: перепродажа предметов
// между участниками. models.go описывает структуры предложений.
package market

import (
	"time"

	"svetogorskrp.ru/discord-bot/internal/features/shop"
)

// Статусы предложения. Active — единственный нетерминальный статус:
// из него предложение переходит в Sold (покупка) или Cancelled (снятие),
// обратных переходов нет.
const (
	StatusActive    = "active"
	StatusSold      = "sold"
	StatusCancelled = "cancelled"
)

// Listing представляет предложение на торговой площадке.
type Listing struct {
	ListingID int64     `db:"listing_id"` // ID предложения (BIGSERIAL)
	GuildID   int64     `db:"guild_id"`   // Сервер
	SellerID  int64     `db:"seller_id"`  // Продавец
	ItemID    int64     `db:"item_id"`    // Продаваемый предмет
	Price     int64     `db:"price"`      // Запрошенная цена (> 0)
	Status    string    `db:"status"`     // active / sold / cancelled
	CreatedAt time.Time `db:"created_at"`
}

// ListingView — предложение вместе с данными каталога для витрины.
// Item == nil, если предмет удалён из магазина («предмет недоступен»).
type ListingView struct {
	Listing Listing
	Item    *shop.Item
}

// BuyResult — результат успешной покупки на площадке.
type BuyResult struct {
	Listing    *Listing   // Предложение в статусе sold
	Item       *shop.Item // Купленный предмет (срок действия — свежий, из каталога)
	NewBalance int64      // Баланс покупателя после списания
}
