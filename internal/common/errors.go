// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки экономики (монеты, переводы)
var (
	// ErrInsufficientBalance — недостаточно монет на счёте
	ErrInsufficientBalance = errors.New("недостаточно монет на счёте")
	// ErrSelfTransfer — попытка перевести монеты самому себе
	ErrSelfTransfer = errors.New("нельзя переводить монеты самому себе")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrWorkCooldown — команда work ещё на перезарядке
	ErrWorkCooldown = errors.New("вы недавно работали, отдохните")
)

// Ошибки казино
var (
	// ErrInvalidBet — ставка вне допустимого диапазона
	ErrInvalidBet = errors.New("ставка вне допустимого диапазона")
)

// Ошибки магазина
var (
	// ErrItemNotFound — предмет с таким ID не существует
	ErrItemNotFound = errors.New("предмет не найден")
	// ErrInvalidPrice — цена не может быть отрицательной
	ErrInvalidPrice = errors.New("цена не может быть отрицательной")
	// ErrInvalidItemType — неизвестный тип предмета
	ErrInvalidItemType = errors.New("неверный тип предмета (role, cosmetic, boost, other)")
	// ErrRoleRequired — предмет-роль без привязанной роли
	ErrRoleRequired = errors.New("для предмета-роли нужно указать роль")
	// ErrInvalidPurchaseLimit — лимит покупок меньше -1
	ErrInvalidPurchaseLimit = errors.New("лимит покупок не может быть меньше -1")
	// ErrEmptyItemName — предмет без названия
	ErrEmptyItemName = errors.New("у предмета должно быть название")
	// ErrPurchaseLimitReached — куплено максимальное количество этого предмета
	ErrPurchaseLimitReached = errors.New("вы уже купили максимальное количество этого предмета")
)

// Ошибки торговой площадки
var (
	// ErrListingNotFound — предложение не найдено
	ErrListingNotFound = errors.New("предложение не найдено")
	// ErrListingSettled — предложение уже продано или отменено
	ErrListingSettled = errors.New("это предложение уже продано или отменено")
	// ErrItemNotOwned — предмета нет в инвентаре продавца
	ErrItemNotOwned = errors.New("у вас нет этого предмета в инвентаре")
	// ErrSelfTrade — попытка купить собственное предложение
	ErrSelfTrade = errors.New("нельзя купить свой же предмет")
	// ErrForbidden — действие доступно только владельцу или администратору
	ErrForbidden = errors.New("вы можете убирать только свои предложения")
)

// Ошибки розыгрышей
var (
	// ErrGiveawayNotFound — розыгрыш не найден
	ErrGiveawayNotFound = errors.New("розыгрыш не найден")
	// ErrGiveawayClosed — розыгрыш не принимает новых участников
	ErrGiveawayClosed = errors.New("розыгрыш уже завершён")
	// ErrGiveawayNotEnded — перевыбор доступен только после завершения
	ErrGiveawayNotEnded = errors.New("этот розыгрыш ещё не завершён")
	// ErrGiveawayAlreadyEnded — досрочное завершение уже завершённого розыгрыша
	ErrGiveawayAlreadyEnded = errors.New("этот розыгрыш уже завершён досрочно или по таймеру")
	// ErrInvalidWinnersCount — число победителей вне диапазона 1..50
	ErrInvalidWinnersCount = errors.New("число победителей должно быть от 1 до 50")
	// ErrEmptyPrize — розыгрыш без приза
	ErrEmptyPrize = errors.New("у розыгрыша должен быть приз")
	// ErrInvalidDuration — длительность розыгрыша не положительная
	ErrInvalidDuration = errors.New("длительность должна быть положительной")
)

// Ошибки прав доступа
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
)
