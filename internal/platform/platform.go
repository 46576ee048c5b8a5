// Package platform описывает границу между ядром экономики и чат-платформой.
// Ядро никогда не ходит в Discord напрямую: выдача/снятие ролей, личные
// сообщения и посты в каналы выполняются через эти интерфейсы ПОСЛЕ
// фиксации изменений в БД и только best-effort.
package platform

import "context"

// Permissions отвечает на вопрос «является ли пользователь администратором».
// Используется для админ-операций: снятие чужих предложений с площадки,
// управление магазином, запуск розыгрышей.
type Permissions interface {
	HasAdminCapability(ctx context.Context, guildID, userID int64) bool
}

// Directory управляет ролями участников сервера.
// Все методы best-effort: ошибка выдачи/снятия роли логируется,
// но никогда не откатывает уже зафиксированную операцию с монетами.
type Directory interface {
	GrantRole(ctx context.Context, guildID, userID, roleID int64) error
	RevokeRole(ctx context.Context, guildID, userID, roleID int64) error
	IsRoleHeld(ctx context.Context, guildID, userID, roleID int64) (bool, error)
}

// Notifier доставляет сообщения пользователям и каналам.
// Доставка best-effort: у пользователя могут быть закрыты личные сообщения.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) error
	PostToChannel(ctx context.Context, channelID int64, text string) error
}
