// Package platform — logstub.go содержит заглушки Directory и Notifier,
// которые только пишут в лог. Используются, пока не подключён реальный
// адаптер чат-платформы, и в локальной отладке без Discord.
package platform

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogDirectory — заглушка справочника ролей.
type LogDirectory struct{}

func (LogDirectory) GrantRole(ctx context.Context, guildID, userID, roleID int64) error {
	log.WithFields(log.Fields{"guild_id": guildID, "user_id": userID, "role_id": roleID}).
		Info("[STUB] Выдача роли")
	return nil
}

func (LogDirectory) RevokeRole(ctx context.Context, guildID, userID, roleID int64) error {
	log.WithFields(log.Fields{"guild_id": guildID, "user_id": userID, "role_id": roleID}).
		Info("[STUB] Снятие роли")
	return nil
}

func (LogDirectory) IsRoleHeld(ctx context.Context, guildID, userID, roleID int64) (bool, error) {
	return true, nil
}

// LogNotifier — заглушка доставки сообщений.
type LogNotifier struct{}

func (LogNotifier) NotifyUser(ctx context.Context, userID int64, text string) error {
	log.WithField("user_id", userID).Infof("[STUB] Личное сообщение: %s", text)
	return nil
}

func (LogNotifier) PostToChannel(ctx context.Context, channelID int64, text string) error {
	log.WithField("channel_id", channelID).Infof("[STUB] Сообщение в канал: %s", text)
	return nil
}
