// Package platform — resolver.go содержит резолвер прав на основе конфигурации.
// Постоянные администраторы задаются через ADMIN_IDS, остальные могут
// временно повысить права паролем (хеш Argon2id в ADMIN_PASSWORD_HASH).
package platform

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"svetogorskrp.ru/discord-bot/internal/common"
)

// elevationTTL — срок действия временного повышения прав.
const elevationTTL = 24 * time.Hour

// ConfigResolver реализует Permissions поверх конфигурации.
type ConfigResolver struct {
	adminIDs     map[int64]struct{}
	passwordHash string

	elevatedMu sync.RWMutex
	elevated   map[int64]time.Time // userID → срок действия
}

// NewConfigResolver создаёт резолвер прав.
func NewConfigResolver(adminIDs []int64, passwordHash string) *ConfigResolver {
	ids := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &ConfigResolver{
		adminIDs:     ids,
		passwordHash: passwordHash,
		elevated:     make(map[int64]time.Time),
	}
}

// HasAdminCapability проверяет, есть ли у пользователя админ-права.
// Права глобальные для бота: либо ID в списке ADMIN_IDS,
// либо действующее повышение по паролю.
func (r *ConfigResolver) HasAdminCapability(ctx context.Context, guildID, userID int64) bool {
	if _, ok := r.adminIDs[userID]; ok {
		return true
	}

	r.elevatedMu.RLock()
	defer r.elevatedMu.RUnlock()
	until, ok := r.elevated[userID]
	return ok && time.Now().Before(until)
}

// Elevate временно повышает права пользователя по паролю.
func (r *ConfigResolver) Elevate(userID int64, password string) error {
	if !verifyArgon2id(password, r.passwordHash) {
		return common.ErrWrongPassword
	}

	r.elevatedMu.Lock()
	r.elevated[userID] = time.Now().Add(elevationTTL)
	r.elevatedMu.Unlock()

	log.WithField("user_id", userID).Info("Права администратора выданы по паролю")
	return nil
}

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравниваем в постоянном времени (защита от timing attack)
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}
