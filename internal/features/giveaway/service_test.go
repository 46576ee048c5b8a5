package giveaway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svetogorskrp.ru/discord-bot/internal/common"
)

// fakeStore — in-memory реализация Store для тестов.
// ClaimEnded повторяет условный UPDATE репозитория: второй вызов
// для того же розыгрыша возвращает claimed=false.
type fakeStore struct {
	nextID    int64
	giveaways map[int64]*Giveaway
	entries   map[int64][]int64 // giveawayID → участники по порядку
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		giveaways: make(map[int64]*Giveaway),
		entries:   make(map[int64][]int64),
	}
}

func (f *fakeStore) CreateGiveaway(_ context.Context, g *Giveaway) (int64, error) {
	f.nextID++
	copied := *g
	copied.GiveawayID = f.nextID
	copied.CreatedAt = time.Now().UTC()
	f.giveaways[copied.GiveawayID] = &copied
	return copied.GiveawayID, nil
}

func (f *fakeStore) GetGiveaway(_ context.Context, guildID, giveawayID int64) (*Giveaway, error) {
	g, ok := f.giveaways[giveawayID]
	if !ok || g.GuildID != guildID {
		return nil, common.ErrGiveawayNotFound
	}
	return g, nil
}

func (f *fakeStore) AddEntry(_ context.Context, guildID, giveawayID, userID int64) error {
	for _, uid := range f.entries[giveawayID] {
		if uid == userID {
			return nil // повторное участие — no-op
		}
	}
	f.entries[giveawayID] = append(f.entries[giveawayID], userID)
	return nil
}

func (f *fakeStore) Entrants(_ context.Context, guildID, giveawayID int64) ([]int64, error) {
	return f.entries[giveawayID], nil
}

func (f *fakeStore) ActiveGiveaways(_ context.Context, guildID int64) ([]*Giveaway, error) {
	var out []*Giveaway
	for _, g := range f.giveaways {
		if g.GuildID == guildID && !g.Ended {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) DueGiveaways(_ context.Context, now time.Time) ([]*Giveaway, error) {
	var out []*Giveaway
	for _, g := range f.giveaways {
		if !g.Ended && !g.EndAt.After(now) {
			copied := *g
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) ClaimEnded(_ context.Context, guildID, giveawayID int64) (bool, []int64, error) {
	g, ok := f.giveaways[giveawayID]
	if !ok || g.GuildID != guildID || g.Ended {
		return false, nil, nil
	}
	g.Ended = true
	return true, f.entries[giveawayID], nil
}

func (f *fakeStore) SetEndAt(_ context.Context, guildID, giveawayID int64, endAt time.Time) error {
	g, ok := f.giveaways[giveawayID]
	if !ok || g.GuildID != guildID {
		return common.ErrGiveawayNotFound
	}
	if g.Ended {
		return common.ErrGiveawayAlreadyEnded
	}
	g.EndAt = endAt
	return nil
}

// fakeNotifier записывает сообщения в каналы.
type fakeNotifier struct {
	channelMessages map[int64][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{channelMessages: make(map[int64][]string)}
}

func (n *fakeNotifier) NotifyUser(_ context.Context, userID int64, text string) error {
	return nil
}

func (n *fakeNotifier) PostToChannel(_ context.Context, channelID int64, text string) error {
	n.channelMessages[channelID] = append(n.channelMessages[channelID], text)
	return nil
}

const (
	testGuild   = int64(100)
	testChannel = int64(200)
	testHost    = int64(300)
)

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeNotifier) {
	t.Helper()
	store := newFakeStore()
	notifier := newFakeNotifier()
	return NewService(store, notifier), store, notifier
}

func TestService_Start_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, testGuild, testChannel, testHost, "  ", 1, time.Hour)
	assert.ErrorIs(t, err, common.ErrEmptyPrize)

	_, err = svc.Start(ctx, testGuild, testChannel, testHost, "Приз", 0, time.Hour)
	assert.ErrorIs(t, err, common.ErrInvalidWinnersCount)

	_, err = svc.Start(ctx, testGuild, testChannel, testHost, "Приз", 51, time.Hour)
	assert.ErrorIs(t, err, common.ErrInvalidWinnersCount)

	_, err = svc.Start(ctx, testGuild, testChannel, testHost, "Приз", 1, 0)
	assert.ErrorIs(t, err, common.ErrInvalidDuration)

	g, err := svc.Start(ctx, testGuild, testChannel, testHost, "Нитро", 3, time.Hour)
	require.NoError(t, err)
	assert.NotZero(t, g.GiveawayID)
	assert.False(t, g.Ended)
}

func TestService_Join_DuplicateIsNoop(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	g, err := svc.Start(ctx, testGuild, testChannel, testHost, "Приз", 1, time.Hour)
	require.NoError(t, err)

	require.NoError(t, svc.Join(ctx, testGuild, g.GiveawayID, 1))
	require.NoError(t, svc.Join(ctx, testGuild, g.GiveawayID, 1))
	require.NoError(t, svc.Join(ctx, testGuild, g.GiveawayID, 2))

	assert.Equal(t, []int64{1, 2}, store.entries[g.GiveawayID])
}

func TestService_Join_ClosedAfterDeadline(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	g, err := svc.Start(ctx, testGuild, testChannel, testHost, "Приз", 1, time.Hour)
	require.NoError(t, err)

	// Срок вышел, но фоновый обработчик ещё не прошёл
	store.giveaways[g.GiveawayID].EndAt = time.Now().UTC().Add(-time.Minute)

	err = svc.Join(ctx, testGuild, g.GiveawayID, 1)
	assert.ErrorIs(t, err, common.ErrGiveawayClosed)
}

func TestService_ResolveTick_EndsAndAnnounces(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	// 3 призовых места, но только 2 участника — побеждают оба
	g, err := svc.Start(ctx, testGuild, testChannel, testHost, "Нитро", 3, time.Hour)
	require.NoError(t, err)
	require.NoError(t, svc.Join(ctx, testGuild, g.GiveawayID, 1))
	require.NoError(t, svc.Join(ctx, testGuild, g.GiveawayID, 2))

	store.giveaways[g.GiveawayID].EndAt = time.Now().UTC().Add(-time.Second)

	require.NoError(t, svc.ResolveTick(ctx))

	assert.True(t, store.giveaways[g.GiveawayID].Ended)
	require.Len(t, notifier.channelMessages[testChannel], 1)
	assert.Contains(t, notifier.channelMessages[testChannel][0], "Нитро")
	assert.Contains(t, notifier.channelMessages[testChannel][0], "<@1>")
	assert.Contains(t, notifier.channelMessages[testChannel][0], "<@2>")
}

func TestService_ResolveTick_ExactlyOnce(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	g, err := svc.Start(ctx, testGuild, testChannel, testHost, "Приз", 1, time.Hour)
	require.NoError(t, err)
	require.NoError(t, svc.Join(ctx, testGuild, g.GiveawayID, 1))

	store.giveaways[g.GiveawayID].EndAt = time.Now().UTC().Add(-time.Second)

	require.NoError(t, svc.ResolveTick(ctx))
	require.NoError(t, svc.ResolveTick(ctx))

	assert.Len(t, notifier.channelMessages[testChannel], 1, "итоги объявляются ровно один раз")
}

func TestService_ResolveTick_NoEntrants(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	g, err := svc.Start(ctx, testGuild, testChannel, testHost, "Приз", 2, time.Hour)
	require.NoError(t, err)
	store.giveaways[g.GiveawayID].EndAt = time.Now().UTC().Add(-time.Second)

	require.NoError(t, svc.ResolveTick(ctx))

	assert.True(t, store.giveaways[g.GiveawayID].Ended)
	require.Len(t, notifier.channelMessages[testChannel], 1)
	assert.Contains(t, notifier.channelMessages[testChannel][0], "победителей нет")
}

func TestService_Reroll(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	g, err := svc.Start(ctx, testGuild, testChannel, testHost, "Приз", 1, time.Hour)
	require.NoError(t, err)
	require.NoError(t, svc.Join(ctx, testGuild, g.GiveawayID, 1))
	require.NoError(t, svc.Join(ctx, testGuild, g.GiveawayID, 2))

	// До завершения перевыбор запрещён
	_, err = svc.Reroll(ctx, testGuild, g.GiveawayID)
	assert.ErrorIs(t, err, common.ErrGiveawayNotEnded)

	store.giveaways[g.GiveawayID].EndAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, svc.ResolveTick(ctx))

	result, err := svc.Reroll(ctx, testGuild, g.GiveawayID)
	require.NoError(t, err)
	assert.Len(t, result.Winners, 1)
	assert.Equal(t, 2, result.Entrants)
	assert.True(t, store.giveaways[g.GiveawayID].Ended, "флаг завершения не сбрасывается")
	assert.Len(t, notifier.channelMessages[testChannel], 2)
}

func TestService_EndEarly(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	g, err := svc.Start(ctx, testGuild, testChannel, testHost, "Приз", 1, time.Hour)
	require.NoError(t, err)
	require.NoError(t, svc.Join(ctx, testGuild, g.GiveawayID, 1))

	require.NoError(t, svc.EndEarly(ctx, testGuild, g.GiveawayID))

	// Итоги подводит тот же фоновый путь
	require.NoError(t, svc.ResolveTick(ctx))
	assert.True(t, store.giveaways[g.GiveawayID].Ended)

	// Повторное досрочное завершение — уже нельзя
	err = svc.EndEarly(ctx, testGuild, g.GiveawayID)
	assert.ErrorIs(t, err, common.ErrGiveawayAlreadyEnded)
}

func TestDrawWinners_DistinctAndBounded(t *testing.T) {
	entrants := []int64{1, 2, 3, 4, 5}

	winners := drawWinners(entrants, 3)
	require.Len(t, winners, 3)
	seen := make(map[int64]bool)
	for _, w := range winners {
		assert.False(t, seen[w], "победители не должны повторяться")
		seen[w] = true
		assert.Contains(t, entrants, w)
	}

	// Мест больше, чем участников — побеждают все
	all := drawWinners([]int64{7, 8}, 10)
	assert.ElementsMatch(t, []int64{7, 8}, all)

	assert.Nil(t, drawWinners(nil, 3))
	assert.Nil(t, drawWinners(entrants, 0))
}
