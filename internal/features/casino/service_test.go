package casino

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svetogorskrp.ru/discord-bot/internal/common"
	"svetogorskrp.ru/discord-bot/internal/features/economy"
)

// fakeStore — in-memory реализация Store для тестов.
// Повторяет контракт репозитория: проверка средств перед расчётом,
// накопительная статистика.
type fakeStore struct {
	balances map[[2]int64]int64 // (guild, user) → баланс
	stats    map[[2]int64]*Stats
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances: make(map[[2]int64]int64),
		stats:    make(map[[2]int64]*Stats),
	}
}

func (f *fakeStore) Settle(_ context.Context, guildID, userID, bet, payout int64) (int64, error) {
	key := [2]int64{guildID, userID}
	balance, ok := f.balances[key]
	if !ok {
		return 0, common.ErrUserNotFound
	}
	if balance < bet {
		return 0, common.ErrInsufficientBalance
	}
	balance = balance - bet + payout
	f.balances[key] = balance

	st := f.stats[key]
	if st == nil {
		st = &Stats{GuildID: guildID, UserID: userID}
		f.stats[key] = st
	}
	st.TotalSpins++
	st.TotalWagered += bet
	st.TotalWon += payout
	if payout > st.BiggestWin {
		st.BiggestWin = payout
	}
	return balance, nil
}

func (f *fakeStore) GetStats(_ context.Context, guildID, userID int64) (*Stats, error) {
	if st, ok := f.stats[[2]int64{guildID, userID}]; ok {
		return st, nil
	}
	return &Stats{GuildID: guildID, UserID: userID}, nil
}

// nopEconStore — экономика-заглушка: сервису казино от неё нужен
// только EnsureAccount.
type nopEconStore struct{}

func (nopEconStore) EnsureAccount(context.Context, int64, int64) error { return nil }
func (nopEconStore) GetAccount(context.Context, int64, int64) (*economy.Account, error) {
	return nil, common.ErrUserNotFound
}
func (nopEconStore) GetBalance(context.Context, int64, int64) (int64, error) { return 0, nil }
func (nopEconStore) Transfer(context.Context, int64, int64, int64, int64) error {
	return nil
}
func (nopEconStore) AdjustBalance(context.Context, int64, int64, int64, string) error { return nil }
func (nopEconStore) SetBalance(context.Context, int64, int64, int64) error            { return nil }
func (nopEconStore) TopByBalance(context.Context, int64, int) ([]*economy.Account, error) {
	return nil, nil
}
func (nopEconStore) TopByLevel(context.Context, int64, int) ([]*economy.Account, error) {
	return nil, nil
}
func (nopEconStore) Work(context.Context, int64, int64, int64, time.Duration) (int64, error) {
	return 0, nil
}
func (nopEconStore) Transactions(context.Context, int64, int64, int) ([]*economy.Transaction, error) {
	return nil, nil
}
func (nopEconStore) CleanupGuild(context.Context, int64) error { return nil }

const testGuild = int64(100)

func newTestService(store *fakeStore) *Service {
	econ := economy.NewService(nopEconStore{}, economy.WorkConfig{})
	return NewService(store, econ, 10, 100)
}

func TestPayoutFor(t *testing.T) {
	tests := []struct {
		name   string
		reels  [Reels]string
		payout int64
	}{
		{"три одинаковых", [Reels]string{"💎", "💎", "💎"}, 50},
		{"пара слева", [Reels]string{"🍒", "🍒", "🍋"}, 20},
		{"пара справа", [Reels]string{"🍋", "🍒", "🍒"}, 20},
		{"пара по краям не платит", [Reels]string{"🍒", "🍋", "🍒"}, 0},
		{"все разные", [Reels]string{"🍒", "🍋", "💎"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.payout, payoutFor(tt.reels, 10))
		})
	}
}

func TestService_Spin_BetBounds(t *testing.T) {
	store := newFakeStore()
	store.balances[[2]int64{testGuild, 1}] = 1000
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Spin(ctx, testGuild, 1, 9)
	assert.ErrorIs(t, err, common.ErrInvalidBet)

	_, err = svc.Spin(ctx, testGuild, 1, 101)
	assert.ErrorIs(t, err, common.ErrInvalidBet)

	_, err = svc.Spin(ctx, testGuild, 1, 10)
	assert.NoError(t, err)
}

func TestService_Spin_InsufficientBalance(t *testing.T) {
	store := newFakeStore()
	store.balances[[2]int64{testGuild, 1}] = 5
	svc := newTestService(store)

	_, err := svc.Spin(context.Background(), testGuild, 1, 10)
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	// Баланс не тронут
	assert.Equal(t, int64(5), store.balances[[2]int64{testGuild, 1}])
}

func TestService_Spin_SettlesBetAndPayout(t *testing.T) {
	store := newFakeStore()
	store.balances[[2]int64{testGuild, 1}] = 1000
	svc := newTestService(store)

	res, err := svc.Spin(context.Background(), testGuild, 1, 20)
	require.NoError(t, err)

	// Выплата соответствует выпавшей комбинации, баланс — расчёту
	assert.Equal(t, payoutFor(res.Reels, 20), res.Payout)
	assert.Equal(t, int64(1000)-20+res.Payout, res.NewBalance)
	assert.Equal(t, res.Payout > 0, res.IsWin)
	for _, reel := range res.Reels {
		assert.Contains(t, Symbols, reel)
	}
}

func TestService_Stats_Accumulates(t *testing.T) {
	store := newFakeStore()
	store.balances[[2]int64{testGuild, 1}] = 10000
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Spin(ctx, testGuild, 1, 10)
	require.NoError(t, err)
	_, err = svc.Spin(ctx, testGuild, 1, 30)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, testGuild, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSpins)
	assert.Equal(t, int64(40), stats.TotalWagered)
}

func TestService_Stats_EmptyForNewPlayer(t *testing.T) {
	svc := newTestService(newFakeStore())

	stats, err := svc.Stats(context.Background(), testGuild, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalSpins)
	assert.Equal(t, int64(0), stats.TotalWagered)
}
