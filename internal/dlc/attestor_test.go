package dlc

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAttestor(t *testing.T) (*Attestor, *Store) {
	t.Helper()
	key, err := LoadKey(t.TempDir()+"/oracle_sk.hex", nil)
	require.NoError(t, err)
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return NewAttestor(key, store), store
}

func TestCreateAnnouncementIsIdempotent(t *testing.T) {
	a, store := testAttestor(t)
	now := time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC)

	ann1, err := a.CreateAnnouncement("BTCUSD", "2026-07-31T16:00:00Z", now)
	require.NoError(t, err)
	assert.Len(t, ann1.RPoints, NumDigits)
	assert.True(t, store.NonceSecretsExist(ann1.EventID))

	ann2, err := a.CreateAnnouncement("BTCUSD", "2026-07-31T16:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, ann1.RPoints, ann2.RPoints)
}

func TestCreateAttestationDeletesNonceSecrets(t *testing.T) {
	a, store := testAttestor(t)
	now := time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC)
	maturity := "2026-07-31T16:00:00Z"

	ann, err := a.CreateAnnouncement("BTCUSD", maturity, now)
	require.NoError(t, err)

	att, err := a.CreateAttestation("BTCUSD", maturity, 68867, now)
	require.NoError(t, err)
	assert.Equal(t, int64(68867), att.Price)
	assert.Equal(t, []int{6, 8, 8, 6, 7}, att.PriceDigits)
	assert.False(t, store.NonceSecretsExist(att.EventID))

	valid, err := Verify(ann, att)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestCreateAttestationMissingNonces(t *testing.T) {
	a, _ := testAttestor(t)
	now := time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC)

	_, err := a.CreateAttestation("BTCUSD", "2026-07-31T16:00:00Z", 100, now)
	assert.ErrorContains(t, err, "MISSING_NONCES")
}

func TestCreateAttestationPriceOutOfRange(t *testing.T) {
	a, _ := testAttestor(t)
	now := time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC)
	maturity := "2026-07-31T16:00:00Z"

	_, err := a.CreateAnnouncement("BTCUSD", maturity, now)
	require.NoError(t, err)

	_, err = a.CreateAttestation("BTCUSD", maturity, 1234567, now)
	assert.ErrorContains(t, err, "PRICE_OUT_OF_RANGE")
}

func TestVerifyFailsOnTamperedDigit(t *testing.T) {
	a, _ := testAttestor(t)
	now := time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC)
	maturity := "2026-07-31T16:00:00Z"

	ann, err := a.CreateAnnouncement("BTCUSD", maturity, now)
	require.NoError(t, err)
	att, err := a.CreateAttestation("BTCUSD", maturity, 68867, now)
	require.NoError(t, err)

	att.PriceDigits[0] = (att.PriceDigits[0] + 1) % 10
	valid, err := Verify(ann, att)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestSchedulerAttestCurrentHourSkipsIfAlreadyAttested(t *testing.T) {
	a, store := testAttestor(t)
	now := time.Date(2026, 7, 31, 15, 30, 0, 0, time.UTC)
	calls := 0
	fetch := func(ctx context.Context) (float64, []string, error) {
		calls++
		return 100, []string{"test"}, nil
	}
	sched := NewScheduler(a, store, "BTCUSD", fetch, slog.Default())

	att1, err := sched.AttestCurrentHour(context.Background(), now)
	require.NoError(t, err)
	require.NotNil(t, att1)
	assert.Equal(t, 1, calls)

	att2, err := sched.AttestCurrentHour(context.Background(), now)
	require.NoError(t, err)
	assert.Nil(t, att2)
	assert.Equal(t, 1, calls, "fetch should not run again once attested")
}

func TestSchedulerAnnounceUpcomingSkipsExisting(t *testing.T) {
	a, store := testAttestor(t)
	now := time.Date(2026, 7, 31, 15, 30, 0, 0, time.UTC)
	sched := NewScheduler(a, store, "BTCUSD", nil, slog.Default())

	created, err := sched.AnnounceUpcoming(context.Background(), 3, now)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	created, err = sched.AnnounceUpcoming(context.Background(), 3, now)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}
