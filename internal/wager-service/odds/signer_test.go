package odds_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/gridbet-engine/internal/shared/config"
	"github.com/radieske/gridbet-engine/internal/wager-service/odds"
)

func newSigner(t *testing.T, now func() time.Time) *odds.Signer {
	t.Helper()
	s, err := odds.NewSigner("s3cret", config.DefaultGrid())
	require.NoError(t, err)
	if now != nil {
		s.WithClock(now)
	}
	return s
}

func TestNewSigner_RequiresSecret(t *testing.T) {
	_, err := odds.NewSigner("", config.DefaultGrid())
	assert.ErrorIs(t, err, odds.ErrNoSecret)
}

func TestMultiplier_MonotonicAndBounded(t *testing.T) {
	g := config.DefaultGrid()
	s := newSigner(t, nil)

	// distância zero: base descontada pela margem da casa
	assert.InDelta(t, 1.5*0.95, s.Multiplier(10, 10), 1e-9)

	prev := 0.0
	for d := 0; d <= 60; d++ {
		m := s.Multiplier(d, 0)
		assert.GreaterOrEqual(t, m, prev, "distance %d", d)
		assert.GreaterOrEqual(t, m, g.MinMultiplier)
		assert.LessOrEqual(t, m, g.MaxMultiplier)
		// simétrico
		assert.Equal(t, m, s.Multiplier(-d, 0))
		prev = m
	}
	assert.Equal(t, g.MaxMultiplier, s.Multiplier(1000, 0))
}

func TestIssueOdds(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newSigner(t, func() time.Time { return now })

	sheet, err := s.IssueOdds(7, 12, 3)
	require.NoError(t, err)
	require.Len(t, sheet.Odds, 7)
	assert.True(t, now.Add(time.Minute).Equal(sheet.ExpiresAt))

	seen := map[string]bool{}
	for i, o := range sheet.Odds {
		assert.Equal(t, 4+i, o.YIndex)
		assert.Equal(t, 12, o.ColumnX)
		assert.False(t, seen[o.OddsID], "duplicate odds id")
		seen[o.OddsID] = true
		assert.True(t, s.Verify(o.OddsID, o.Multiplier, o.ColumnX, o.YIndex, o.Signature))

		exp, err := odds.ExpiresAt(o.OddsID)
		require.NoError(t, err)
		assert.True(t, exp.Equal(sheet.ExpiresAt))
	}

	_, err = s.IssueOdds(0, 0, 21)
	assert.ErrorIs(t, err, odds.ErrRangeTooLarge)
	_, err = s.IssueOdds(0, -1, 1)
	assert.ErrorIs(t, err, odds.ErrNegativeColumn)
}

func TestVerify_AnyAlteredFieldFails(t *testing.T) {
	s := newSigner(t, nil)
	sheet, err := s.IssueOdds(0, 5, 0)
	require.NoError(t, err)
	o := sheet.Odds[0]

	assert.True(t, s.Verify(o.OddsID, o.Multiplier, o.ColumnX, o.YIndex, o.Signature))
	assert.False(t, s.Verify(o.OddsID+"x", o.Multiplier, o.ColumnX, o.YIndex, o.Signature))
	assert.False(t, s.Verify(o.OddsID, o.Multiplier+0.001, o.ColumnX, o.YIndex, o.Signature))
	assert.False(t, s.Verify(o.OddsID, o.Multiplier, o.ColumnX+1, o.YIndex, o.Signature))
	assert.False(t, s.Verify(o.OddsID, o.Multiplier, o.ColumnX, o.YIndex-1, o.Signature))
	assert.False(t, s.Verify(o.OddsID, o.Multiplier, o.ColumnX, o.YIndex, "zz"))

	other, err := odds.NewSigner("another", config.DefaultGrid())
	require.NoError(t, err)
	assert.False(t, other.Verify(o.OddsID, o.Multiplier, o.ColumnX, o.YIndex, o.Signature))
}

func TestVerifyQuote_Expiry(t *testing.T) {
	now := time.Now()
	s := newSigner(t, func() time.Time { return now })
	sheet, err := s.IssueOdds(3, 1, 0)
	require.NoError(t, err)
	o := sheet.Odds[0]
	q := odds.Quote{OddsID: o.OddsID, Signature: o.Signature, ColumnX: o.ColumnX}

	assert.NoError(t, s.VerifyQuote(q, o.Multiplier, o.YIndex))
	assert.ErrorIs(t, s.VerifyQuote(q, o.Multiplier*2, o.YIndex), odds.ErrBadSignature)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, s.VerifyQuote(q, o.Multiplier, o.YIndex), odds.ErrOddsExpired)
}

func TestExpiresAt_Malformed(t *testing.T) {
	_, err := odds.ExpiresAt("no-dot")
	assert.ErrorIs(t, err, odds.ErrMalformedID)
	_, err = odds.ExpiresAt("abc.notanumber")
	assert.ErrorIs(t, err, odds.ErrMalformedID)
}

func TestQuoted_MatchesIssuedOdds(t *testing.T) {
	g := config.DefaultGrid()
	s := newSigner(t, nil)
	sheet, err := s.IssueOdds(3, 1, 4)
	require.NoError(t, err)
	for _, o := range sheet.Odds {
		assert.Equal(t, odds.Quoted(g, o.YIndex, 3), o.Multiplier, "yIndex %d", o.YIndex)
	}
}
