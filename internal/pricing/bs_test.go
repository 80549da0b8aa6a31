package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/bs-replay/internal/errors"
)

func TestBlackScholesReferenceValues(t *testing.T) {
	call, err := BlackScholesPrice(100, 105, 1, 0.05, 0.2, "call")
	require.NoError(t, err)
	assert.InDelta(t, 8.0214, call, 1e-3)

	put, err := BlackScholesPrice(100, 105, 1, 0.05, 0.2, "put")
	require.NoError(t, err)
	assert.InDelta(t, 7.9004, put, 1e-3)

	// classic ATM case
	call, err = BlackScholesPrice(100, 100, 1, 0.05, 0.2, "call")
	require.NoError(t, err)
	assert.InDelta(t, 10.450583572185565, call, 1e-9)
}

func TestBlackScholesKindIsCaseInsensitive(t *testing.T) {
	lower, err := BlackScholesPrice(100, 105, 1, 0.05, 0.2, "call")
	require.NoError(t, err)
	upper, err := BlackScholesPrice(100, 105, 1, 0.05, 0.2, " CALL ")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)

	_, err = BlackScholesPrice(100, 105, 1, 0.05, 0.2, "Put")
	require.NoError(t, err)
}

func TestBlackScholesPutCallParity(t *testing.T) {
	cases := []struct {
		S, K, T, r, sigma float64
	}{
		{100, 105, 1, 0.05, 0.2},
		{100, 100, 45.0 / 365.0, 0.03, 0.25},
		{50, 80, 2, -0.01, 0.6},
		{3000, 2500, 0.1, 0.10, 0.15},
		{10, 10, 5, 0, 1.2},
	}

	for _, c := range cases {
		call, err := BlackScholesPrice(c.S, c.K, c.T, c.r, c.sigma, "call")
		require.NoError(t, err)
		put, err := BlackScholesPrice(c.S, c.K, c.T, c.r, c.sigma, "put")
		require.NoError(t, err)

		lhs := call - put
		rhs := c.S - c.K*math.Exp(-c.r*c.T)
		assert.InDelta(t, rhs, lhs, 1e-8*math.Max(1, math.Abs(rhs)), "parity for %+v", c)
	}
}

func TestBlackScholesMonotoneInVolatility(t *testing.T) {
	for _, kind := range []string{"call", "put"} {
		prev := -1.0
		for sigma := 0.01; sigma <= 2.0; sigma += 0.01 {
			p, err := BlackScholesPrice(100, 105, 1, 0.05, sigma, kind)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, p, prev-1e-12, "%s price fell at sigma=%.2f", kind, sigma)
			prev = p
		}
	}
}

func TestBlackScholesNearExpiryIsIntrinsic(t *testing.T) {
	const T = 1e-6
	cases := []struct {
		S, K float64
	}{
		{100, 105},
		{110, 105},
		{100, 100.5},
	}

	for _, c := range cases {
		call, err := BlackScholesPrice(c.S, c.K, T, 0.05, 0.2, "call")
		require.NoError(t, err)
		put, err := BlackScholesPrice(c.S, c.K, T, 0.05, 0.2, "put")
		require.NoError(t, err)

		assert.InDelta(t, math.Max(c.S-c.K, 0), call, 1e-3)
		assert.InDelta(t, math.Max(c.K-c.S, 0), put, 1e-3)
	}
}

func TestBlackScholesDomainErrors(t *testing.T) {
	cases := []struct {
		name              string
		S, K, T, r, sigma float64
		field             string
	}{
		{"zero spot", 0, 105, 1, 0.05, 0.2, "spot"},
		{"negative strike", 100, -1, 1, 0.05, 0.2, "strike"},
		{"zero maturity", 100, 105, 0, 0.05, 0.2, "maturity"},
		{"negative vol", 100, 105, 1, 0.05, -0.2, "volatility"},
		{"zero vol", 100, 105, 1, 0.05, 0, "volatility"},
		{"nan spot", math.NaN(), 105, 1, 0.05, 0.2, "spot"},
		{"nan rate", 100, 105, 1, math.NaN(), 0.2, "rate"},
		{"inf spot", math.Inf(1), 105, 1, 0.05, 0.2, "spot"},
		{"inf strike", 100, math.Inf(1), 1, 0.05, 0.2, "strike"},
		{"inf maturity", 100, 105, math.Inf(1), 0.05, 0.2, "maturity"},
		{"inf vol", 100, 105, 1, 0.05, math.Inf(1), "volatility"},
		{"inf rate", 100, 105, 1, math.Inf(-1), 0.2, "rate"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, err := BlackScholesPrice(c.S, c.K, c.T, c.r, c.sigma, "call")
			require.Error(t, err)
			assert.Zero(t, p)
			assert.True(t, errors.HasCode(err, errors.ErrCodeDomain))
			assert.Contains(t, err.Error(), c.field)
		})
	}
}

func TestBlackScholesInvalidOptionType(t *testing.T) {
	_, err := BlackScholesPrice(100, 105, 1, 0.05, 0.2, "straddle")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidOptionType))
	assert.False(t, errors.HasCode(err, errors.ErrCodeDomain))
}

func TestDomainErrorWinsOverKind(t *testing.T) {
	_, err := BlackScholesPrice(-1, 105, 1, 0.05, 0.2, "straddle")
	assert.True(t, errors.HasCode(err, errors.ErrCodeDomain))
}

func TestNormCDFAccuracy(t *testing.T) {
	cases := []struct {
		x, want float64
	}{
		{0, 0.5},
		{1, 0.8413447460685429},
		{-1, 0.15865525393145707},
		{1.959963984540054, 0.975},
		{-3, 0.0013498980316301},
		{5, 0.9999997133484281},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, normCDF(c.x), 1e-10, "Phi(%v)", c.x)
	}
}
