// File: internal/secondfactor/secondfactor_test.go
package secondfactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = "JBSWY3DPEHPK3PXP"

func TestClassifyHeuristic(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Kind
	}{
		{"six digit pin", "482913", KindStaticPIN},
		{"eight char value stays pin", "ABCD1234", KindStaticPIN},
		{"base32 seed", testSeed, KindTOTPSeed},
		{"long mixed value", "A1B2C3D4E5", KindTOTPSeed},
		// A long purely-numeric value is indistinguishable from a long PIN
		// and classifies as one; a hint is required to force TOTP.
		{"nine digit numeric", "123456789", KindStaticPIN},
		{"value with symbols stays pin", "ABCDEFGH-IJK", KindStaticPIN},
		{"empty", "", KindStaticPIN},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := Classify(tc.raw, "")
			assert.Equal(t, tc.want, f.Kind)
		})
	}
}

func TestClassifyHintOverridesHeuristic(t *testing.T) {
	// The heuristic would call this a PIN; the hint forces TOTP.
	f := Classify("123456789", HintTOTP)
	assert.Equal(t, KindTOTPSeed, f.Kind)

	// And the reverse: a seed-shaped value pinned as a static PIN.
	f = Classify(testSeed, HintPIN)
	assert.Equal(t, KindStaticPIN, f.Kind)

	// Hints are case-insensitive and trimmed.
	f = Classify("123456789", "  TOTP ")
	assert.Equal(t, KindTOTPSeed, f.Kind)
}

func TestCodeStaticPIN(t *testing.T) {
	f := Factor{Kind: KindStaticPIN, Value: "482913"}
	code, err := f.Code(time.Now())
	require.NoError(t, err)
	assert.Equal(t, "482913", code, "a static PIN is submitted verbatim")
}

func TestCodeTOTP(t *testing.T) {
	// Reference codes computed independently per RFC 6238
	// (HMAC-SHA1, 30s step, 6 digits) for the testSeed key.
	at := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC) // Unix 1710495000
	const wantAt = "317822"

	t.Run("canonical seed", func(t *testing.T) {
		f := Factor{Kind: KindTOTPSeed, Value: testSeed}
		code, err := f.Code(at)
		require.NoError(t, err)
		assert.Equal(t, wantAt, code)
	})

	t.Run("known timestamps", func(t *testing.T) {
		f := Factor{Kind: KindTOTPSeed, Value: testSeed}
		for _, tc := range []struct {
			unix int64
			want string
		}{
			{59, "996554"},
			{1111111109, "071271"},
			{1710495000, "317822"},
		} {
			code, err := f.Code(time.Unix(tc.unix, 0).UTC())
			require.NoError(t, err)
			assert.Equal(t, tc.want, code, "at unix %d", tc.unix)
		}
	})

	t.Run("tolerates lowercase and spaces", func(t *testing.T) {
		f := Factor{Kind: KindTOTPSeed, Value: "jbsw y3dp ehpk 3pxp"}
		code, err := f.Code(at)
		require.NoError(t, err)
		assert.Equal(t, wantAt, code, "authenticator-app formatting normalizes to the same seed")
	})

	t.Run("window stability", func(t *testing.T) {
		f := Factor{Kind: KindTOTPSeed, Value: testSeed}
		code, err := f.Code(at.Add(29 * time.Second))
		require.NoError(t, err)
		assert.Equal(t, wantAt, code, "codes inside one 30s window match")
	})
}

func TestCodeErrors(t *testing.T) {
	t.Run("empty factor", func(t *testing.T) {
		_, err := Factor{Kind: KindStaticPIN}.Code(time.Now())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSecondFactor)
	})

	t.Run("malformed seed", func(t *testing.T) {
		f := Factor{Kind: KindTOTPSeed, Value: "????????"}
		_, err := f.Code(time.Now())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSecondFactor)
	})
}

func TestConfigured(t *testing.T) {
	assert.False(t, Classify("", "").Configured())
	assert.True(t, Classify("482913", "").Configured())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "pin", KindStaticPIN.String())
	assert.Equal(t, "totp", KindTOTPSeed.String())
}
