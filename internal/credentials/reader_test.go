// File: internal/credentials/reader_test.go
package credentials

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReader(t *testing.T) *Reader {
	t.Helper()
	return NewReader("test.csv", zap.NewNop())
}

func TestParseFullSource(t *testing.T) {
	src := strings.Join([]string{
		"Username,Password,PIN/TOTP Secret,Status",
		"AB1234,secret1,482913,1",
		"CD5678,secret2,JBSWY3DPEHPK3PXP,",
		"EF9012,secret3,,0",
	}, "\n")

	accounts, err := newTestReader(t).parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	assert.Equal(t, Account{ID: "AB1234", Secret: "secret1", SecondFactor: "482913", Active: true}, accounts[0])
	// A blank status cell means active.
	assert.True(t, accounts[1].Active)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", accounts[1].SecondFactor)
	// Status "0" deactivates.
	assert.False(t, accounts[2].Active)
	assert.Empty(t, accounts[2].SecondFactor)
}

func TestParseByteOrderMark(t *testing.T) {
	// Spreadsheet exports routinely prefix the header row with a BOM.
	src := "\ufeffUsername,Password\nAB1234,secret1\n"

	accounts, err := newTestReader(t).parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "AB1234", accounts[0].ID)
}

func TestParseOptionalColumnsAbsent(t *testing.T) {
	src := "Username,Password\nAB1234,secret1\nCD5678,secret2\n"

	accounts, err := newTestReader(t).parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	for _, a := range accounts {
		assert.True(t, a.Active)
		assert.Empty(t, a.SecondFactor)
	}
}

func TestParseSkipsIncompleteRows(t *testing.T) {
	src := strings.Join([]string{
		"Username,Password,PIN/TOTP Secret,Status",
		"AB1234,secret1,,",
		",missinguser,,",
		"CD5678,,,",
		"EF9012,secret3,,",
	}, "\n")

	accounts, err := newTestReader(t).parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "AB1234", accounts[0].ID)
	assert.Equal(t, "EF9012", accounts[1].ID)
}

func TestParseRaggedRows(t *testing.T) {
	// Rows shorter than the header must not panic; absent cells read empty.
	src := strings.Join([]string{
		"Username,Password,PIN/TOTP Secret,Status",
		"AB1234,secret1",
	}, "\n")

	accounts, err := newTestReader(t).parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].Active)
}

func TestParseMalformedSources(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"empty file", ""},
		{"missing password header", "Username,PIN/TOTP Secret\nAB1234,482913\n"},
		{"missing username header", "User,Password\nAB1234,secret1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestReader(t).parse(strings.NewReader(tc.src))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedSource)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "nope.csv"), zap.NewNop())
	_, err := r.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.csv")
	content := "Username,Password,PIN/TOTP Secret,Status\nAB1234,secret1,482913,1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	accounts, err := NewReader(path, zap.NewNop()).Load()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "AB1234", accounts[0].ID)
}
