// File: internal/credentials/reader.go
package credentials

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// CSV column headers of the credential source. The second-factor and status
// columns are optional; status defaults to active.
const (
	headerUsername = "Username"
	headerPassword = "Password"
	headerFactor   = "PIN/TOTP Secret"
	headerStatus   = "Status"
)

// Reader loads account records from a CSV credential source.
type Reader struct {
	path   string
	logger *zap.Logger
}

// NewReader returns a Reader for the given source path.
func NewReader(path string, logger *zap.Logger) *Reader {
	return &Reader{
		path:   path,
		logger: logger.With(zap.String("component", "credential_reader")),
	}
}

// Load reads the credential source from disk. Rows missing a username or
// password are skipped with a warning; a missing file or missing required
// headers are fatal. The file is read fresh on every call so external edits
// between runs are always picked up.
func (r *Reader) Load() ([]Account, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, r.path)
		}
		return nil, fmt.Errorf("opening credential source %s: %w", r.path, err)
	}
	defer f.Close()

	return r.parse(f)
}

func (r *Reader) parse(src io.Reader) ([]Account, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedSource)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		// Tolerate a UTF-8 BOM on the first header cell; spreadsheet
		// exports routinely add one.
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		cols[h] = i
	}
	userCol, userOK := cols[headerUsername]
	passCol, passOK := cols[headerPassword]
	if !userOK || !passOK {
		return nil, fmt.Errorf("%w: required headers %q and %q not found (got %v)",
			ErrMalformedSource, headerUsername, headerPassword, header)
	}
	factorCol, factorOK := cols[headerFactor]
	statusCol, statusOK := cols[headerStatus]

	cell := func(row []string, idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var accounts []Account
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedSource, line, err)
		}

		username := cell(row, userCol)
		password := cell(row, passCol)
		if username == "" || password == "" {
			r.logger.Warn("Skipping credential row with missing username or password",
				zap.Int("line", line))
			continue
		}

		a := Account{
			ID:     username,
			Secret: password,
			Active: true,
		}
		if factorOK {
			a.SecondFactor = cell(row, factorCol)
		}
		if statusOK {
			// "0" deactivates; anything else (including blank) stays active.
			a.Active = cell(row, statusCol) != "0"
		}
		accounts = append(accounts, a)
	}

	r.logger.Info("Credential source loaded",
		zap.String("path", r.path),
		zap.Int("accounts", len(accounts)))
	return accounts, nil
}
