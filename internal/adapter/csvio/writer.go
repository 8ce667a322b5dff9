package csvio

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/iho/txengine/internal/domain"
)

var accountHeader = []string{"client", "available", "held", "total", "locked"}

// Writer renders account snapshots as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteAccounts writes the header and one row per account in the given
// order, then flushes.
func (w *Writer) WriteAccounts(accounts []domain.Account) error {
	if err := w.csv.Write(accountHeader); err != nil {
		return err
	}

	row := make([]string, len(accountHeader))
	for _, acc := range accounts {
		row[0] = strconv.FormatUint(uint64(acc.ClientID), 10)
		row[1] = acc.Available.StringFixed(domain.AmountPrecision)
		row[2] = acc.Held.StringFixed(domain.AmountPrecision)
		row[3] = acc.Total.StringFixed(domain.AmountPrecision)
		row[4] = strconv.FormatBool(acc.Locked)

		if err := w.csv.Write(row); err != nil {
			return err
		}
	}

	w.csv.Flush()
	return w.csv.Error()
}
