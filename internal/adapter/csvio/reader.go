package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/txengine/internal/domain"
	"github.com/iho/txengine/internal/usecase"
)

// Input column names.
const (
	ColumnType   = "type"
	ColumnClient = "client"
	ColumnTx     = "tx"
	ColumnAmount = "amount"
)

var ErrInvalidHeader = errors.New("invalid csv header")

// Reader parses transaction records in the form
//
//	type, client, tx, amount
//	deposit, 1, 1, 1.0
//	dispute, 1, 1,
//
// Fields are trimmed and rows may omit the trailing amount column. Reader
// implements usecase.RecordSource.
type Reader struct {
	csv     *csv.Reader
	line    int
	started bool

	typeIdx   int
	clientIdx int
	txIdx     int
	amountIdx int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	return &Reader{csv: cr, amountIdx: -1}
}

// Line returns the input line of the last record returned by Next.
func (r *Reader) Line() int {
	return r.line
}

// Next returns the next transaction. It returns io.EOF at the end of input,
// a *usecase.RecordError for a malformed row and any other error for an
// unreadable source or header.
func (r *Reader) Next() (domain.Transaction, error) {
	if !r.started {
		if err := r.readHeader(); err != nil {
			return domain.Transaction{}, err
		}
		r.started = true
	}

	record, err := r.csv.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			r.line = parseErr.Line
			return domain.Transaction{}, &usecase.RecordError{Line: parseErr.Line, Err: parseErr.Err}
		}
		return domain.Transaction{}, err
	}
	r.line, _ = r.csv.FieldPos(0)

	tx, err := r.parse(record)
	if err != nil {
		return domain.Transaction{}, &usecase.RecordError{Line: r.line, Err: err}
	}
	return tx, nil
}

func (r *Reader) readHeader() error {
	header, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	r.typeIdx, r.clientIdx, r.txIdx = -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ColumnType:
			r.typeIdx = i
		case ColumnClient:
			r.clientIdx = i
		case ColumnTx:
			r.txIdx = i
		case ColumnAmount:
			r.amountIdx = i
		}
	}

	if r.typeIdx < 0 || r.clientIdx < 0 || r.txIdx < 0 {
		return fmt.Errorf("%w: need columns %s, %s, %s; got %q",
			ErrInvalidHeader, ColumnType, ColumnClient, ColumnTx, header)
	}
	return nil
}

func (r *Reader) parse(record []string) (domain.Transaction, error) {
	kind, err := domain.ParseKind(field(record, r.typeIdx))
	if err != nil {
		return domain.Transaction{}, err
	}

	client, err := strconv.ParseUint(field(record, r.clientIdx), 10, 16)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid client id: %w", err)
	}

	txID, err := strconv.ParseUint(field(record, r.txIdx), 10, 32)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid transaction id: %w", err)
	}

	tx := domain.Transaction{
		Kind:     kind,
		ClientID: domain.ClientID(client),
		TxID:     domain.TransactionID(txID),
	}

	if raw := field(record, r.amountIdx); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("invalid amount %q: %w", raw, err)
		}
		tx.Amount = decimal.NewNullDecimal(amount)
	}

	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}

// field returns the trimmed value at idx, or "" when the row is short.
func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
