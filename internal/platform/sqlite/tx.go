package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"hackmd-go/pkg/retry"
)

// ErrNestedTx возвращается при попытке открыть транзакцию внутри транзакции.
var ErrNestedTx = errors.New("sqlite: nested transactions are not supported")

// txKey используется как ключ для хранения транзакции в context.Context
type txKey struct{}

// Querier объединяет методы выполнения запросов, общие для БД и транзакции.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// TxRunner выполняет функции внутри транзакции и повторяет их при SQLITE_BUSY.
type TxRunner struct {
	DB    *sql.DB
	Retry retry.Policy
}

// NewTxRunner создает TxRunner с короткой политикой ретраев для блокировок.
func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{
		DB: db,
		Retry: retry.Policy{
			MaxAttempts:    3,
			BaseDelay:      10 * time.Millisecond,
			MaxDelay:       500 * time.Millisecond,
			Multiplier:     2.0,
			JitterStrategy: retry.JitterEqual,
		},
	}
}

// WithinTx выполняет fn внутри транзакции.
// Ошибка из fn откатывает транзакцию, nil коммитит её.
// Транзакция доступна внутри fn через GetQuerier(ctx).
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := SqlTx(ctx); ok {
		return ErrNestedTx
	}
	return retry.Do(ctx, r.Retry, func(ctx context.Context) error {
		return r.executeTx(ctx, fn)
	}, IsBusy)
}

// SqlTx извлекает активную транзакцию из контекста.
func SqlTx(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// GetQuerier возвращает транзакцию из контекста, если она есть,
// иначе основное подключение к БД.
func (r *TxRunner) GetQuerier(ctx context.Context) Querier {
	if tx, ok := SqlTx(ctx); ok {
		return tx
	}
	return r.DB
}

// executeTx выполняет одну попытку транзакции.
func (r *TxRunner) executeTx(ctx context.Context, fn func(context.Context) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// IsBusy сообщает, вызвана ли ошибка блокировкой базы (SQLITE_BUSY/SQLITE_LOCKED).
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "database is locked") ||
		strings.Contains(s, "SQLITE_BUSY") ||
		strings.Contains(s, "database table is locked")
}
