package db

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"time"

	"github.com/go-sql-driver/mysql"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQL のエラー番号
const (
	ErDupEntry         = 1062
	ErRowIsReferenced2 = 1451
	ErLockWaitTimeout  = 1205
	ErLockDeadlock     = 1213
	ErNoReferencedRow2 = 1452
)

// Txを開始して fn を実行。fn が nil を返せば COMMIT、エラーなら ROLLBACK。
func RunInTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// 読み取り専用Tx
func ReadOnly(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) error {
	return RunInTx(ctx, db, &sql.TxOptions{ReadOnly: true}, fn)
}

// RetryPolicy はデッドロック等で失敗した Tx の再実行ルール。
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	JitterFactor float64
	// OnRetry は再実行の直前に呼ばれる（メトリクス用、nil 可）
	OnRetry func(attempt int, err error)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		BaseDelay:    10 * time.Millisecond,
		JitterFactor: 0.3,
	}
}

// RunInTxWithRetry は RunInTx を実行し、ロック競合で失敗した場合は Tx 全体をやり直す。
// fn は再実行されても副作用が残らないこと（Tx 外の状態に触れない）。
func RunInTxWithRetry(ctx context.Context, db *sql.DB, opts *sql.TxOptions, policy RetryPolicy, fn func(ctx context.Context, tx DBTX) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err = RunInTx(ctx, db, opts, fn)
		if err == nil || !IsRetryable(err) || attempt == policy.MaxAttempts {
			return err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.backoff(attempt)):
		}
	}
	return err
}

// 10ms, 20ms, 40ms ... に ±JitterFactor の揺らぎを加える
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.JitterFactor > 0 && d > 0 {
		jitter := (rand.Float64()*2 - 1) * p.JitterFactor * float64(d)
		d += time.Duration(jitter)
	}
	if d < 0 {
		return 0
	}
	return d
}

// IsRetryable はデッドロック/ロック待ちタイムアウトかを判定する。
func IsRetryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == ErLockDeadlock || me.Number == ErLockWaitTimeout
	}
	return false
}

// IsDuplicateKey は UNIQUE 制約違反かを判定する。
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == ErDupEntry
}

// IsForeignKeyViolation は参照先が存在しない INSERT/UPDATE かを判定する。
func IsForeignKeyViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == ErNoReferencedRow2
}

// IsReferenced は子行が残っている親行の DELETE かを判定する。
func IsReferenced(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == ErRowIsReferenced2
}
