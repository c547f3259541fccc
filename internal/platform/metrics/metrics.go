// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はサービス層から利用するメトリクス記録のインターフェース。
type Recorder interface {
	RecordBorrow(result string)
	RecordReturn(result string)
	RecordTxRetry()
	RecordReminder(kind, result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	borrows   *prometheus.CounterVec
	returns   *prometheus.CounterVec
	txRetries prometheus.Counter
	reminders *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		borrows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libra_borrow_total",
			Help: "貸出リクエストの結果別件数",
		}, []string{"result"}),
		returns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libra_return_total",
			Help: "返却リクエストの結果別件数",
		}, []string{"result"}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libra_tx_retries_total",
			Help: "ロック競合によるトランザクション再実行の合計数",
		}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libra_reminders_sent_total",
			Help: "リマインダー送信の種別・結果別件数",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(c.borrows, c.returns, c.txRetries, c.reminders)
	return c
}

func (c *Collector) RecordBorrow(result string) { c.borrows.WithLabelValues(result).Inc() }

func (c *Collector) RecordReturn(result string) { c.returns.WithLabelValues(result).Inc() }

func (c *Collector) RecordTxRetry() { c.txRetries.Inc() }

func (c *Collector) RecordReminder(kind, result string) {
	c.reminders.WithLabelValues(kind, result).Inc()
}

// Nop は何も記録しない Recorder。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordBorrow(string)           {}
func (Nop) RecordReturn(string)           {}
func (Nop) RecordTxRetry()                {}
func (Nop) RecordReminder(string, string) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
