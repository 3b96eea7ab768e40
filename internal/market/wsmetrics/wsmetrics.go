package wsmetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Conns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "market_ws_conns",
		Help: "Active market websocket connections",
	})
	ConnOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_ws_conn_open_total",
		Help: "Total market websocket connections opened",
	})
	ConnCloseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_ws_conn_close_total",
		Help: "Total market websocket connections closed, partitioned by close code and reason",
	}, []string{"code", "reason"})

	MsgsOutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_ws_msgs_out_total",
		Help: "Messages written to clients, by envelope type",
	}, []string{"type"})
	BytesOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_ws_bytes_out_total",
		Help: "Total websocket bytes sent out",
	})
	WriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_ws_write_errors_total",
		Help: "Total websocket write errors",
	})
	ChatInTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_ws_chat_in_total",
		Help: "Inbound chat messages, by result",
	}, []string{"result"}) // ok/rejected

	PingErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_ws_ping_errors_total",
		Help: "Total ping send errors",
	})

	WriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "market_ws_write_duration_seconds",
		Help:    "Duration of a single websocket write",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms -> ~4s
	})
)

func OnOpen() {
	Conns.Inc()
	ConnOpenTotal.Inc()
}

func OnClose(code int, reason string) {
	Conns.Dec()
	ConnCloseTotal.WithLabelValues(strconv.Itoa(code), reason).Inc()
}

func ObserveWrite(kind string, bytes int, dur time.Duration, err error) {
	WriteDuration.Observe(dur.Seconds())
	if err != nil {
		WriteErrorsTotal.Inc()
		return
	}
	MsgsOutTotal.WithLabelValues(kind).Inc()
	BytesOutTotal.Add(float64(bytes))
}
