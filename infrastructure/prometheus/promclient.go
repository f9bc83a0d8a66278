package promclient

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "promclient")

var OpenOrderBookGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "open_order_books",
		Help: "number of order books currently maintained",
	},
)

var ChecksumMismatchCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_checksum_mismatch_total",
		Help: "order book checksum verification failures",
	},
)

var BookResyncCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_resync_total",
		Help: "forced order book resubscriptions",
	},
)

var MalformedFrameCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "inbound frames dropped because they failed to decode",
	},
)

var ReconnectCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ws_reconnect_total",
		Help: "websocket reconnections, the first connect included",
	},
)

func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	reg.MustRegister(OpenOrderBookGauge)
	reg.MustRegister(ChecksumMismatchCounter)
	reg.MustRegister(BookResyncCounter)
	reg.MustRegister(MalformedFrameCounter)
	reg.MustRegister(ReconnectCounter)
	reg.MustRegister(collectors.NewGoCollector())

	http.Handle("/metrics", promHandler)
	logger.Infof("prometheus server listening at %s", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatalf("failed to serve: %v", err)
	}
}
