package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/spooky-finn/go-ftx-bridge/config"
	"github.com/spooky-finn/go-ftx-bridge/domain"
	"github.com/spooky-finn/go-ftx-bridge/ftx"
	promclient "github.com/spooky-finn/go-ftx-bridge/infrastructure/prometheus"
	"github.com/spooky-finn/go-ftx-bridge/usecase"
)

func main() {
	conf := config.Load()

	client := ftx.NewStreamClient(conf)
	if err := client.Connect(); err != nil {
		logrus.Fatalf("failed to connect to the exchange stream: %s", err)
	}
	defer client.Close()

	go promclient.StartPromClientServer(conf.MetricsAddr)

	streamAPI := ftx.NewStreamAPI(client)
	depth := usecase.NewMarketDepthUseCase(streamAPI)

	symbol, err := domain.NewMarketSymbolFromString("BTC/USD")
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.Key != "" {
		fills, err := streamAPI.Fills(nil)
		if err != nil {
			logrus.Fatalf("failed to subscribe to fills: %s", err)
		}
		go func() {
			for fill := range fills.Stream {
				logrus.Infof("fill: %s %s %s@%s", fill.Market, fill.Side, fill.Size, fill.Price)
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			mid, err := depth.GetMidPrice(symbol)
			if err != nil {
				logrus.Warnf("mid price unavailable for %s: %s", symbol, err)
				continue
			}

			quote, err := depth.GetQuote(symbol, domain.SideBuy, decimal.NewFromInt(1))
			if err != nil {
				logrus.Warnf("quote unavailable for %s: %s", symbol, err)
				continue
			}

			logrus.Infof("%s mid=%s buy_1=%s", symbol, mid, quote)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
