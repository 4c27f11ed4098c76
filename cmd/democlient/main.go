// Command democlient is a minimal entrypoint wiring package client
// together: no flag parsing, no interactive REPL, no signal handling
// (all out of scope, §1), hardcoded addresses and player name.
package main

import (
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/jurbbo/udp-multiplayer/client"
	"github.com/jurbbo/udp-multiplayer/metrics"
	"github.com/jurbbo/udp-multiplayer/protocol"
)

type loggingEvents struct {
	client.NopEvents
	logger *zap.Logger
}

func (e *loggingEvents) OnPlayerCreated(data *protocol.PlayerCreatedResponseData, err error) {
	if err != nil {
		e.logger.Warn("player enter rejected", zap.Error(err))
		return
	}
	e.logger.Info("joined session",
		zap.String("name", data.Player.Name),
		zap.Uint8("number", data.Player.Number),
		zap.Int("other_players", len(data.OtherPlayers)),
	)
}

func (e *loggingEvents) OnPlayerEnterPush(info *protocol.PlayerInfo) {
	e.logger.Info("peer joined", zap.String("name", info.Name), zap.Uint8("number", info.Number))
}

func (e *loggingEvents) OnPong(d time.Duration) {
	e.logger.Info("pong", zap.Duration("rtt", d))
}

func (e *loggingEvents) OnConnectionStateChange(degraded bool) {
	e.logger.Warn("connection state changed", zap.Bool("degraded", degraded))
}

func (e *loggingEvents) OnError(err error) {
	e.logger.Warn("receive error", zap.Error(err))
}

func main() {
	logger, err := metrics.NewLogger(true)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	c := client.New(1, client.WithLogger(logger))
	rc, err := c.Connect(
		&net.UDPAddr{IP: net.IPv4zero, Port: 0},
		&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9980},
	)
	if err != nil {
		logger.Fatal("connect failed", zap.Error(err))
	}
	if err := rc.Start(&loggingEvents{logger: logger}); err != nil {
		logger.Fatal("start failed", zap.Error(err))
	}

	if err := rc.Send(protocol.ClientPlayerEnterRequest, []byte("Demo")); err != nil {
		logger.Fatal("send failed", zap.Error(err))
	}

	time.Sleep(5 * time.Second)
	rc.Stop()
}
