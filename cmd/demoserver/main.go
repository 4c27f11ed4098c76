// Command demoserver is a minimal entrypoint wiring package server
// together: no flag parsing and no signal handling (both out of scope,
// §1), hardcoded local address mirroring the teacher's own main().
package main

import (
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/jurbbo/udp-multiplayer/metrics"
	"github.com/jurbbo/udp-multiplayer/server"
)

func main() {
	logger, err := metrics.NewLogger(true)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	recorder := metrics.NewRecorder("udpmp_server")

	s := server.New(4,
		server.WithLogger(logger),
		server.WithMetrics(recorder),
		server.WithStatusInterval(10*time.Second),
	)
	rs, err := s.Bind(&net.UDPAddr{IP: net.IPv4zero, Port: 9980})
	if err != nil {
		logger.Fatal("bind failed", zap.Error(err))
	}
	if err := rs.Start(); err != nil {
		logger.Fatal("start failed", zap.Error(err))
	}

	logger.Info("server listening on :9980")
	select {}
}
