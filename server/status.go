package server

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// runStatusReporter is C11, the session status reporter SPEC_FULL.md
// §11 adds on top of the base specification: a periodic roster report,
// reimagined from original_source's Server::init_status (which prints
// the roster via println! every ~10s) as a zap-logged ticker that also
// feeds the active-connections gauge, and made optional via
// WithStatusInterval rather than always-on.
func (rs *RunningServer) runStatusReporter(ctx context.Context) {
	ticker := time.NewTicker(rs.statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.reportStatus()
		}
	}
}

func (rs *RunningServer) reportStatus() {
	if rs.metrics != nil {
		rs.metrics.SetActiveConns(rs.connections.Len())
	}
	if rs.logger == nil {
		return
	}
	rs.connections.ForEachReset(func(addr string, conn Connection) {
		rs.logger.Info("session",
			zap.String("addr", addr),
			zap.Uint8("player_number", conn.PlayerNumber),
			zap.String("player_name", conn.PlayerName),
			zap.Int64("requests_in_interval", conn.RequestCount),
			zap.Int64("bytes_received", conn.BytesReceived),
			zap.Int64("bytes_sent", conn.BytesSent),
		)
	})
}
