package client

import (
	"time"

	"github.com/jurbbo/udp-multiplayer/protocol"
)

// Events is the application-level callback surface (C9). The embedding
// application supplies an implementation; RunningClient invokes these
// from its receiver goroutine while holding no internal locks (§4.9).
type Events interface {
	OnDataPushAction(payload []byte)
	OnDataPushReceived(fromPlayer uint8, payload []byte)
	OnDataRequest(payload []byte)
	OnPong(d time.Duration)
	OnPlayerCreated(data *protocol.PlayerCreatedResponseData, err error)
	OnPlayerEnterPush(info *protocol.PlayerInfo)
	OnPlayerLeave(payload []byte)
	OnError(err error)
	OnConnectionStateChange(degraded bool)
}

// NopEvents is a zero-value Events implementation for callers that only
// care about a subset of events; embed it and override as needed.
type NopEvents struct{}

func (NopEvents) OnDataPushAction([]byte)                                      {}
func (NopEvents) OnDataPushReceived(uint8, []byte)                             {}
func (NopEvents) OnDataRequest([]byte)                                         {}
func (NopEvents) OnPong(time.Duration)                                         {}
func (NopEvents) OnPlayerCreated(*protocol.PlayerCreatedResponseData, error)   {}
func (NopEvents) OnPlayerEnterPush(*protocol.PlayerInfo)                       {}
func (NopEvents) OnPlayerLeave([]byte)                                         {}
func (NopEvents) OnError(error)                                                {}
func (NopEvents) OnConnectionStateChange(bool)                                 {}
