package client

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jurbbo/udp-multiplayer/protocol"
)

type recordingEvents struct {
	NopEvents
	mu       sync.Mutex
	pongs    []time.Duration
	created  []*protocol.PlayerCreatedResponseData
	errs     []error
}

func (r *recordingEvents) OnPong(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pongs = append(r.pongs, d)
}

func (r *recordingEvents) OnPlayerCreated(data *protocol.PlayerCreatedResponseData, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errs = append(r.errs, err)
		return
	}
	r.created = append(r.created, data)
}

func (r *recordingEvents) snapshotPongs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pongs)
}

// S4: a PingRequest/PongResponse round trip finalizes the job and
// reaches OnPong.
func TestClientPingPongFinalizesJob(t *testing.T) {
	fakeServer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer fakeServer.Close()

	c := New(1)
	rc, err := c.Connect(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}, fakeServer.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatal(err)
	}
	events := &recordingEvents{}
	if err := rc.Start(events); err != nil {
		t.Fatal(err)
	}
	defer rc.Stop()

	go func() {
		buf := make([]byte, 10)
		for {
			n, addr, err := fakeServer.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if n < 2 {
				continue
			}
			handle := buf[0]
			reply := []byte{handle, protocol.KindByte(protocol.ServerPongResponse, protocol.ClientNone)}
			fakeServer.WriteToUDP(reply, addr)
		}
	}()

	if err := rc.Send(protocol.ClientPingRequest, nil); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events.snapshotPongs() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for OnPong")
}

func TestClientSendBeforeStartFails(t *testing.T) {
	c := New(1)
	rc, err := c.Connect(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9})
	if err != nil {
		t.Fatal(err)
	}
	if err := rc.Send(protocol.ClientPingRequest, nil); err != ErrNotInitialized {
		t.Fatalf("got %v, want ErrNotInitialized", err)
	}
}

// S6: after Stop, the receiver exits and IsRunning reports false.
func TestClientStopUnblocksReceiver(t *testing.T) {
	c := New(1)
	rc, err := c.Connect(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9})
	if err != nil {
		t.Fatal(err)
	}
	if err := rc.Start(&recordingEvents{}); err != nil {
		t.Fatal(err)
	}

	done := make(chan bool, 1)
	go func() { done <- rc.Stop() }()

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("Stop() returned false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return within 2s; receiver likely still blocked")
	}
	if rc.IsRunning() {
		t.Fatal("expected IsRunning() false after Stop")
	}
}
