package protocol

import (
	"errors"
	"net"
	"testing"
)

func TestLayoutBuilderRejectsDuplicateName(t *testing.T) {
	b := NewLayoutBuilder()
	if err := b.Number("X", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := b.Number("X", 1)
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("got %v, want ErrDuplicateName", err)
	}
}

// P5: building a Layout that places any field after a dynamic field fails
// with DynamicNotLast.
func TestLayoutBuilderRejectsFieldAfterDynamic(t *testing.T) {
	b := NewLayoutBuilder()
	if err := b.DynamicString("Name"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Number("Trailer", 1); !errors.Is(err, ErrDynamicNotLast) {
		t.Fatalf("got %v, want ErrDynamicNotLast", err)
	}
}

func TestLayoutBuilderRejectsEmptyArray(t *testing.T) {
	b := NewLayoutBuilder()
	err := b.Array("Items", &Layout{})
	if !errors.Is(err, ErrEmptyArrayLayout) {
		t.Fatalf("got %v, want ErrEmptyArrayLayout", err)
	}
}

func TestRawDataBuilderRejectsOutOfOrder(t *testing.T) {
	layout := MustBuild(func(b *LayoutBuilder) error {
		if err := b.Number("A", 1); err != nil {
			return err
		}
		return b.Number("B", 1)
	})
	rb := NewRawDataBuilder(layout)
	err := rb.AddU8("B", 1)
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("got %v, want ErrOutOfOrder", err)
	}
}

func TestFixedStringPadsAndTruncates(t *testing.T) {
	layout := MustBuild(func(b *LayoutBuilder) error {
		return b.FixedString("Name", 5)
	})
	rb := NewRawDataBuilder(layout)
	if err := rb.AddFixedString("Name", "ab"); err != nil {
		t.Fatal(err)
	}
	out, _ := rb.Build()
	if string(out) != "ab\x00\x00\x00" {
		t.Fatalf("got %q", out)
	}

	rb2 := NewRawDataBuilder(layout)
	if err := rb2.AddFixedString("Name", "abcdefg"); err != nil {
		t.Fatal(err)
	}
	out2, _ := rb2.Build()
	if string(out2) != "abcde" {
		t.Fatalf("got %q, want truncated to 5 bytes", out2)
	}
}

// P4 (round-trip codec): for every named message, parse(build(x)) == x
// modulo FixedString zero-padding and IPv4-only address restriction.
func TestPlayerEnterRequestRoundTrip(t *testing.T) {
	cat := NewCatalogue()
	body, err := BuildPlayerEnterRequest(cat, "Ann")
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "Ann" {
		t.Fatalf("got %q, want raw dynamic bytes", body)
	}
	name, err := ParsePlayerEnterRequest(cat, body)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Ann" {
		t.Fatalf("got %q, want Ann", name)
	}
}

func TestPlayerEnterPushRoundTrip(t *testing.T) {
	cat := NewCatalogue()
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 4242}
	body, err := BuildPlayerEnterPush(cat, "Bob", 3, addr)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) != 22 {
		t.Fatalf("got %d bytes, want 22", len(body))
	}
	info, err := ParsePlayerEnterPush(cat, body)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "Bob" || info.Number != 3 {
		t.Fatalf("got %+v", info)
	}
	if info.Addr == nil || !info.Addr.IP.Equal(addr.IP) || info.Addr.Port != addr.Port {
		t.Fatalf("got addr %+v, want %+v", info.Addr, addr)
	}
}

func TestPlayerEnterPushNonIPv4EncodesToZero(t *testing.T) {
	cat := NewCatalogue()
	v6 := &net.UDPAddr{IP: net.ParseIP("::1"), Port: 80}
	body, err := BuildPlayerEnterPush(cat, "Cam", 1, v6)
	if err != nil {
		t.Fatal(err)
	}
	info, err := ParsePlayerEnterPush(cat, body)
	if err != nil {
		t.Fatal(err)
	}
	if info.Addr != nil {
		t.Fatalf("got %+v, want nil addr for non-IPv4 input", info.Addr)
	}
}

func TestPlayerCreatedResponseRoundTripWithOthers(t *testing.T) {
	cat := NewCatalogue()
	others := []ConnectionView{
		{PlayerNumber: 1, PlayerName: "A", Addr: &net.UDPAddr{IP: net.IPv4(1, 1, 1, 1), Port: 100}},
		{PlayerNumber: 2, PlayerName: "B", Addr: &net.UDPAddr{IP: net.IPv4(2, 2, 2, 2), Port: 200}},
	}
	body, err := BuildPlayerCreatedResponse(cat, StatusSuccess, "B", 2, others)
	if err != nil {
		t.Fatal(err)
	}
	data, err := ParsePlayerCreatedResponse(cat, body)
	if err != nil {
		t.Fatal(err)
	}
	if data.Player.Name != "B" || data.Player.Number != 2 {
		t.Fatalf("got %+v", data.Player)
	}
	if len(data.OtherPlayers) != 2 {
		t.Fatalf("got %d other players, want 2", len(data.OtherPlayers))
	}
	if data.OtherPlayers[0].Name != "A" || data.OtherPlayers[1].Name != "B" {
		t.Fatalf("got %+v", data.OtherPlayers)
	}
}

func TestPlayerCreatedResponseStatusErrors(t *testing.T) {
	cat := NewCatalogue()
	body, err := BuildPlayerCreatedResponse(cat, StatusNameTaken, "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = ParsePlayerCreatedResponse(cat, body)
	var svcErr *ServerError
	if !errors.As(err, &svcErr) {
		t.Fatalf("got %v, want *ServerError", err)
	}
	if svcErr.Status != StatusNameTaken {
		t.Fatalf("got status %d, want %d", svcErr.Status, StatusNameTaken)
	}
}

func TestIterArrayDropsTrailingPartialElement(t *testing.T) {
	cat := NewCatalogue()
	body, err := BuildPlayerCreatedResponse(cat, StatusSuccess, "A", 1, []ConnectionView{
		{PlayerNumber: 1, PlayerName: "A"},
	})
	if err != nil {
		t.Fatal(err)
	}
	truncated := body[:len(body)-5] // chop into the single array element
	data, err := ParsePlayerCreatedResponse(cat, truncated)
	if err != nil {
		t.Fatal(err)
	}
	if len(data.OtherPlayers) != 0 {
		t.Fatalf("got %d elements, want the partial element dropped", len(data.OtherPlayers))
	}
}

func TestCatalogueLookupMiss(t *testing.T) {
	cat := NewCatalogue()
	_, err := cat.Lookup("Nonexistent")
	if !errors.Is(err, ErrProtocolNotFound) {
		t.Fatalf("got %v, want ErrProtocolNotFound", err)
	}
}

func TestKindBytePackUnpack(t *testing.T) {
	b := KindByte(ServerPlayerCreatedResponse, ClientPlayerEnterRequest)
	if b != 0x43 {
		t.Fatalf("got %#x, want 0x43", b)
	}
	server, client := SplitKindByte(b)
	if server != ServerPlayerCreatedResponse || client != ClientPlayerEnterRequest {
		t.Fatalf("got (%d,%d)", server, client)
	}
}
