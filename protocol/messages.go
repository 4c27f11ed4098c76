// Package protocol implements the binary layout system (C2), the named
// layout catalogue (C3), and the typed application-layer builders/parsers
// (C5) the client and server runtimes exchange over UDP.
package protocol

import (
	"fmt"
	"net"
	"strings"
)

// ServerStatus is the Status byte carried by PlayerCreatedResponse (§4.3).
type ServerStatus uint8

const (
	StatusSuccess          ServerStatus = 1
	StatusInvalidRequest   ServerStatus = 100
	StatusNameTaken        ServerStatus = 101
	StatusCapacityExceeded ServerStatus = 102
)

// ServerError wraps a non-success ServerStatus reported inside an
// otherwise well-formed response (§7: ServerError taxonomy).
type ServerError struct {
	Status ServerStatus
}

func (e *ServerError) Error() string {
	switch e.Status {
	case StatusInvalidRequest:
		return "server: invalid request"
	case StatusNameTaken:
		return "server: player name already taken"
	case StatusCapacityExceeded:
		return "server: session is full"
	default:
		return fmt.Sprintf("server: invalid status code %d", e.Status)
	}
}

// PlayerInfo is the client-side decoded view of a peer (§3: "Player
// record").
type PlayerInfo struct {
	Name   string
	Number uint8
	Addr   *net.UDPAddr // nil if the encoded address was not IPv4
}

// PlayerCreatedResponseData is the decoded, successful body of a
// PlayerCreatedResponse.
type PlayerCreatedResponseData struct {
	Player       PlayerInfo
	OtherPlayers []PlayerInfo
}

// ConnectionView is the minimal shape BuildPlayerCreatedResponse needs
// from a server-side session entry, kept independent of the server
// package's Connection type to avoid an import cycle.
type ConnectionView struct {
	PlayerNumber uint8
	PlayerName   string
	Addr         *net.UDPAddr
}

func encodeIPv4Port(addr *net.UDPAddr) ([4]byte, uint16) {
	var ip [4]byte
	if addr == nil {
		return ip, 0
	}
	v4 := addr.IP.To4()
	if v4 == nil {
		return ip, 0 // non-IPv4 encodes to 0.0.0.0:0 (§4.5)
	}
	copy(ip[:], v4)
	return ip, uint16(addr.Port)
}

func decodeIPv4Port(ip []byte, port uint16) *net.UDPAddr {
	if len(ip) != 4 || (ip[0] == 0 && ip[1] == 0 && ip[2] == 0 && ip[3] == 0 && port == 0) {
		return nil
	}
	return &net.UDPAddr{IP: net.IPv4(ip[0], ip[1], ip[2], ip[3]), Port: int(port)}
}

func trimFixed(s string) string {
	return strings.TrimRight(s, "\x00")
}

// BuildPlayerEnterRequest encodes a PlayerEnterRequest body (name only, no
// header).
func BuildPlayerEnterRequest(cat *Catalogue, name string) ([]byte, error) {
	layout, err := cat.Lookup(LayoutPlayerEnterRequest)
	if err != nil {
		return nil, err
	}
	b := NewRawDataBuilder(layout)
	if err := b.AddDynamicString("PlayerName", name); err != nil {
		return nil, err
	}
	return b.Build()
}

// ParsePlayerEnterRequest decodes the body sent to PlayerEnterRequest,
// returning the lossily-decoded player name.
func ParsePlayerEnterRequest(cat *Catalogue, raw []byte) (string, error) {
	layout, err := cat.Lookup(LayoutPlayerEnterRequest)
	if err != nil {
		return "", err
	}
	sd, err := Parse(layout, raw)
	if err != nil {
		return "", err
	}
	return sd.GetString("PlayerName")
}

func fillPlayerAddressElement(b *RawDataBuilder, number uint8, name string, addr *net.UDPAddr) error {
	if err := b.AddU8("PlayerNumber", number); err != nil {
		return err
	}
	if err := b.AddFixedString("PlayerName", name); err != nil {
		return err
	}
	ip, port := encodeIPv4Port(addr)
	if err := b.AddBytes("PlayerIP", ip[:]); err != nil {
		return err
	}
	return b.AddU16("PlayerPort", port)
}

// BuildPlayerEnterPush encodes a PlayerEnterPush body.
func BuildPlayerEnterPush(cat *Catalogue, name string, number uint8, addr *net.UDPAddr) ([]byte, error) {
	layout, err := cat.Lookup(LayoutPlayerEnterPush)
	if err != nil {
		return nil, err
	}
	b := NewRawDataBuilder(layout)
	if err := fillPlayerAddressElement(b, number, name, addr); err != nil {
		return nil, err
	}
	return b.Build()
}

// ParsePlayerEnterPush decodes a PlayerEnterPush body into a PlayerInfo.
func ParsePlayerEnterPush(cat *Catalogue, raw []byte) (*PlayerInfo, error) {
	layout, err := cat.Lookup(LayoutPlayerEnterPush)
	if err != nil {
		return nil, err
	}
	sd, err := Parse(layout, raw)
	if err != nil {
		return nil, err
	}
	return decodePlayerAddressElement(sd)
}

func decodePlayerAddressElement(sd *StructuredData) (*PlayerInfo, error) {
	number, err := sd.GetU8("PlayerNumber")
	if err != nil {
		return nil, err
	}
	name, err := sd.GetString("PlayerName")
	if err != nil {
		return nil, err
	}
	ip, err := sd.GetBytes("PlayerIP")
	if err != nil {
		return nil, err
	}
	port, err := sd.GetU16("PlayerPort")
	if err != nil {
		return nil, err
	}
	return &PlayerInfo{Name: trimFixed(name), Number: number, Addr: decodeIPv4Port(ip, port)}, nil
}

// BuildPlayerCreatedResponse encodes a PlayerCreatedResponse body. others
// is iterated in order to produce the OtherPlayers array; per §11's
// resolution of the source's OtherPlayers ambiguity, callers pass the full
// post-insertion connection set, including the newly-added player, and
// this function does not filter it further.
func BuildPlayerCreatedResponse(cat *Catalogue, status ServerStatus, name string, number uint8, others []ConnectionView) ([]byte, error) {
	layout, err := cat.Lookup(LayoutPlayerCreatedResponse)
	if err != nil {
		return nil, err
	}
	b := NewRawDataBuilder(layout)
	if err := b.AddU8("Status", uint8(status)); err != nil {
		return nil, err
	}
	if err := b.AddU8("PlayerNumber", number); err != nil {
		return nil, err
	}
	if err := b.AddFixedString("PlayerName", name); err != nil {
		return nil, err
	}
	for _, other := range others {
		other := other
		if err := b.AddArrayElement("OtherPlayers", func(elem *RawDataBuilder) error {
			return fillPlayerAddressElement(elem, other.PlayerNumber, other.PlayerName, other.Addr)
		}); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// ParsePlayerCreatedResponse decodes a PlayerCreatedResponse body. The
// outer error is a layout/decode failure (ProtocolError); a non-success
// Status is reported as a *ServerError rather than a layout error, so
// callers can distinguish "malformed datagram" from "server rejected the
// request" via errors.As.
func ParsePlayerCreatedResponse(cat *Catalogue, raw []byte) (*PlayerCreatedResponseData, error) {
	layout, err := cat.Lookup(LayoutPlayerCreatedResponse)
	if err != nil {
		return nil, err
	}
	// A rejection reply may carry only the Status byte, so a non-success
	// Status is reported before the full layout length is checked.
	if f, ok := layout.Field("Status"); ok && len(raw) > f.StartByte {
		if status := ServerStatus(raw[f.StartByte]); status != StatusSuccess {
			return nil, &ServerError{Status: status}
		}
	}
	sd, err := Parse(layout, raw)
	if err != nil {
		return nil, err
	}
	statusByte, err := sd.GetU8("Status")
	if err != nil {
		return nil, err
	}
	status := ServerStatus(statusByte)
	if status != StatusSuccess {
		return nil, &ServerError{Status: status}
	}
	number, err := sd.GetU8("PlayerNumber")
	if err != nil {
		return nil, err
	}
	name, err := sd.GetString("PlayerName")
	if err != nil {
		return nil, err
	}
	elements, err := sd.IterArray("OtherPlayers")
	if err != nil {
		return nil, err
	}
	others := make([]PlayerInfo, 0, len(elements))
	for _, elem := range elements {
		info, err := decodePlayerAddressElement(elem)
		if err != nil {
			return nil, err
		}
		others = append(others, *info)
	}
	return &PlayerCreatedResponseData{
		Player:       PlayerInfo{Name: trimFixed(name), Number: number},
		OtherPlayers: others,
	}, nil
}
