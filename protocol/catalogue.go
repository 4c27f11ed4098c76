package protocol

import "fmt"

// Layout names in the catalogue (§4.3).
const (
	LayoutPlayerEnterRequest   = "PlayerEnterRequest"
	LayoutPlayerEnterPush     = "PlayerEnterPush"
	LayoutPlayerCreatedResponse = "PlayerCreatedResponse"
)

// Catalogue maps message-kind names to Layouts (C3). It is initialized
// eagerly with the wire layouts the service ships with; lookups on an
// unregistered name return ErrProtocolNotFound.
type Catalogue struct {
	layouts map[string]*Layout
}

// NewCatalogue builds the catalogue with the built-in layouts registered.
// Malformed static definitions panic (programmer error), never return an
// error here: there is no runtime input to reject.
func NewCatalogue() *Catalogue {
	c := &Catalogue{layouts: make(map[string]*Layout)}
	c.layouts[LayoutPlayerEnterRequest] = playerEnterRequestLayout()
	c.layouts[LayoutPlayerEnterPush] = playerEnterPushLayout()
	c.layouts[LayoutPlayerCreatedResponse] = playerCreatedResponseLayout()
	return c
}

// Lookup returns the named layout, or ErrProtocolNotFound.
func (c *Catalogue) Lookup(name string) (*Layout, error) {
	l, ok := c.layouts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProtocolNotFound, name)
	}
	return l, nil
}

func playerEnterRequestLayout() *Layout {
	return MustBuild(func(b *LayoutBuilder) error {
		return b.DynamicString("PlayerName")
	})
}

// playerAddressElementLayout is the 22-byte shape shared by
// PlayerCreatedResponse's OtherPlayers elements and the PlayerEnterPush
// body: {PlayerNumber:u8, PlayerName:FixedString(15), PlayerIP:bytes(4),
// PlayerPort:u16} (§4.3/§6).
func playerAddressElementLayout() *Layout {
	return MustBuild(func(b *LayoutBuilder) error {
		if err := b.Number("PlayerNumber", 1); err != nil {
			return err
		}
		if err := b.FixedString("PlayerName", 15); err != nil {
			return err
		}
		if err := b.FixedString("PlayerIP", 4); err != nil {
			return err
		}
		return b.Number("PlayerPort", 2)
	})
}

func playerEnterPushLayout() *Layout {
	return playerAddressElementLayout()
}

func playerCreatedResponseLayout() *Layout {
	return MustBuild(func(b *LayoutBuilder) error {
		if err := b.Number("Status", 1); err != nil {
			return err
		}
		if err := b.Number("PlayerNumber", 1); err != nil {
			return err
		}
		if err := b.FixedString("PlayerName", 15); err != nil {
			return err
		}
		return b.Array("OtherPlayers", playerAddressElementLayout())
	})
}
