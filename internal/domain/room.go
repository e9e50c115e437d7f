package domain

import (
	"fmt"
	"strings"
)

// RoomID identifies a collaborative space, e.g. "!abc:example.org".
type RoomID string

func (r RoomID) validate() error {
	if strings.TrimSpace(string(r)) == "" {
		return fmt.Errorf("%w: room id is required", ErrInvalidArgument)
	}
	if len(r) > MaxRoomIDLen {
		return fmt.Errorf("%w: room id too long", ErrInvalidArgument)
	}
	return nil
}
