// Package domain contains membership entities and the checks applied before
// anything reaches the event log.
package domain

import (
	"fmt"
	"strings"
)

const (
	MaxMemberIDLen = 255
	MaxRoomIDLen   = 255
)

// MemberID identifies a participant, e.g. "@alice:example.org".
type MemberID string

// Domain returns the network-domain part of the identifier: everything after
// the first ':'. Identifiers without a ':' have no domain.
func (m MemberID) Domain() string {
	_, host, ok := strings.Cut(string(m), ":")
	if !ok {
		return ""
	}
	return host
}

func (m MemberID) validate() error {
	if strings.TrimSpace(string(m)) == "" {
		return fmt.Errorf("%w: member id is required", ErrInvalidArgument)
	}
	if len(m) > MaxMemberIDLen {
		return fmt.Errorf("%w: member id too long", ErrInvalidArgument)
	}
	return nil
}
