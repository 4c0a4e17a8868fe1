package domain

import (
	"errors"
	"math/rand/v2"
)

const (
	MaxRoomIDLen = 64
	roomIDLen    = 6
	roomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

type RoomID string

// NewRoomID returns a short random id suitable for a shareable room link.
func NewRoomID() RoomID {
	b := make([]byte, roomIDLen)
	for i := range b {
		b[i] = roomAlphabet[rand.IntN(len(roomAlphabet))]
	}
	return RoomID(b)
}

// ParseRoomID accepts any non-empty id up to MaxRoomIDLen bytes.
func ParseRoomID(raw string) (RoomID, error) {
	if len(raw) == 0 {
		return "", ErrRoomIDEmpty
	}
	if len(raw) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(raw), nil
}
