package app

import (
	"math/rand/v2"

	"github.com/dkeye/Presence/internal/domain"
)

const (
	roomIDLen     = 8
	roomIDCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	adjectives = []string{
		"Fluffy", "Adorable", "Bouncy", "Cheerful", "Dancing",
		"Elegant", "Friendly", "Gentle", "Happy", "Jolly",
		"Lively", "Magical", "Noble", "Peaceful", "Quirky",
		"Radiant", "Silly", "Tender", "Upbeat", "Vibrant",
		"Warm", "Zealous", "Bright", "Cozy", "Dreamy",
	}
	nouns = []string{
		"Cookie", "Panda", "Kitten", "Puppy", "Cloud",
		"Star", "Moon", "Sun", "Rainbow", "Flower",
		"Bird", "Butterfly", "Dragon", "Phoenix", "Unicorn",
		"Crystal", "Diamond", "Pearl", "River", "Ocean",
		"Mountain", "Forest", "Garden", "Meadow", "Valley",
	}
)

// NewRoomID returns an 8 character alphanumeric id.
func NewRoomID() domain.RoomID {
	b := make([]byte, roomIDLen)
	for i := range b {
		b[i] = roomIDCharset[rand.IntN(len(roomIDCharset))]
	}
	return domain.RoomID(b)
}

// SuggestRoomName returns an adjective+noun name such as "FluffyPanda".
func SuggestRoomName() domain.RoomName {
	return domain.RoomName(adjectives[rand.IntN(len(adjectives))] + nouns[rand.IntN(len(nouns))])
}
