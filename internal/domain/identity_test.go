package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name     string
		id       UserID
		username string
		avatar   AvatarID
		wantErr  error
	}{
		{"valid", "u1", "Alice", "kazuha", nil},
		{"max lengths", UserID(strings.Repeat("u", MaxUserIDLen)), strings.Repeat("a", MaxUsernameLen), "shenhe", nil},
		{"empty user id", "", "Alice", "kazuha", ErrUserIDEmpty},
		{"blank user id", "  ", "Alice", "kazuha", ErrUserIDEmpty},
		{"long user id", UserID(strings.Repeat("u", MaxUserIDLen+1)), "Alice", "kazuha", ErrUserIDTooLong},
		{"empty username", "u1", "", "kazuha", ErrUsernameEmpty},
		{"long username", "u1", strings.Repeat("a", MaxUsernameLen+1), "kazuha", ErrUsernameTooLong},
		{"unknown avatar", "u1", "Alice", "pikachu", ErrUnknownAvatar},
		{"empty avatar", "u1", "Alice", "", ErrUnknownAvatar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewIdentity(tt.id, tt.username, tt.avatar)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, Member{UserID: tt.id, Username: tt.username, AvatarID: tt.avatar}, id.Member())
		})
	}
}

func TestValidateRoomID(t *testing.T) {
	require.NoError(t, ValidateRoomID("R1"))
	require.ErrorIs(t, ValidateRoomID(""), ErrRoomIDEmpty)
	require.ErrorIs(t, ValidateRoomID(RoomID(strings.Repeat("r", MaxRoomIDLen+1))), ErrRoomIDTooLong)
}

func TestRoomAdmits(t *testing.T) {
	public := Room{ID: "R1", IsPublic: true, Password: "ignored"}
	require.True(t, public.Admits(""))

	private := Room{ID: "R2", Password: "s3cret"}
	require.True(t, private.Admits("s3cret"))
	require.False(t, private.Admits(""))
	require.False(t, private.Admits("guess"))

	require.NoError(t, ValidateRoomName("FluffyPanda"))
	require.ErrorIs(t, ValidateRoomName(RoomName(strings.Repeat("n", MaxRoomNameLen+1))), ErrRoomNameTooLong)
}
