package presence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "ws://localhost:8080/ws"},
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://chat.example.com", "wss://chat.example.com/ws"},
		{"https://chat.example.com/api/", "wss://chat.example.com/api/ws"},
		{"ws://10.0.0.1:9000?x=1", "ws://10.0.0.1:9000/ws"},
	}
	for _, tt := range tests {
		got, err := ResolveEndpoint(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestResolveEndpointRejects(t *testing.T) {
	for _, in := range []string{"ftp://host", "http://", "::bad"} {
		_, err := ResolveEndpoint(in)
		require.Error(t, err, in)
	}
}
