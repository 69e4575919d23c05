package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/Presence/internal/domain"
)

// RoomRequest is the body of POST /api/rooms. Empty ID and Name are
// generated by the coordinator.
type RoomRequest struct {
	ID       domain.RoomID   `json:"roomId,omitempty"`
	Name     domain.RoomName `json:"name,omitempty"`
	Creator  domain.UserID   `json:"userId"`
	IsPublic bool            `json:"isPublic"`
	Password string          `json:"password,omitempty"`
}

type roomResponse struct {
	ID       domain.RoomID   `json:"roomId"`
	Name     domain.RoomName `json:"name"`
	IsPublic bool            `json:"isPublic"`
	Creator  domain.UserID   `json:"creator"`
	Error    string          `json:"error"`
}

// CreateRoom registers a room with the coordinator at apiURL.
func CreateRoom(ctx context.Context, apiURL string, req RoomRequest) (domain.Room, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.Room{}, fmt.Errorf("encode room: %w", err)
	}
	if apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/"); apiURL == "" {
		apiURL = DefaultAPIURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/rooms", bytes.NewReader(body))
	if err != nil {
		return domain.Room{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()

	var out roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Room{}, fmt.Errorf("decode room: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return domain.Room{}, fmt.Errorf("create room: status %d: %s", resp.StatusCode, out.Error)
	}
	return domain.Room{
		ID:       out.ID,
		Name:     out.Name,
		Creator:  out.Creator,
		IsPublic: out.IsPublic,
		Password: req.Password,
	}, nil
}
