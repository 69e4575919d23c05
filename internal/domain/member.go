package domain

// Member is one participant currently known to be in a room.
// No transport or lifecycle logic here.
type Member struct {
	UserID   UserID   `json:"userId"`
	Username string   `json:"username"`
	AvatarID AvatarID `json:"avatarId"`
}
