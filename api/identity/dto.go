package identity

// JoinResponse is returned when a player joins.
type JoinResponse struct {
	ID       string `json:"id"`
	Token    string `json:"token"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	ExpireAt int64  `json:"expire_at"`
}

// PlayerResponse describes a player's position.
type PlayerResponse struct {
	ID  string `json:"id"`
	Row int    `json:"row"`
	Col int    `json:"col"`
}
