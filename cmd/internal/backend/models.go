package backend

// Room is one entry of fetch-all-rooms. FirstName/LastName belong to the admin.
type Room struct {
	RoomID    string `json:"roomId"`
	Title     string `json:"title"`
	AdminID   int64  `json:"adminId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Message is one entry of fetch-messages. When Image is set, Message holds
// the image payload instead of text. Flagged messages are only returned to
// their author and the room admin.
type Message struct {
	MessageID int64  `json:"messageId"`
	UserID    int64  `json:"id"`
	Name      string `json:"name"`
	Message   string `json:"message"`
	Image     bool   `json:"image"`
	Flagged   bool   `json:"flagged"`
}

// RosterEntry is one member of a room; the admin is listed first.
type RosterEntry struct {
	UserID    int64  `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Admin     bool   `json:"admin"`
}

// NewUser is the create-user request.
type NewUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Endpoint names.
const (
	EndpointCreateUser     = "create-user"
	EndpointLoginUser      = "login-user"
	EndpointFetchID        = "fetch-id"
	EndpointFetchAllRooms  = "fetch-all-rooms"
	EndpointCreateRoom     = "create-room"
	EndpointJoinRoom       = "join-room"
	EndpointLeaveRoom      = "leave-room"
	EndpointDeleteRoom     = "delete-room"
	EndpointFetchMessages  = "fetch-messages"
	EndpointSendMessage    = "send-message"
	EndpointDeleteMessage  = "delete-message"
	EndpointApproveMessage = "approve-message"
	EndpointFetchRoster    = "fetch-roster"
	EndpointFetchTheme     = "fetch-theme"
)
