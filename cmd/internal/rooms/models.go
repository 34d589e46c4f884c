package rooms

import "studyrooms/cmd/internal/backend"

type createRoomRequest struct {
	Title string `json:"title" validate:"min=1,max=75"`
}

type joinRoomRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
	Image   bool   `json:"image"`
}

type statusResponse struct {
	Status int `json:"status"`
}

type roomsResponse struct {
	Rooms []backend.Room `json:"rooms"`
}

type messagesResponse struct {
	Messages []backend.Message `json:"messages"`
}

type sentResponse struct {
	Status    int   `json:"status"`
	MessageID int64 `json:"messageId"`
}

type rosterResponse struct {
	Roster []backend.RosterEntry `json:"roster"`
}

type themeResponse struct {
	Theme string `json:"theme"`
}
