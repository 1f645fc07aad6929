package http

import "github.com/vovakirdan/wirechat-relay/internal/core"

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	Name  string `json:"name"`
	Users int    `json:"users"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func roomResponses(rooms []core.RoomInfo) []RoomResponse {
	out := make([]RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomResponse{Name: r.Name, Users: r.Users})
	}
	return out
}
