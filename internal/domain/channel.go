package domain

import "time"

// MOTD is a channel's message-of-the-day record. A channel has zero or
// one of these; absence is reported as ErrMOTDNotFound, never as an
// empty message.
type MOTD struct {
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// ChannelInfo describes a channel for API responses.
type ChannelInfo struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}
