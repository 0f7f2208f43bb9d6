package models

import "time"

// TunnelRecord describes one supervised tunnel client process.
type TunnelRecord struct {
	TunnelId  int       `json:"tunnelId"`
	Pid       int       `json:"pid"`
	Binary    string    `json:"binary"`
	Status    RunStatus `json:"status"`
	StartTime time.Time `json:"startTime"`
}

type TunnelEventKind string

const (
	TunnelStarted TunnelEventKind = "started"
	TunnelStopped TunnelEventKind = "stopped"
)

// StopReason tells whether a Stopped event came from a request or from the process itself.
type StopReason string

const (
	ReasonStopped StopReason = "stopped"
	ReasonExited  StopReason = "exited"
)

type TunnelEvent struct {
	Kind     TunnelEventKind `json:"kind"`
	TunnelId int             `json:"tunnelId"`
	Pid      int             `json:"pid"`
	Reason   StopReason      `json:"reason,omitempty"`
	Error    string          `json:"error,omitempty"` // set when the client survived a stop request
	Time     time.Time       `json:"time"`
}

type LogStream string

const (
	StreamInfo  LogStream = "info"
	StreamError LogStream = "error"
)

type LogLine struct {
	TunnelId int       `json:"tunnelId"`
	Stream   LogStream `json:"stream"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

// CreateTunnelRequest is the body of POST /kairo/api/v1/tunnels
type CreateTunnelRequest struct {
	TunnelId int    `json:"tunnelId" binding:"required,min=1"`
	Token    string `json:"token" binding:"required"`
}

// TunnelResponse defines tunnel operation success response format
type TunnelResponse struct {
	TunnelId int    `json:"tunnelId"`
	Pid      int    `json:"pid,omitempty"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type StopAllResponse struct {
	Stopped int `json:"stopped"`
}
