package models

import "time"

type RunStatus string

const (
	StatusRunning RunStatus = "running"
	// exited on its own
	StatusExited RunStatus = "exited"
	// failed to start or exited with an error
	StatusError RunStatus = "error"
	// terminated on request
	StatusStopped RunStatus = "stopped"
)

type ProcessDetail struct {
	Title          string    `json:"title"`
	Command        string    `json:"command"`
	Args           []string  `json:"args"`
	Pid            int       `json:"pid"`
	Status         RunStatus `json:"status"`
	StartTime      time.Time `json:"startTime"`
	LastExitTime   time.Time `json:"lastExitTime"`
	LastExitReason string    `json:"lastExitReason"`
}
