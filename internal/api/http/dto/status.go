package dto

import "time"

type HealthResponse struct {
	Status string `json:"status"`
}

type StatusResponse struct {
	Paired                bool       `json:"paired"`
	MachineID             string     `json:"machine_id,omitempty"`
	IsOnline              bool       `json:"is_online"`
	MinutesSinceLastSync  int        `json:"minutes_since_last_sync"`
	UptimeMinutes         int        `json:"uptime_minutes"`
	LastSuccessfulCheckin *time.Time `json:"last_successful_checkin,omitempty"`
	LastError             string     `json:"last_error,omitempty"`
	IsCheckingIn          bool       `json:"is_checking_in"`
}

type CheckinTriggerResponse struct {
	Success   bool   `json:"success"`
	LastError string `json:"last_error,omitempty"`
}
