// Package models tracks all api models for request and responses
package models

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type NavigationResponse struct {
	State   string `json:"state"`
	Current int    `json:"current"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

type StatusResponse struct {
	InstanceID             string     `json:"instance_id"`
	State                  string     `json:"state"`
	Current                int        `json:"current"`
	Count                  int        `json:"count"`
	CurrentID              string     `json:"current_id,omitempty"`
	RefreshIntervalMinutes int        `json:"refresh_interval_minutes"`
	LastRefresh            *time.Time `json:"last_refresh,omitempty"`
	NextRefresh            *time.Time `json:"next_refresh,omitempty"`
	UptimeSeconds          int64      `json:"uptime_seconds"`
	WakefulEnabled         bool       `json:"wakeful_enabled"`
}

type DisplayStateResponse struct {
	Enabled bool `json:"enabled"`
}
