// Package display controls and observes the power state of the TV
// output through wlr-randr.
package display

import (
	"encoding/json"
	"fmt"
	"os/exec"
)

type Output struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Make         string       `json:"make"`
	Model        string       `json:"model"`
	Serial       string       `json:"serial"`
	PhysicalSize PhysicalSize `json:"physical_size"`
	Enabled      bool         `json:"enabled"`
	Modes        []Mode       `json:"modes"`
	Position     Position     `json:"position"`
	Transform    string       `json:"transform"`
	Scale        float64      `json:"scale"`
	AdaptiveSync bool         `json:"adaptive_sync"`
}

type PhysicalSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Mode struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Refresh   float64 `json:"refresh"`
	Preferred bool    `json:"preferred"`
	Current   bool    `json:"current"`
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Controller drives a single compositor output.
type Controller struct {
	output string
	run    func(args ...string) ([]byte, error)
}

func NewController(output string) *Controller {
	return &Controller{
		output: output,
		run:    runWlrRandr,
	}
}

func runWlrRandr(args ...string) ([]byte, error) {
	return exec.Command("wlr-randr", args...).Output()
}

// Enabled inspects the current state of the output using wlr-randr.
// It returns true if the output is enabled, false if disabled.
func (c *Controller) Enabled() (bool, error) {
	out, err := c.run("--output", c.output, "--json")
	if err != nil {
		return false, fmt.Errorf("failed to run wlr-randr: %w", err)
	}

	var results []Output
	if err := json.Unmarshal(out, &results); err != nil {
		return false, fmt.Errorf("failed to unmarshal wlr-randr output: %w", err)
	}

	for _, result := range results {
		if result.Name == c.output {
			return result.Enabled, nil
		}
	}

	return false, fmt.Errorf("output %s not found", c.output)
}

// SetEnabled updates the enabled state of the output using wlr-randr.
func (c *Controller) SetEnabled(enabled bool) error {
	arg := "--off"
	if enabled {
		arg = "--on"
	}
	if _, err := c.run("--output", c.output, arg); err != nil {
		return fmt.Errorf("failed to run wlr-randr: %w", err)
	}
	return nil
}
