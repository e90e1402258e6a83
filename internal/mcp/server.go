// Package mcp exposes the simulated home as an MCP capability server.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/neboloop/hearth/internal/home"
	"github.com/neboloop/hearth/internal/logging"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// ServerName is the implementation name announced during the handshake.
	ServerName = "Home Automation"

	// StatusURI is the device status resource.
	StatusURI = "home://device_status"

	// StatusReportPrompt is the name of the status report prompt template.
	StatusReportPrompt = "home_status_report"
)

const statusReportText = `Please create a friendly home status report. Use the list_devices tool to get current device states, then provide:

1. 🏠 **Current Status**: Brief overview of all devices
2. 💡 **Suggestions**: Any recommendations for comfort or energy savings
3. 🔒 **Security**: Check if the home is properly secured

Make the report conversational and helpful, as if you're a smart home assistant.`

type ListDevicesInput struct{}

type ControlLightInput struct {
	Action     string `json:"action" jsonschema:"Light action: on, off or toggle"`
	Brightness *int   `json:"brightness,omitempty" jsonschema:"Optional brightness from 0 to 100. 0 turns the light off."`
}

type SetTemperatureInput struct {
	TargetTemperature float64 `json:"target_temperature" jsonschema:"Target temperature in °C, between 16 and 30"`
}

type DoorLockInput struct {
	Action string `json:"action" jsonschema:"Door action: lock or unlock"`
}

type SceneInput struct {
	Scene string `json:"scene" jsonschema:"Scene to activate: evening, morning or away"`
}

// NewServer builds an MCP server whose tools, resource and prompt operate on h.
func NewServer(h *home.Home, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_devices",
		Description: "List all available devices and their current states",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ ListDevicesInput) (*mcp.CallToolResult, any, error) {
		return textResult(h.ListDevices()), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "control_light",
		Description: "Control the living room light (on/off/toggle) and optionally set brightness (0-100)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in ControlLightInput) (*mcp.CallToolResult, any, error) {
		msg, err := h.ControlLight(in.Action, in.Brightness)
		return outcome("control_light", msg, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_temperature",
		Description: "Set the target temperature for the thermostat (16-30°C)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in SetTemperatureInput) (*mcp.CallToolResult, any, error) {
		msg, err := h.SetTemperature(in.TargetTemperature)
		return outcome("set_temperature", msg, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "control_door_lock",
		Description: "Lock or unlock the front door",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in DoorLockInput) (*mcp.CallToolResult, any, error) {
		msg, err := h.ControlDoorLock(in.Action)
		return outcome("control_door_lock", msg, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "activate_scene",
		Description: "Activate a preset scene that controls multiple devices",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in SceneInput) (*mcp.CallToolResult, any, error) {
		msg, err := h.ActivateScene(in.Scene)
		return outcome("activate_scene", msg, err)
	})

	server.AddResource(&mcp.Resource{
		URI:         StatusURI,
		Name:        "device_status",
		Description: "Get current status of all devices in JSON format",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		body, err := h.StatusJSON()
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      StatusURI,
				MIMEType: "application/json",
				Text:     body,
			}},
		}, nil
	})

	server.AddPrompt(&mcp.Prompt{
		Name:        StatusReportPrompt,
		Description: "Generate a comprehensive home status report",
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: "Home status report",
			Messages: []*mcp.PromptMessage{{
				Role:    "user",
				Content: &mcp.TextContent{Text: statusReportText},
			}},
		}, nil
	})

	return server
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// outcome converts a home command result into a tool result. Validation
// failures become error-shaped results rather than protocol errors.
func outcome(tool, msg string, err error) (*mcp.CallToolResult, any, error) {
	if err == nil {
		logging.Debugf("[Devices] %s ok", tool)
		return textResult(msg), nil, nil
	}
	var verr *home.ValidationError
	if errors.As(err, &verr) {
		logging.Infof("[Devices] %s rejected: %s", tool, verr.Message)
		res := textResult("❌ Error: " + verr.Message)
		res.IsError = true
		return res, nil, nil
	}
	return nil, nil, fmt.Errorf("%s: %w", tool, err)
}
