package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/dhofer/mcp-server-kontomanager/internal/config"
	"github.com/dhofer/mcp-server-kontomanager/internal/portal"
)

func setupTestServerConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Name:    "test-server",
			Version: "1.0.0",
		},
		Portal: config.PortalConfig{
			Brand: "yesss",
		},
	}
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	client, err := portal.New(portal.Options{
		BaseURL:  "https://portal.test/app/",
		Username: "06641234567",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("portal.New: %v", err)
	}
	server, err := NewServer(setupTestServerConfig(), client)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server
}

func TestNewServer(t *testing.T) {
	server := setupTestServer(t)

	if server.tools == nil {
		t.Fatal("expected tools map to be initialized")
	}
	if server.mcpServer == nil {
		t.Fatal("expected MCP server to be initialized")
	}
}

func TestAllToolsRegistered(t *testing.T) {
	server := setupTestServer(t)

	want := []string{
		"get_account_usage",
		"get_phone_numbers",
		"list_bills",
		"download_bill",
		"get_call_history",
		"get_sim_settings",
		"get_call_forwarding_settings",
		"switch_active_phone_number",
		"set_sim_setting",
		"set_call_forwarding_rule",
		"toggle_roaming",
	}
	if len(server.tools) != len(want) {
		t.Errorf("registered tools = %d, want %d", len(server.tools), len(want))
	}
	for _, name := range want {
		tool, ok := server.tools[name]
		if !ok {
			t.Errorf("tool %s not registered", name)
			continue
		}
		if tool.Name() != name {
			t.Errorf("tool registered under %s reports name %s", name, tool.Name())
		}
		if tool.Description() == "" {
			t.Errorf("tool %s has no description", name)
		}
		if _, err := json.Marshal(tool.InputSchema()); err != nil {
			t.Errorf("tool %s schema does not marshal: %v", name, err)
		}
	}
}

func TestInputSchemasAreObjects(t *testing.T) {
	server := setupTestServer(t)

	for name, tool := range server.tools {
		schema := tool.InputSchema()
		if schema["type"] != "object" {
			t.Errorf("tool %s schema type = %v, want object", name, schema["type"])
		}
		if _, ok := schema["properties"]; !ok {
			t.Errorf("tool %s schema has no properties key", name)
		}
	}
}

func TestExecuteToolUnknownTool(t *testing.T) {
	server := setupTestServer(t)

	_, err := server.ExecuteTool(context.Background(), "does_not_exist", nil)
	if err == nil || !strings.Contains(err.Error(), "does_not_exist") {
		t.Fatalf("expected unknown-tool error naming the tool, got %v", err)
	}
}

func TestExecuteToolArgumentValidation(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{"switch without subscriber id", "switch_active_phone_number", map[string]interface{}{}},
		{"set sim setting without name", "set_sim_setting", map[string]interface{}{"enabled": true}},
		{"set sim setting without state", "set_sim_setting", map[string]interface{}{"setting_name": "roaming_barred"}},
		{"download bill without number", "download_bill", map[string]interface{}{}},
		{"toggle roaming without state", "toggle_roaming", map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := server.ExecuteTool(ctx, tt.tool, tt.args); err == nil {
				t.Errorf("tool %s accepted incomplete arguments", tt.tool)
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"authentication", &portal.AuthenticationError{Reason: "nope"}, "authentication_error"},
		{"network", &portal.TransientNetworkError{Op: "GET x", Err: errors.New("timeout")}, "transient_network_error"},
		{"parse", &portal.ParseError{Page: "kundendaten.php", Detail: "x"}, "parse_error"},
		{"unknown setting", &portal.UnknownSettingError{Name: "x"}, "unknown_setting_error"},
		{"invalid subscriber", &portal.InvalidSubscriberError{SubscriberID: "x"}, "invalid_subscriber_error"},
		{"validation", &portal.ValidationError{Field: "target", Reason: "x"}, "validation_error"},
		{"verification", &portal.MutationVerificationError{Operation: "x"}, "mutation_verification_error"},
		{"not found", &portal.NotFoundError{Resource: "bill", ID: "1"}, "not_found_error"},
		{"configuration", &config.ConfigurationError{Reason: "x"}, "configuration_error"},
		{"plain", errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorKind(tt.err); got != tt.want {
				t.Errorf("errorKind = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorKindUnwrapsWrappedErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &portal.NotFoundError{Resource: "bill", ID: "9"})
	if got := errorKind(wrapped); got != "not_found_error" {
		t.Errorf("errorKind(wrapped) = %q, want not_found_error", got)
	}
}

func TestFormatToolError(t *testing.T) {
	msg := formatToolError("set_sim_setting", &portal.MutationVerificationError{
		Operation: "set_sim_setting roaming_barred",
		Expected:  "roaming_barred=true",
		Actual:    "roaming_barred=false",
	})
	if !strings.Contains(msg, "set_sim_setting") {
		t.Errorf("message should name the tool: %q", msg)
	}
	if !strings.Contains(msg, "mutation_verification_error") {
		t.Errorf("message should carry the error kind: %q", msg)
	}
}

func TestMarshalToolPayload(t *testing.T) {
	payload := marshalToolPayload("list_bills", map[string]interface{}{"count": 2})
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded["count"] != float64(2) {
		t.Errorf("payload = %v", decoded)
	}
}

func TestMarshalToolPayloadNonSerializable(t *testing.T) {
	payload := marshalToolPayload("broken_tool", math.NaN())
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("fallback payload is not JSON: %v", err)
	}
	if decoded["success"] != false {
		t.Errorf("fallback payload = %v", decoded)
	}
	if !strings.Contains(string(payload), "broken_tool") {
		t.Errorf("fallback should name the tool: %s", payload)
	}
}
