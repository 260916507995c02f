package mcp

import (
	"context"
	"fmt"

	"github.com/dhofer/mcp-server-kontomanager/internal/portal"
)

type GetSimSettingsTool struct {
	client *portal.Client
}

func (t *GetSimSettingsTool) Name() string { return "get_sim_settings" }
func (t *GetSimSettingsTool) Description() string {
	return `Read the current state of all SIM settings for the active number
(roaming barring, data barring, premium services, international SMS, ...).

The returned keys are the setting names set_sim_setting accepts.

Returns: map of setting name (snake_case) to boolean state.`
}
func (t *GetSimSettingsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *GetSimSettingsTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.client.GetSimSettings(ctx)
}

type GetCallForwardingSettingsTool struct {
	client *portal.Client
}

func (t *GetCallForwardingSettingsTool) Name() string { return "get_call_forwarding_settings" }
func (t *GetCallForwardingSettingsTool) Description() string {
	return `Read the call forwarding and voicemail settings for the active number.

Covers all four conditions: alle (all calls), nann (no answer), wtel (busy),
nerr (not reachable). Each rule reports its target: d (deactivated),
b (voicemail box) or a (another number, with the number).

Returns: {rules, editable_on_phone, voicemail_play_cli_disable}.`
}
func (t *GetCallForwardingSettingsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *GetCallForwardingSettingsTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.client.GetCallForwardingSettings(ctx)
}

type SwitchActivePhoneNumberTool struct {
	client *portal.Client
}

func (t *SwitchActivePhoneNumberTool) Name() string { return "switch_active_phone_number" }
func (t *SwitchActivePhoneNumberTool) Description() string {
	return `Switch the session's active context to another phone number in the
account group. All subsequent tools operate on the newly selected number.

PREREQUISITE: get the subscriber_id from get_phone_numbers. An id that is
not part of the account fails with invalid_subscriber_error before any
switch is attempted.

Returns: {active_number} after the switch.`
}
func (t *SwitchActivePhoneNumberTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"subscriber_id": map[string]interface{}{
				"type":        "string",
				"description": "Subscriber id from get_phone_numbers",
			},
		},
		"required": []string{"subscriber_id"},
	}
}
func (t *SwitchActivePhoneNumberTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	subscriberID := getStringArg(args, "subscriber_id")
	if subscriberID == "" {
		return nil, fmt.Errorf("subscriber_id is required")
	}

	active, err := t.client.SwitchActiveNumber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"active_number": active}, nil
}

type SetSimSettingTool struct {
	client *portal.Client
}

func (t *SetSimSettingTool) Name() string { return "set_sim_setting" }
func (t *SetSimSettingTool) Description() string {
	return `Enable or disable a specific SIM setting for the active number.

Use get_sim_settings to see the available setting names (e.g.
roaming_barred, data_barred). Unrecognized names fail closed with
unknown_setting_error and no request is sent.

The change is verified by re-reading the settings afterwards; a portal that
silently ignores the toggle surfaces as mutation_verification_error, not as
success.

This is the low-level tool; for roaming prefer toggle_roaming.

Returns: {setting, enabled} on verified success.`
}
func (t *SetSimSettingTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"setting_name": map[string]interface{}{
				"type":        "string",
				"description": "Setting name as reported by get_sim_settings (snake_case)",
			},
			"enabled": map[string]interface{}{
				"type":        "boolean",
				"description": "Desired state",
			},
		},
		"required": []string{"setting_name", "enabled"},
	}
}
func (t *SetSimSettingTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	name := getStringArg(args, "setting_name")
	if name == "" {
		return nil, fmt.Errorf("setting_name is required")
	}
	enabled, ok := getBoolArg(args, "enabled")
	if !ok {
		return nil, fmt.Errorf("enabled is required and must be a boolean")
	}

	if err := t.client.SetSimSetting(ctx, name, enabled); err != nil {
		return nil, err
	}
	return map[string]interface{}{"setting": name, "enabled": enabled}, nil
}

type SetCallForwardingRuleTool struct {
	client *portal.Client
}

func (t *SetCallForwardingRuleTool) Name() string { return "set_call_forwarding_rule" }
func (t *SetCallForwardingRuleTool) Description() string {
	return `Update one call forwarding rule for the active number.

- condition: alle (all calls), nann (no answer), wtel (busy), nerr (not reachable)
- target: d (deactivated), b (voicemail box), a (another number)
- target_number: required when target is "a"; international format, e.g. +43664...
- delay_seconds: only for nann; one of 5, 10, 15, 20, 25, 30

The other three rules and the form's ride-along flags are preserved; the
change is verified by re-reading the form afterwards
(mutation_verification_error if the portal did not apply it). Disabling a
rule is target "d".

Returns: {condition, target} on verified success.`
}
func (t *SetCallForwardingRuleTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"condition": map[string]interface{}{
				"type":        "string",
				"enum":        []string{portal.CondAllCalls, portal.CondNoAnswer, portal.CondBusy, portal.CondUnreachable},
				"description": "Forwarding condition to change",
			},
			"target": map[string]interface{}{
				"type":        "string",
				"enum":        []string{portal.TargetDisabled, portal.TargetVoicemail, portal.TargetNumber},
				"description": "Forwarding target kind",
			},
			"target_number": map[string]interface{}{
				"type":        "string",
				"description": "Number to forward to, required when target is \"a\"",
			},
			"delay_seconds": map[string]interface{}{
				"type":        "integer",
				"enum":        []int{5, 10, 15, 20, 25, 30},
				"description": "No-answer delay, only for condition \"nann\"",
			},
		},
		"required": []string{"condition", "target"},
	}
}
func (t *SetCallForwardingRuleTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	rule := portal.CallForwardingRule{
		Condition:    getStringArg(args, "condition"),
		Target:       getStringArg(args, "target"),
		TargetNumber: getStringArg(args, "target_number"),
	}
	if delay, ok := getIntArg(args, "delay_seconds"); ok {
		rule.DelaySeconds = &delay
	}

	if err := t.client.SetCallForwardingRule(ctx, rule); err != nil {
		return nil, err
	}
	return map[string]interface{}{"condition": rule.Condition, "target": rule.Target}, nil
}

type ToggleRoamingTool struct {
	client *portal.Client
}

func (t *ToggleRoamingTool) Name() string { return "toggle_roaming" }
func (t *ToggleRoamingTool) Description() string {
	return `Enable or disable international roaming for the active number.

Convenience wrapper over set_sim_setting: roaming enabled means the
roaming_barred toggle is off. The result is verified against the re-read
settings like every other mutation.

Returns: {roaming_enabled} on verified success.`
}
func (t *ToggleRoamingTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"enabled": map[string]interface{}{
				"type":        "boolean",
				"description": "true to enable roaming, false to disable",
			},
		},
		"required": []string{"enabled"},
	}
}
func (t *ToggleRoamingTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	enabled, ok := getBoolArg(args, "enabled")
	if !ok {
		return nil, fmt.Errorf("enabled is required and must be a boolean")
	}

	if err := t.client.ToggleRoaming(ctx, enabled); err != nil {
		return nil, err
	}
	return map[string]interface{}{"roaming_enabled": enabled}, nil
}
