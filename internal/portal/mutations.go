package portal

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Every mutation here is read-verify-act-verify: read the current state,
// submit, re-read, compare. The portal gives no transactional confirmation
// beyond the resulting page state, so the re-read is the only way to tell a
// silently rejected change from a successful one.

var forwardingNumberPattern = regexp.MustCompile(`^\+?\d{5,30}$`)

// Delays the no-answer forwarding select accepts, in seconds.
var forwardingDelays = map[int]struct{}{5: {}, 10: {}, 15: {}, 20: {}, 25: {}, 30: {}}

// SetSimSetting toggles one SIM setting and verifies the portal applied it.
// The name uses snake_case (as reported by GetSimSettings); unrecognized
// names fail closed before any request is sent.
func (c *Client) SetSimSetting(ctx context.Context, name string, enabled bool) error {
	name = strings.ReplaceAll(name, "-", "_")
	if !c.knownSetting(name) {
		return &UnknownSettingError{Name: name}
	}

	return c.withSession(ctx, func(ctx context.Context) error {
		current, err := c.fetchSimSettings(ctx)
		if err != nil {
			return err
		}
		if _, exposed := current[name]; !exposed {
			// Recognized by configuration but absent from this account's
			// settings page, e.g. a contract-only toggle on prepaid.
			return &UnknownSettingError{Name: name}
		}

		token, err := c.formToken(ctx, pageSimForm)
		if err != nil {
			return err
		}

		log.Printf("setting SIM setting %s to %t", name, enabled)
		value := "f"
		if enabled {
			value = "t"
		}
		body, err := c.postForm(ctx, pageSimSet, url.Values{
			"key":   {strings.ReplaceAll(name, "_", "-")},
			"value": {value},
			"token": {token},
		})
		c.invalidateToken()
		if err != nil {
			return err
		}
		if !strings.EqualFold(strings.TrimSpace(body), "OK") {
			return &MutationVerificationError{
				Operation: "set_sim_setting " + name,
				Expected:  fmt.Sprintf("%s=%t", name, enabled),
				Actual:    "submit rejected: " + strings.TrimSpace(body),
			}
		}

		after, err := c.fetchSimSettings(ctx)
		if err != nil {
			return err
		}
		if state, exposed := after[name]; !exposed || state != enabled {
			return &MutationVerificationError{
				Operation: "set_sim_setting " + name,
				Expected:  fmt.Sprintf("%s=%t", name, enabled),
				Actual:    fmt.Sprintf("%s=%t", name, state),
			}
		}
		return nil
	})
}

// ToggleRoaming enables or disables international roaming. Roaming on means
// the roaming_barred toggle is off.
func (c *Client) ToggleRoaming(ctx context.Context, enabled bool) error {
	return c.SetSimSetting(ctx, "roaming_barred", !enabled)
}

// GetCallForwardingSettings reads the current forwarding form state.
func (c *Client) GetCallForwardingSettings(ctx context.Context) (*CallForwardingSettings, error) {
	var settings *CallForwardingSettings
	err := c.withSession(ctx, func(ctx context.Context) error {
		body, err := c.getPage(ctx, pageForwarding, nil)
		if err != nil {
			return err
		}
		settings, err = parseCallForwarding(body)
		return err
	})
	return settings, err
}

// validateForwardingRule rejects malformed input before any request goes
// out.
func validateForwardingRule(rule CallForwardingRule) error {
	switch rule.Condition {
	case CondAllCalls, CondNoAnswer, CondBusy, CondUnreachable:
	default:
		return &ValidationError{Field: "condition", Reason: fmt.Sprintf("%q is not one of alle, nann, wtel, nerr", rule.Condition)}
	}
	switch rule.Target {
	case TargetDisabled, TargetVoicemail, TargetNumber:
	default:
		return &ValidationError{Field: "target", Reason: fmt.Sprintf("%q is not one of d, b, a", rule.Target)}
	}
	if rule.Target == TargetNumber {
		if rule.TargetNumber == "" {
			return &ValidationError{Field: "target_number", Reason: "required when target is a number"}
		}
		if !forwardingNumberPattern.MatchString(rule.TargetNumber) {
			return &ValidationError{Field: "target_number", Reason: "must be an international phone number, e.g. +43664..."}
		}
	}
	if rule.DelaySeconds != nil {
		if _, ok := forwardingDelays[*rule.DelaySeconds]; !ok {
			return &ValidationError{Field: "delay_seconds", Reason: "must be one of 5, 10, 15, 20, 25, 30"}
		}
	}
	return nil
}

// SetCallForwardingRule updates one forwarding condition. The portal only
// accepts the complete form, so the current state of the other three rules
// and the two ride-along flags is read first and resubmitted unchanged,
// with only the addressed rule replaced. Disabling a rule is the same path
// with target "d".
func (c *Client) SetCallForwardingRule(ctx context.Context, rule CallForwardingRule) error {
	if err := validateForwardingRule(rule); err != nil {
		return err
	}

	return c.withSession(ctx, func(ctx context.Context) error {
		body, err := c.getPage(ctx, pageForwarding, nil)
		if err != nil {
			return err
		}
		current, err := parseCallForwarding(body)
		if err != nil {
			return err
		}
		// Token and form state come from the same fetch, so they cannot
		// drift apart between read and submit.
		token, err := parseFormToken(pageForwarding, body)
		if err != nil {
			return err
		}

		log.Printf("setting call forwarding %s to target %s", rule.Condition, rule.Target)
		payload := url.Values{
			"dosubmit": {"1"},
			"token":    {token},
		}
		for _, existing := range current.Rules {
			applied := existing
			if existing.Condition == rule.Condition {
				applied = rule
			}
			payload.Set(applied.Condition+"_akt", applied.Target)
			if applied.TargetNumber != "" {
				payload.Set(applied.Condition+"_rn", applied.TargetNumber)
			}
			if applied.Condition == CondNoAnswer && applied.DelaySeconds != nil {
				payload.Set("nann_sek", strconv.Itoa(*applied.DelaySeconds))
			}
		}
		payload.Set("btel_akt", flagValue(current.EditableOnPhone))
		payload.Set("voicemail_play_cli_disable", disableFlagValue(current.VoicemailPlayCLIDisable))

		response, err := c.postForm(ctx, pageForwarding, payload)
		c.invalidateToken()
		if err != nil {
			return err
		}
		if strings.Contains(response, "Fehler") || strings.Contains(strings.ToLower(response), "error") {
			return &MutationVerificationError{
				Operation: "set_call_forwarding_rule " + rule.Condition,
				Expected:  describeForwardingRule(rule),
				Actual:    "portal reported an error on submit",
			}
		}

		verifyBody, err := c.getPage(ctx, pageForwarding, nil)
		if err != nil {
			return err
		}
		after, err := parseCallForwarding(verifyBody)
		if err != nil {
			return err
		}
		applied := after.Rule(rule.Condition)
		if applied == nil || !forwardingRuleMatches(rule, *applied) {
			actual := "rule missing from form"
			if applied != nil {
				actual = describeForwardingRule(*applied)
			}
			return &MutationVerificationError{
				Operation: "set_call_forwarding_rule " + rule.Condition,
				Expected:  describeForwardingRule(rule),
				Actual:    actual,
			}
		}
		return nil
	})
}

// forwardingRuleMatches compares the requested rule against the re-read
// form state. Numbers are compared normalized since the portal reformats
// them.
func forwardingRuleMatches(want, got CallForwardingRule) bool {
	if want.Target != got.Target {
		return false
	}
	if want.Target == TargetNumber &&
		normalizePhoneNumber(want.TargetNumber) != normalizePhoneNumber(got.TargetNumber) {
		return false
	}
	if want.DelaySeconds != nil && (got.DelaySeconds == nil || *want.DelaySeconds != *got.DelaySeconds) {
		return false
	}
	return true
}

func describeForwardingRule(rule CallForwardingRule) string {
	desc := rule.Condition + "=" + rule.Target
	if rule.TargetNumber != "" {
		desc += " (" + rule.TargetNumber + ")"
	}
	return desc
}

// flagValue encodes an on/off select: "a" active, "d" disabled.
func flagValue(enabled bool) string {
	if enabled {
		return "a"
	}
	return "d"
}

// disableFlagValue encodes the voicemail CLI suppression select, where "d"
// means the suppression is in effect.
func disableFlagValue(disabled bool) string {
	if disabled {
		return "d"
	}
	return "a"
}

// DownloadBill fetches the PDF for a bill or its itemized record (EGN). The
// bill number must appear in the current bill list; the returned content
// length is checked against the declared Content-Length.
func (c *Client) DownloadBill(ctx context.Context, billNumber, documentType string) (*BillDocument, error) {
	documentType = strings.ToLower(documentType)
	if documentType != DocumentBill && documentType != DocumentEGN {
		return nil, &ValidationError{Field: "document_type", Reason: fmt.Sprintf("%q is not one of bill, egn", documentType)}
	}
	if billNumber == "" {
		return nil, &ValidationError{Field: "bill_number", Reason: "must not be empty"}
	}

	var doc *BillDocument
	err := c.withSession(ctx, func(ctx context.Context) error {
		body, err := c.getPage(ctx, pageBills, nil)
		if err != nil {
			return err
		}
		bills, err := parseBills(body, c.baseURL)
		if err != nil {
			return err
		}

		var target *BillSummary
		for i := range bills {
			if bills[i].BillNumber == billNumber {
				target = &bills[i]
				break
			}
		}
		if target == nil {
			return &NotFoundError{Resource: "bill", ID: billNumber}
		}

		pdfURL := target.BillPDFURL
		if documentType == DocumentEGN {
			if !target.HasEGN {
				return &NotFoundError{Resource: "itemized record (egn) for bill", ID: billNumber}
			}
			pdfURL = target.EGNPDFURL
		}

		log.Printf("downloading %s for bill %s", documentType, billNumber)
		content, resp, err := c.request(ctx, http.MethodGet, pdfURL, nil)
		if err != nil {
			return err
		}

		contentType := resp.Header.Get("Content-Type")
		if strings.Contains(contentType, "text/html") {
			if isLoginPage(string(content)) {
				return errSessionExpired
			}
			return &ParseError{Page: pageBills, Detail: "bill download returned HTML instead of a document"}
		}
		if resp.ContentLength >= 0 && int64(len(content)) != resp.ContentLength {
			return &TransientNetworkError{
				Op:  "GET " + pdfURL,
				Err: fmt.Errorf("truncated download: got %d of %d bytes", len(content), resp.ContentLength),
			}
		}
		if !strings.Contains(contentType, "application/pdf") {
			log.Printf("bill download returned content-type %q, expected application/pdf", contentType)
		}

		doc = &BillDocument{
			BillNumber:   billNumber,
			DocumentType: documentType,
			ContentType:  contentType,
			Content:      content,
		}
		return nil
	})
	return doc, err
}
