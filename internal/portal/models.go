package portal

import "time"

// UnitQuota is a single usage counter (data, minutes, SMS). Unlimited quotas
// carry Unlimited=true with Total and Remaining left at zero so the record
// stays JSON-serializable.
type UnitQuota struct {
	Used      float64 `json:"used"`
	Total     float64 `json:"total"`
	Remaining float64 `json:"remaining"`
	Unit      string  `json:"unit"`
	Unlimited bool    `json:"unlimited,omitempty"`
}

// PackageUsage is one tariff or booked package on the account overview.
type PackageUsage struct {
	PackageName     string     `json:"package_name"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	Minutes         *UnitQuota `json:"minutes,omitempty"`
	SMS             *UnitQuota `json:"sms,omitempty"`
	DataDomestic    *UnitQuota `json:"data_domestic,omitempty"`
	DataEU          *UnitQuota `json:"data_eu,omitempty"`
	DataCarriedOver *UnitQuota `json:"data_carried_over,omitempty"`
	MonthlyCost     *float64   `json:"monthly_cost,omitempty"`
}

// AccountUsage is the parsed account overview page.
type AccountUsage struct {
	PhoneNumber   string         `json:"phone_number"`
	IsAdmin       bool           `json:"is_admin"`
	IsPrepaid     bool           `json:"is_prepaid"`
	Credit        *float64       `json:"credit,omitempty"`
	SimValidUntil *time.Time     `json:"sim_valid_until,omitempty"`
	LastRecharge  *time.Time     `json:"last_recharge,omitempty"`
	CurrentCosts  float64        `json:"current_costs"`
	NextBillDate  *time.Time     `json:"next_bill_date,omitempty"`
	Packages      []PackageUsage `json:"packages"`
}

// PhoneNumber is one number in the account group. The active number carries
// no subscriber id; the portal only exposes ids for switchable numbers.
type PhoneNumber struct {
	Name         string `json:"name"`
	Number       string `json:"number"`
	SubscriberID string `json:"subscriber_id,omitempty"`
	IsActive     bool   `json:"is_active"`
}

// BillSummary is one entry on the bills page. The PDF URLs are absolute.
type BillSummary struct {
	BillNumber string    `json:"bill_number"`
	Date       time.Time `json:"date"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	HasEGN     bool      `json:"has_egn"`
	BillPDFURL string    `json:"bill_pdf_url"`
	EGNPDFURL  string    `json:"egn_pdf_url,omitempty"`
}

// Bill document types accepted by DownloadBill.
const (
	DocumentBill = "bill"
	DocumentEGN  = "egn"
)

// BillDocument is a downloaded bill or itemized record (EGN).
type BillDocument struct {
	BillNumber   string
	DocumentType string
	ContentType  string
	Content      []byte
}

// CallHistoryEntry is one call or SMS from the history page.
type CallHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Number    string    `json:"number"`
	Duration  string    `json:"duration,omitempty"`
	Cost      float64   `json:"cost"`
}

// SimSettings maps a SIM toggle name (snake_case) to its current state.
// The key set is enumerated by the portal, not by this client.
type SimSettings map[string]bool

// Call forwarding condition codes as the portal encodes them.
const (
	CondAllCalls    = "alle"
	CondNoAnswer    = "nann"
	CondBusy        = "wtel"
	CondUnreachable = "nerr"
)

// Call forwarding targets as the portal encodes them.
const (
	TargetDisabled  = "d"
	TargetVoicemail = "b"
	TargetNumber    = "a"
)

// CallForwardingRule is the state of one forwarding condition.
type CallForwardingRule struct {
	Condition    string `json:"condition"`
	Target       string `json:"target"`
	TargetNumber string `json:"target_number,omitempty"`
	DelaySeconds *int   `json:"delay_seconds,omitempty"`
}

// CallForwardingSettings is the complete forwarding form state. The two
// flags ride along with every rule submission, so they are read and
// resubmitted together with the rules.
type CallForwardingSettings struct {
	Rules                   []CallForwardingRule `json:"rules"`
	EditableOnPhone         bool                 `json:"editable_on_phone"`
	VoicemailPlayCLIDisable bool                 `json:"voicemail_play_cli_disable"`
}

// Rule returns the rule for the given condition code, or nil.
func (s *CallForwardingSettings) Rule(condition string) *CallForwardingRule {
	for i := range s.Rules {
		if s.Rules[i].Condition == condition {
			return &s.Rules[i]
		}
	}
	return nil
}

// DefaultSimSettings is the set of toggles the portal's settings API exposes
// today. The recognized set is extensible through configuration; anything
// outside the union fails closed with UnknownSettingError.
var DefaultSimSettings = []string{
	"roaming_barred",
	"non_eu_roaming_barred",
	"roaming_sms_disable",
	"int_voice_barred",
	"international_sms_disable",
	"mpty_barred",
	"premium_barred",
	"data_barred",
	"data_roaming_barred",
	"non_eu_data_roaming_barred",
}
