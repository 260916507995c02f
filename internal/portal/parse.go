package portal

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Pure page -> record extraction. Everything markup-dependent lives in this
// file so a portal layout change only touches these functions.

const (
	dateLayout     = "02.01.2006"
	dateTimeLayout = "02.01.2006 15:04"
	stampLayout    = "02.01.2006 15:04:05"
)

// Cards on the overview page that never describe a usage package.
var excludedSections = map[string]struct{}{
	"Ukraine Freieinheiten": {},
	"Ihre Kostenkontrolle":  {},
	"TUR SYR Einheiten":     {},
	"Verknüpfte Rufnummern": {},
	"Aktuelle Kosten":       {},
	"Oft benutzt":           {},
	"Gruppenfunktion":       {},
}

var (
	numberPattern     = regexp.MustCompile(`[-+]?\d*\.?\d+`)
	usageBarPattern   = regexp.MustCompile(`(?i)Verbraucht:\s*([\d.,]+)\s*\(von\s*([\d.,]+|unlimited)\s*(\w+)\)?`)
	euDataPattern     = regexp.MustCompile(`([\d.,]+)\s*MB von ([\d.,]+)\s*MB`)
	subscriberPattern = regexp.MustCompile(`subscriber=([^&]+)`)
	nonDigitPattern   = regexp.MustCompile(`[^\d]`)
)

func newDocument(page, htmlText string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, &ParseError{Page: page, Detail: err.Error()}
	}
	return doc, nil
}

// isLoginPage recognizes the portal's login form, which it serves with HTTP
// 200 both for expired sessions and rejected credentials.
func isLoginPage(htmlText string) bool {
	if strings.Contains(htmlText, "Die eingegebenen Daten sind leider nicht korrekt") {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return false
	}
	return doc.Find("#loginform").Length() > 0
}

// loginErrorMessage pulls the portal's alert text off a failed login page.
func loginErrorMessage(htmlText string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return ""
	}
	return cleanText(doc.Find(`div[role="alert"] p strong`).First().Text())
}

// parseFormToken extracts the anti-forgery token a settings form carries.
func parseFormToken(page, htmlText string) (string, error) {
	doc, err := newDocument(page, htmlText)
	if err != nil {
		return "", err
	}
	token, ok := doc.Find(`input[name="token"]`).First().Attr("value")
	if !ok || token == "" {
		return "", &ParseError{Page: page, Detail: "no anti-forgery token field"}
	}
	return token, nil
}

// parseGermanFloat normalizes the portal's German/Austrian number rendering
// ("1.234,56", "€ 19,99") into a plain float. Returns 0 when no number is
// present.
func parseGermanFloat(text string) float64 {
	cleaned := strings.NewReplacer("€", "", ".", "", ",", ".").Replace(text)
	match := numberPattern.FindString(strings.TrimSpace(cleaned))
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseUsageBar reads the "Verbraucht: X (von Y Einheit)" label next to a
// usage bar. Unlimited totals are flagged rather than carried as +Inf.
func parseUsageBar(text string) (quota UnitQuota, ok bool) {
	m := usageBarPattern.FindStringSubmatch(text)
	if m == nil {
		return UnitQuota{}, false
	}
	quota.Used = parseGermanFloat(m[1])
	quota.Unit = m[3]
	if strings.EqualFold(m[2], "unlimited") {
		quota.Unlimited = true
		return quota, true
	}
	quota.Total = parseGermanFloat(m[2])
	quota.Remaining = quota.Total - quota.Used
	return quota, true
}

// normalizePhoneNumber renders an Austrian number in E.164.
func normalizePhoneNumber(raw string) string {
	digits := nonDigitPattern.ReplaceAllString(raw, "")
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "43"):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+43" + digits[1:]
	default:
		return "+43" + digits
	}
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitLabelled splits a "Label: value" row at the first colon, keeping
// colons inside the value (times) intact.
func splitLabelled(text string) (key, value string, ok bool) {
	parts := strings.SplitN(text, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

func parseDate(value string) *time.Time {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil
	}
	return &t
}

func parseDateTime(value string) *time.Time {
	t, err := time.Parse(dateTimeLayout, value)
	if err != nil {
		return nil
	}
	return &t
}

// textAfterBr returns the first non-empty text node following a <br> inside
// the selection. The number dropdown renders "<span>name</span><br>number".
func textAfterBr(sel *goquery.Selection) string {
	if len(sel.Nodes) == 0 {
		return ""
	}
	seenBr := false
	for n := sel.Nodes[0].FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && n.Data == "br" {
			seenBr = true
			continue
		}
		if seenBr && n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				return text
			}
		}
	}
	return ""
}

// parseAccountUsage extracts the account overview (kundendaten.php) for both
// contract and prepaid accounts.
func parseAccountUsage(htmlText string) (*AccountUsage, error) {
	doc, err := newDocument(pageOverview, htmlText)
	if err != nil {
		return nil, err
	}

	dropdown := doc.Find("#user-dropdown span").First()
	if dropdown.Length() == 0 {
		return nil, &ParseError{Page: pageOverview, Detail: "no user dropdown"}
	}
	rawPhone := cleanText(dropdown.Text())
	phoneParts := strings.Split(rawPhone, " - ")

	usage := &AccountUsage{
		PhoneNumber: normalizePhoneNumber(strings.TrimSpace(phoneParts[len(phoneParts)-1])),
		IsAdmin:     strings.Contains(strings.ToLower(rawPhone), "admin"),
		IsPrepaid:   strings.Contains(strings.ToLower(doc.Find("h1").First().Text()), "wertkarte"),
		Packages:    []PackageUsage{},
	}

	doc.Find("div.card").Each(func(_ int, card *goquery.Selection) {
		title := strings.TrimSuffix(cleanText(card.Find(".card-title").First().Text()), ":")
		if title == "" {
			return
		}
		if _, excluded := excludedSections[title]; excluded {
			return
		}

		if usage.IsPrepaid && title == "SIM Info" {
			parsePrepaidSimInfo(card, usage)
			return
		}

		pkg := PackageUsage{PackageName: title}
		hasUsage := false
		card.Find(".progress-item").Each(func(_ int, item *goquery.Selection) {
			heading := strings.ToLower(cleanText(item.Find(".progress-heading").First().Text()))
			quota, ok := parseUsageBar(item.Find(".bar-label-right").First().Text())
			if !ok {
				return
			}
			hasUsage = true
			switch {
			case strings.Contains(heading, "minuten/sms"):
				q := quota
				q.Unit = "Minutes/SMS"
				minutes, sms := q, q
				pkg.Minutes = &minutes
				pkg.SMS = &sms
			case strings.Contains(heading, "datenvolumen"):
				q := quota
				pkg.DataDomestic = &q
			}
		})

		card.Find(".collapse .list-group-item").Each(func(_ int, item *goquery.Selection) {
			key, value, ok := splitLabelled(cleanText(item.Text()))
			if !ok {
				return
			}
			switch keyLower := strings.ToLower(key); {
			case keyLower == "gültig von":
				pkg.ValidFrom = parseDateTime(value)
			case keyLower == "gültig bis":
				pkg.ValidUntil = parseDateTime(value)
			case keyLower == "gesamtkosten":
				cost := parseGermanFloat(value)
				pkg.MonthlyCost = &cost
			case strings.Contains(keyLower, "preis") && pkg.MonthlyCost == nil:
				cost := parseGermanFloat(value)
				pkg.MonthlyCost = &cost
			case keyLower == "datenvolumen eu verbleibend":
				if m := euDataPattern.FindStringSubmatch(value); m != nil {
					remaining := parseGermanFloat(m[1])
					total := parseGermanFloat(m[2])
					pkg.DataEU = &UnitQuota{Used: total - remaining, Total: total, Remaining: remaining, Unit: "MB"}
				}
			case keyLower == "datenmitnahme aus den vormonaten":
				carried := parseGermanFloat(value)
				pkg.DataCarriedOver = &UnitQuota{Total: carried, Remaining: carried, Unit: "MB"}
			}
		})

		if hasUsage {
			usage.Packages = append(usage.Packages, pkg)
		}
	})

	parseCurrentCosts(doc, usage)
	return usage, nil
}

// parsePrepaidSimInfo reads the SIM Info card of prepaid accounts: credit
// balances, card validity, last recharge, and the base tariff name.
func parsePrepaidSimInfo(card *goquery.Selection, usage *AccountUsage) {
	totalCredit := 0.0
	card.Find(".list-group-item").Each(func(_ int, item *goquery.Selection) {
		key, value, ok := splitLabelled(cleanText(item.Text()))
		if !ok {
			return
		}
		switch keyLower := strings.ToLower(key); {
		case keyLower == "ihr aktuelles standardguthaben", keyLower == "ihr aktuelles bonusguthaben":
			totalCredit += parseGermanFloat(value)
		case strings.Contains(keyLower, "letzte aufladung"):
			usage.LastRecharge = parseDate(value)
		case strings.Contains(keyLower, "gültigkeit ihrer yesss! sim-karte"):
			usage.SimValidUntil = parseDate(value)
		}
	})
	usage.Credit = &totalCredit

	card.Find(".list-group-item .bold").Each(func(_ int, item *goquery.Selection) {
		text := cleanText(item.Text())
		if strings.Contains(strings.ToLower(text), "tarif:") {
			_, name, ok := splitLabelled(text)
			if ok && name != "" {
				usage.Packages = append(usage.Packages, PackageUsage{PackageName: name})
			}
		}
	})
}

// parseCurrentCosts reads the "Aktuelle Kosten" card, which renders
// differently for prepaid (a bare progress heading) and contract accounts
// (labelled detail rows).
func parseCurrentCosts(doc *goquery.Document, usage *AccountUsage) {
	var costsCard *goquery.Selection
	doc.Find("h1").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.Contains(h.Text(), "Aktuelle Kosten") {
			costsCard = h.Closest("div.card")
			return false
		}
		return true
	})
	if costsCard == nil || costsCard.Length() == 0 {
		return
	}

	if usage.IsPrepaid {
		usage.CurrentCosts = parseGermanFloat(costsCard.Find(".progress-heading").First().Text())
		return
	}
	costsCard.Find(".collapse .list-group-item").Each(func(_ int, item *goquery.Selection) {
		key, value, ok := splitLabelled(cleanText(item.Text()))
		if !ok {
			return
		}
		switch {
		case strings.Contains(key, "Vorläufige Kosten"):
			usage.CurrentCosts = parseGermanFloat(value)
		case strings.Contains(key, "Vorläufiges Rechnungsdatum"):
			usage.NextBillDate = parseDate(value)
		}
	})
}

// parsePhoneNumbers extracts the number dropdown: the currently selected
// number plus every switchable number with its subscriber id.
func parsePhoneNumbers(htmlText string) ([]PhoneNumber, error) {
	doc, err := newDocument(pageOverview, htmlText)
	if err != nil {
		return nil, err
	}

	var numbers []PhoneNumber

	doc.Find("h6").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !strings.Contains(h.Text(), "Aktuell gewählte Rufnummer:") {
			return true
		}
		link := h.Parent().Next().Find("a").First()
		name := cleanText(link.Find("span.bold").First().Text())
		number := textAfterBr(link)
		if name != "" && number != "" {
			numbers = append(numbers, PhoneNumber{
				Name:     name,
				Number:   normalizePhoneNumber(number),
				IsActive: true,
			})
		}
		return false
	})

	doc.Find("h6").Each(func(_ int, h *goquery.Selection) {
		if !strings.Contains(h.Text(), "Rufnummer wechseln:") {
			return
		}
		h.NextAllFiltered("ul").First().Find("li a").Each(func(_ int, link *goquery.Selection) {
			name := cleanText(link.Find("span.bold").First().Text())
			number := textAfterBr(link)
			if name == "" || number == "" {
				return
			}
			entry := PhoneNumber{
				Name:   name,
				Number: normalizePhoneNumber(number),
			}
			if href, ok := link.Attr("href"); ok {
				if m := subscriberPattern.FindStringSubmatch(href); m != nil {
					if id, err := url.QueryUnescape(m[1]); err == nil {
						entry.SubscriberID = id
					}
				}
			}
			numbers = append(numbers, entry)
		})
	})

	if len(numbers) == 0 {
		return nil, &ParseError{Page: pageOverview, Detail: "no phone numbers in dropdown"}
	}
	return numbers, nil
}

// activePhoneNumber reads the currently selected number off any logged-in
// page's user dropdown.
func activePhoneNumber(page, htmlText string) (string, error) {
	doc, err := newDocument(page, htmlText)
	if err != nil {
		return "", err
	}
	raw := cleanText(doc.Find("#user-dropdown span").First().Text())
	if raw == "" {
		return "", &ParseError{Page: page, Detail: "no user dropdown"}
	}
	parts := strings.Split(raw, " - ")
	return normalizePhoneNumber(strings.TrimSpace(parts[len(parts)-1])), nil
}

// parseBills extracts the bill list (rechnungen.php). PDF links are resolved
// against the portal base URL. Entries without a bill PDF are skipped.
func parseBills(htmlText string, base *url.URL) ([]BillSummary, error) {
	doc, err := newDocument(pageBills, htmlText)
	if err != nil {
		return nil, err
	}

	bills := []BillSummary{}
	doc.Find("ul.list-group.mt-3").Each(func(_ int, row *goquery.Selection) {
		billHref, hasBill := row.Find("li:nth-child(4) div div a").First().Attr("href")
		if !hasBill || billHref == "" {
			return
		}

		bill := BillSummary{
			BillNumber: cleanText(row.Find("li:nth-child(3) > div > div:nth-child(2)").First().Text()),
			Amount:     parseGermanFloat(row.Find("li:nth-child(2) > div > div:nth-child(2)").First().Text()),
			Currency:   "EUR",
			BillPDFURL: resolveURL(base, billHref),
		}
		if d := parseDate(cleanText(row.Find("li:nth-child(1) > div > div:nth-child(2)").First().Text())); d != nil {
			bill.Date = *d
		}
		if egnHref, ok := row.Find("li:nth-child(5) div div a").First().Attr("href"); ok && egnHref != "" {
			bill.EGNPDFURL = resolveURL(base, egnHref)
			bill.HasEGN = true
		}
		bills = append(bills, bill)
	})
	return bills, nil
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// parseCallHistory extracts the call/SMS history (gespraeche.php). Each
// history block is a labelled list; blocks without a parseable timestamp are
// skipped.
func parseCallHistory(htmlText string) ([]CallHistoryEntry, error) {
	doc, err := newDocument(pageCalls, htmlText)
	if err != nil {
		return nil, err
	}

	history := []CallHistoryEntry{}
	doc.Find("ul.list-group.mt-3").Each(func(_ int, block *goquery.Selection) {
		fields := map[string]string{}
		block.Find("li.list-group-item").Each(func(_ int, row *goquery.Selection) {
			key := cleanText(row.Find(".bold").First().Text())
			if key == "" {
				return
			}
			key = strings.ToLower(strings.TrimSuffix(key, ":"))
			fields[key] = cleanText(row.Find("div > div:nth-child(2)").First().Text())
		})

		stamp, err := time.Parse(stampLayout, fields["datum/uhrzeit"])
		if err != nil {
			return
		}

		duration, cost := "0:00:00", 0.0
		if parts := strings.SplitN(fields["dauer/kosten"], "/", 2); parts[0] != "" {
			duration = strings.TrimSpace(parts[0])
			if len(parts) > 1 {
				cost = parseGermanFloat(parts[1])
			}
		}

		entryType := fields["art"]
		if entryType == "" {
			entryType = "Unbekannt"
		}
		history = append(history, CallHistoryEntry{
			Timestamp: stamp,
			Type:      entryType,
			Number:    fields["nummer"],
			Duration:  duration,
			Cost:      cost,
		})
	})
	return history, nil
}

// selectedOption returns the selected option value of a named select, or the
// fallback when the form renders no selection.
func selectedOption(doc *goquery.Document, name, fallback string) string {
	if v, ok := doc.Find(`select[name="` + name + `"] option[selected]`).First().Attr("value"); ok {
		return v
	}
	return fallback
}

// parseCallForwarding extracts the complete forwarding form state
// (einstellungen_rufumleitung.php): all four condition rules plus the two
// flags that must be resubmitted with every change.
func parseCallForwarding(htmlText string) (*CallForwardingSettings, error) {
	doc, err := newDocument(pageForwarding, htmlText)
	if err != nil {
		return nil, err
	}
	if doc.Find(`select[name="alle_akt"]`).Length() == 0 {
		return nil, &ParseError{Page: pageForwarding, Detail: "no forwarding form"}
	}

	settings := &CallForwardingSettings{}
	for _, condition := range []string{CondAllCalls, CondNoAnswer, CondBusy, CondUnreachable} {
		rule := CallForwardingRule{
			Condition: condition,
			Target:    selectedOption(doc, condition+"_akt", TargetDisabled),
		}
		if rule.Target == TargetNumber {
			if v, ok := doc.Find(`input[name="` + condition + `_rn"]`).First().Attr("value"); ok {
				rule.TargetNumber = v
			}
		}
		if condition == CondNoAnswer {
			if delay, err := strconv.Atoi(selectedOption(doc, "nann_sek", "25")); err == nil {
				rule.DelaySeconds = &delay
			}
		}
		settings.Rules = append(settings.Rules, rule)
	}

	settings.EditableOnPhone = selectedOption(doc, "btel_akt", TargetDisabled) == "a"
	settings.VoicemailPlayCLIDisable = selectedOption(doc, "voicemail_play_cli_disable", TargetDisabled) == TargetDisabled
	return settings, nil
}
