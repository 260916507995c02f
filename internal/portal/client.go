package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Portal endpoints, relative to the brand base URL.
const (
	pageLogin      = "index.php"
	pageOverview   = "kundendaten.php"
	pageBills      = "rechnungen.php"
	pageCalls      = "gespraeche.php"
	pageSimForm    = "einstellungen_sim.php"
	pageSimData    = "einstellungen_sim_getdata.php"
	pageSimSet     = "einstellungen_sim_setdata.php"
	pageForwarding = "einstellungen_rufumleitung.php"
)

// consentCookie keeps the portal from answering every request with its
// cookie banner interstitial.
const consentCookie = `{"categories":["necessary"]}`

const defaultTimeout = 30 * time.Second

// errSessionExpired signals that a response turned out to be the login page.
// It never leaves the client; withSession turns it into a single re-login.
var errSessionExpired = errors.New("portal session expired")

// Options configures a portal client.
type Options struct {
	// BaseURL is the brand's portal root, e.g. https://www.yesss.at/kontomanager.at/app/.
	BaseURL  string
	Username string
	Password string
	// Timeout bounds every portal request. Defaults to 30s; requests that
	// exceed it surface as TransientNetworkError.
	Timeout time.Duration
	// ExtraSimSettings extends the recognized SIM toggle names beyond
	// DefaultSimSettings.
	ExtraSimSettings []string
}

// Client owns the single authenticated portal session for the process:
// cookies, the anti-forgery token cache, and the active subscriber. All
// operations serialize on one mutex because the portal's token and
// subscriber state are session-scoped; interleaving a token fetch from one
// operation with another's submit would race.
type Client struct {
	http     *http.Client
	baseURL  *url.URL
	username string
	password string

	knownSettings map[string]struct{}

	mu           sync.Mutex
	loggedIn     bool
	activeNumber string
	lastActivity time.Time
	token        string
	tokenPage    string
}

// New builds a client for the given portal. It performs no I/O; login is
// reactive, on the first operation.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("invalid portal base URL %q", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	jar.SetCookies(base, []*http.Cookie{{Name: "CookieSettings", Value: consentCookie, Path: "/"}})

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	known := make(map[string]struct{}, len(DefaultSimSettings)+len(opts.ExtraSimSettings))
	for _, name := range DefaultSimSettings {
		known[name] = struct{}{}
	}
	for _, name := range opts.ExtraSimSettings {
		known[strings.ReplaceAll(name, "-", "_")] = struct{}{}
	}

	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		baseURL:       base,
		username:      opts.Username,
		password:      opts.Password,
		knownSettings: known,
	}, nil
}

// Login authenticates against the portal. Safe to call when already
// authenticated; it simply re-authenticates.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	log.Printf("logging in as %s", c.username)
	c.loggedIn = false
	c.token, c.tokenPage = "", ""

	// Prime session cookies before submitting credentials.
	if _, _, err := c.request(ctx, http.MethodGet, c.pageURL(pageLogin), nil); err != nil {
		return err
	}

	form := url.Values{
		"login_rufnummer": {c.username},
		"login_passwort":  {c.password},
	}
	body, _, err := c.request(ctx, http.MethodPost, c.pageURL(pageLogin), form)
	if err != nil {
		return err
	}

	page := string(body)
	if isLoginPage(page) {
		reason := loginErrorMessage(page)
		log.Printf("login rejected for %s: %s", c.username, reason)
		return &AuthenticationError{Reason: reason}
	}

	if number, err := activePhoneNumber(pageLogin, page); err == nil {
		c.activeNumber = number
	}
	c.loggedIn = true
	c.lastActivity = time.Now()
	log.Printf("logged in as %s", c.username)
	return nil
}

// withSession runs fn with the session mutex held and an authenticated
// session. Expiry detected mid-operation triggers exactly one re-login and
// one replay; the whole fn is atomic with respect to other operations, so a
// token fetched inside fn cannot be invalidated before its submit.
func (c *Client) withSession(ctx context.Context, fn func(context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loggedIn {
		if err := c.loginLocked(ctx); err != nil {
			return err
		}
	}

	err := fn(ctx)
	if !errors.Is(err, errSessionExpired) {
		c.lastActivity = time.Now()
		return err
	}

	log.Printf("portal session expired, re-authenticating")
	if err := c.loginLocked(ctx); err != nil {
		return err
	}
	err = fn(ctx)
	if errors.Is(err, errSessionExpired) {
		c.loggedIn = false
		return &AuthenticationError{Reason: "session could not be re-established"}
	}
	c.lastActivity = time.Now()
	return err
}

func (c *Client) pageURL(page string) string {
	ref, _ := url.Parse(page)
	return c.baseURL.ResolveReference(ref).String()
}

// request performs one HTTP call, mapping transport failures and bad status
// codes to TransientNetworkError. form!=nil makes it a form POST.
func (c *Client) request(ctx context.Context, method, rawURL string, form url.Values) ([]byte, *http.Response, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &TransientNetworkError{Op: method + " " + rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, &TransientNetworkError{Op: method + " " + rawURL, Err: err}
	}
	if resp.StatusCode >= 400 {
		return body, resp, &TransientNetworkError{
			Op:  method + " " + rawURL,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	return body, resp, nil
}

// getPage fetches a data page and checks it for the login-redirect
// signature. The portal answers expired sessions with HTTP 200 and the login
// form, so this check runs on every response.
func (c *Client) getPage(ctx context.Context, page string, query url.Values) (string, error) {
	target := c.pageURL(page)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	body, resp, err := c.request(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	text := string(body)
	if c.expired(resp, text) {
		return "", errSessionExpired
	}
	return text, nil
}

// postForm submits a form to a portal endpoint, with the same expiry check
// as getPage.
func (c *Client) postForm(ctx context.Context, page string, form url.Values) (string, error) {
	body, resp, err := c.request(ctx, http.MethodPost, c.pageURL(page), form)
	if err != nil {
		return "", err
	}
	text := string(body)
	if c.expired(resp, text) {
		return "", errSessionExpired
	}
	return text, nil
}

// expired detects the login-redirect signature: either the redirect chain
// landed back on the login endpoint, or the body is the login form itself.
func (c *Client) expired(resp *http.Response, body string) bool {
	if resp != nil && resp.Request != nil && resp.Request.URL != nil {
		if strings.HasSuffix(resp.Request.URL.Path, "/"+pageLogin) && strings.Contains(body, "loginform") {
			return true
		}
	}
	return isLoginPage(body)
}

// formToken returns the anti-forgery token for the given settings page.
// Tokens are page-scoped: a cached token is only reused when it came from
// the same page, otherwise the page is re-fetched right before the mutation.
// Call only from within withSession.
func (c *Client) formToken(ctx context.Context, page string) (string, error) {
	if c.token != "" && c.tokenPage == page {
		return c.token, nil
	}
	body, err := c.getPage(ctx, page, nil)
	if err != nil {
		return "", err
	}
	token, err := parseFormToken(page, body)
	if err != nil {
		return "", err
	}
	c.token, c.tokenPage = token, page
	return token, nil
}

// invalidateToken drops the cached token. Called after every form submit
// since the portal rotates tokens per submission.
func (c *Client) invalidateToken() {
	c.token, c.tokenPage = "", ""
}

// ActiveNumber returns the phone number the session currently targets.
func (c *Client) ActiveNumber() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeNumber
}

// GetAccountUsage fetches and parses the account overview. Never cached;
// every call reads the portal.
func (c *Client) GetAccountUsage(ctx context.Context) (*AccountUsage, error) {
	var usage *AccountUsage
	err := c.withSession(ctx, func(ctx context.Context) error {
		body, err := c.getPage(ctx, pageOverview, nil)
		if err != nil {
			return err
		}
		usage, err = parseAccountUsage(body)
		return err
	})
	return usage, err
}

// GetPhoneNumbers lists all numbers in the account group.
func (c *Client) GetPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	var numbers []PhoneNumber
	err := c.withSession(ctx, func(ctx context.Context) error {
		body, err := c.getPage(ctx, pageOverview, nil)
		if err != nil {
			return err
		}
		numbers, err = parsePhoneNumbers(body)
		return err
	})
	return numbers, err
}

// SwitchActiveNumber selects another subscriber as the session's operation
// target. The id is cross-checked against the account's numbers before any
// switch request goes out.
func (c *Client) SwitchActiveNumber(ctx context.Context, subscriberID string) (string, error) {
	if subscriberID == "" {
		return "", &ValidationError{Field: "subscriber_id", Reason: "must not be empty"}
	}

	var newActive string
	err := c.withSession(ctx, func(ctx context.Context) error {
		body, err := c.getPage(ctx, pageOverview, nil)
		if err != nil {
			return err
		}
		numbers, err := parsePhoneNumbers(body)
		if err != nil {
			return err
		}
		known := false
		for _, n := range numbers {
			if n.SubscriberID == subscriberID {
				known = true
				break
			}
		}
		if !known {
			return &InvalidSubscriberError{SubscriberID: subscriberID}
		}

		log.Printf("switching active number to subscriber %s", subscriberID)
		switched, err := c.getPage(ctx, pageOverview, url.Values{
			"groupaction": {"change_subscriber"},
			"subscriber":  {subscriberID},
		})
		if err != nil {
			return err
		}
		newActive, err = activePhoneNumber(pageOverview, switched)
		if err != nil {
			return err
		}
		c.activeNumber = newActive
		c.invalidateToken()
		return nil
	})
	return newActive, err
}

// ListBills fetches the bill metadata list, most recent first as the portal
// renders it.
func (c *Client) ListBills(ctx context.Context) ([]BillSummary, error) {
	var bills []BillSummary
	err := c.withSession(ctx, func(ctx context.Context) error {
		body, err := c.getPage(ctx, pageBills, nil)
		if err != nil {
			return err
		}
		bills, err = parseBills(body, c.baseURL)
		return err
	})
	return bills, err
}

// GetCallHistory fetches the call and SMS history for the active number.
func (c *Client) GetCallHistory(ctx context.Context) ([]CallHistoryEntry, error) {
	var history []CallHistoryEntry
	err := c.withSession(ctx, func(ctx context.Context) error {
		body, err := c.getPage(ctx, pageCalls, nil)
		if err != nil {
			return err
		}
		history, err = parseCallHistory(body)
		return err
	})
	return history, err
}

// GetSimSettings reads the current SIM toggle states from the portal's JSON
// settings endpoint.
func (c *Client) GetSimSettings(ctx context.Context) (SimSettings, error) {
	var settings SimSettings
	err := c.withSession(ctx, func(ctx context.Context) error {
		var err error
		settings, err = c.fetchSimSettings(ctx)
		return err
	})
	return settings, err
}

type simSettingItem struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type simSettingsResponse struct {
	Status string           `json:"status"`
	Data   []simSettingItem `json:"data"`
}

// fetchSimSettings hits the JSON endpoint. Call only from within withSession.
func (c *Client) fetchSimSettings(ctx context.Context) (SimSettings, error) {
	body, err := c.postForm(ctx, pageSimData, url.Values{})
	if err != nil {
		return nil, err
	}

	var resp simSettingsResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, &ParseError{Page: pageSimData, Detail: "settings endpoint returned no JSON"}
	}
	if resp.Status != "OK" {
		return nil, &ParseError{Page: pageSimData, Detail: fmt.Sprintf("settings endpoint status %q", resp.Status)}
	}

	settings := make(SimSettings, len(resp.Data))
	for _, item := range resp.Data {
		if item.Key == "" {
			continue
		}
		settings[strings.ReplaceAll(item.Key, "-", "_")] = truthy(item.Value)
	}
	return settings, nil
}

// truthy interprets the settings endpoint's value field, which renders
// booleans as true/false or as "t"/"f" strings depending on the portal
// version.
func truthy(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == "t" || strings.EqualFold(s, "true")
	}
	return false
}

// knownSetting reports whether name is in the recognized toggle set
// (built-in plus configured extras).
func (c *Client) knownSetting(name string) bool {
	_, ok := c.knownSettings[name]
	return ok
}
