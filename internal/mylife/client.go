// Package mylife scrapes logbook rows from the mylife Cloud web portal.
package mylife

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jwulff/mylife-sync/internal/domain"
)

// DefaultBaseURL is the UK portal.
const DefaultBaseURL = "https://uk.mylife-software.net"

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

const logbookPath = "/Pages/Filterable/Logbook.aspx?ItemValue=logbook"

// ASP.NET WebForms field names posted by the portal's login and logbook pages.
const (
	fieldUserName    = "ctl00$conContent$UserLogin$lgnMylifeLogin$UserName"
	fieldPassword    = "ctl00$conContent$UserLogin$lgnMylifeLogin$Password"
	fieldLoginButton = "ctl00$conContent$UserLogin$lgnMylifeLogin$LoginButton"
	fieldTimeSpan    = "ctl00$conContent$ctl01$ddlTimeSpan"
)

var stateFields = []string{"__EVENTVALIDATION", "__VIEWSTATE", "__VIEWSTATEGENERATOR"}

// ErrLoginFailed is returned when the portal shows the login form again
// after credentials were posted.
var ErrLoginFailed = errors.New("mylife login failed")

// Client is a scraping client for the mylife portal. It keeps the session
// in a cookie jar.
type Client struct {
	BaseURL    string
	Email      string
	Password   string
	HTTPClient *http.Client
}

// NewClient creates a new portal client with an empty session.
func NewClient(baseURL, email, password string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// cookiejar.New only fails for invalid options.
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Email:    email,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
	}
}

func (c *Client) fetch(ctx context.Context, method, target string, form url.Values) (*goquery.Document, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s returned status %d", method, target, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", target, err)
	}
	return doc, nil
}

// formState collects the hidden WebForms state a postback must echo.
func formState(doc *goquery.Document) (url.Values, error) {
	form := url.Values{}
	for _, name := range stateFields {
		input := doc.Find("#" + name)
		value, ok := input.Attr("value")
		if !ok {
			if name == "__VIEWSTATE" {
				return nil, fmt.Errorf("page has no %s field", name)
			}
			continue
		}
		form.Set(name, value)
	}
	return form, nil
}

// Login posts the credentials through the portal's login form.
func (c *Client) Login(ctx context.Context) error {
	page, err := c.fetch(ctx, http.MethodGet, c.BaseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("load login form: %w", err)
	}
	form, err := formState(page)
	if err != nil {
		return fmt.Errorf("load login form: %w", err)
	}
	form.Set(fieldUserName, c.Email)
	form.Set(fieldPassword, c.Password)
	form.Set(fieldLoginButton, "Log in")

	result, err := c.fetch(ctx, http.MethodPost, c.BaseURL+"/", form)
	if err != nil {
		return fmt.Errorf("post login form: %w", err)
	}
	if result.Find(`input[name="` + fieldPassword + `"]`).Length() > 0 {
		return ErrLoginFailed
	}
	return nil
}

// FetchLogbook returns the logbook rows newest first. An empty span loads
// the portal's default view; otherwise span is posted as the time span
// selection (e.g. "Today").
func (c *Client) FetchLogbook(ctx context.Context, span string) ([]domain.Entry, error) {
	page, err := c.fetch(ctx, http.MethodGet, c.BaseURL+logbookPath, nil)
	if err != nil {
		return nil, fmt.Errorf("load logbook: %w", err)
	}
	if span == "" {
		return ExtractEntries(page), nil
	}

	form, err := formState(page)
	if err != nil {
		return nil, fmt.Errorf("load logbook: %w", err)
	}
	form.Set(fieldTimeSpan, span)
	page, err = c.fetch(ctx, http.MethodPost, c.BaseURL+logbookPath, form)
	if err != nil {
		return nil, fmt.Errorf("load logbook for %q: %w", span, err)
	}
	return ExtractEntries(page), nil
}

type sessionCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SessionState serializes the portal cookies so a later run can reuse them.
func (c *Client) SessionState() (string, error) {
	u, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	var cookies []sessionCookie
	for _, ck := range c.HTTPClient.Jar.Cookies(u) {
		cookies = append(cookies, sessionCookie{Name: ck.Name, Value: ck.Value})
	}
	data, err := json.Marshal(cookies)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cookies: %w", err)
	}
	return string(data), nil
}

// RestoreSession loads cookies produced by SessionState.
func (c *Client) RestoreSession(state string) error {
	if state == "" {
		return nil
	}
	var cookies []sessionCookie
	if err := json.Unmarshal([]byte(state), &cookies); err != nil {
		return fmt.Errorf("failed to unmarshal cookies: %w", err)
	}
	u, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	jarCookies := make([]*http.Cookie, len(cookies))
	for i, ck := range cookies {
		jarCookies[i] = &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"}
	}
	c.HTTPClient.Jar.SetCookies(u, jarCookies)
	return nil
}
