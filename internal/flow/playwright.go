package flow

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/shehryarbajwa/regpool/internal/logging"
)

const (
	navigationTimeout = 60000
	elementTimeout    = 10000
)

// Site holds the signup entry points
type Site struct {
	TopURL         string
	EntryURL       string
	CertificateURL string
}

// Playwright connects to windows over CDP and runs the signup on a new page
type Playwright struct {
	pw   *playwright.Playwright
	site Site
}

// NewPlaywright starts the playwright driver. Browsers are never launched
// locally so no browser download is needed.
func NewPlaywright(site Site) (*Playwright, error) {
	pw, err := playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true})
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	return &Playwright{pw: pw, site: site}, nil
}

// Stop shuts the playwright driver down
func (d *Playwright) Stop() error {
	return d.pw.Stop()
}

// Open connects to the window's CDP endpoint and opens a fresh tab
func (d *Playwright) Open(ctx context.Context, endpoint string, log logging.Scoped) (Session, error) {
	browser, err := d.pw.Chromium.ConnectOverCDP(endpoint, playwright.BrowserTypeConnectOverCDPOptions{
		Timeout: playwright.Float(navigationTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	var bctx playwright.BrowserContext
	if contexts := browser.Contexts(); len(contexts) > 0 {
		bctx = contexts[0]
	} else if bctx, err = browser.NewContext(); err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	page.SetDefaultNavigationTimeout(navigationTimeout)

	return &session{
		browser: browser,
		page:    page,
		site:    d.site,
		log:     log,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}, nil
}

type session struct {
	browser playwright.Browser
	page    playwright.Page
	site    Site
	log     logging.Scoped
	rng     *rand.Rand
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *session) first(selector string) playwright.Locator {
	return s.page.Locator(selector).First()
}

func (s *session) visible(selector string) (playwright.Locator, error) {
	loc := s.first(selector)
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(elementTimeout),
	})
	return loc, err
}

func (s *session) selectOne(selector, value string) error {
	_, err := s.first(selector).SelectOption(playwright.SelectOptionValues{Values: &[]string{value}})
	return err
}

// Begin fills every page up to and including phone+password submission
func (s *session) Begin(ctx context.Context, p Profile) error {
	s.log.Info("open_url", "opening %s", s.site.TopURL)
	if _, err := s.page.Goto(s.site.TopURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("failed to open top page: %w", err)
	}
	if err := pause(ctx, 2*time.Second); err != nil {
		return err
	}

	if start, err := s.visible("a.btn-top.btn-regis-phone"); err == nil && start.Click() == nil {
		s.log.Info("click_start", "signup entry clicked")
	} else if _, err := s.page.Goto(s.site.EntryURL); err != nil {
		return fmt.Errorf("failed to open entry page: %w", err)
	}
	if err := pause(ctx, 2*time.Second); err != nil {
		return err
	}

	if err := s.basicInfo(ctx, p); err != nil {
		return err
	}
	s.preferences()
	s.avatar(ctx, p.AvatarPath)
	s.email(ctx, p.Email)
	return s.phone(ctx, p)
}

func (s *session) basicInfo(ctx context.Context, p Profile) error {
	nickname, err := s.visible("#input_nickname")
	if err == nil {
		err = nickname.Fill(p.Nickname)
	}
	if err != nil {
		return fmt.Errorf("failed to fill nickname: %w", err)
	}

	s.first(`label[for="female"]`).Click()

	if err := s.selectOne("#input_area", p.RegionCode); err != nil {
		return fmt.Errorf("failed to select region: %w", err)
	}
	s.log.Info("select_area", "region %s selected", p.RegionCode)

	if err := pause(ctx, time.Second); err != nil {
		return err
	}
	s.city()

	// the date picker only reads its hidden input, so set both directly
	month := p.DOB
	if len(month) >= 7 {
		month = month[:7]
	}
	if _, err := s.page.Evaluate(`(val) => {
		const input = document.getElementById('input_date');
		const view = document.getElementById('selectdate');
		if (input) input.value = val;
		if (view) {
			view.value = val;
			view.dispatchEvent(new Event('input', { bubbles: true }));
			view.dispatchEvent(new Event('change', { bubbles: true }));
		}
	}`, month); err != nil {
		return fmt.Errorf("failed to set birth month: %w", err)
	}

	if err := s.first("#submitBtn").Click(); err != nil {
		return fmt.Errorf("failed to submit basic info: %w", err)
	}
	return pause(ctx, 2*time.Second)
}

// city picks a random second-level area; the list loads after the region
func (s *session) city() {
	sel, err := s.visible("#input_city")
	if err != nil {
		return
	}
	options := sel.Locator("option")
	n, err := options.Count()
	if err != nil || n <= 1 {
		return
	}
	value, err := options.Nth(1 + s.rng.IntN(n-1)).GetAttribute("value")
	if err != nil {
		return
	}
	if _, err := sel.SelectOption(playwright.SelectOptionValues{Values: &[]string{value}}); err == nil {
		s.log.Info("select_city", "city %s selected", value)
	}
}

func (s *session) preferences() {
	date := []int{1, 2, 3, 99}[s.rng.IntN(4)]
	meet := 1 + s.rng.IntN(3)

	err := s.selectOne("#dateHope", strconv.Itoa(date))
	if err == nil {
		err = s.selectOne("#meetHope", strconv.Itoa(meet))
	}
	if err == nil {
		err = s.first("#submitBtnStep02w").Click()
	}
	if err != nil {
		s.log.Info("step3_skip", "preferences skipped: %v", err)
		return
	}
	s.log.Info("step3_submit", "preferences submitted")
}

func (s *session) avatar(ctx context.Context, path string) {
	if pause(ctx, 2*time.Second) != nil || path == "" {
		return
	}

	err := s.first("span.popup-photo").Click()
	if err == nil {
		err = s.first("input#imageUpload").SetInputFiles(path)
	}
	if err != nil {
		s.log.Warn("upload_avatar", "avatar upload failed: %v", err)
		return
	}
	s.log.Info("upload_avatar", "avatar %s uploaded", path)

	if pause(ctx, 5*time.Second) != nil {
		return
	}
	btn := s.first("#submitBtnStep03")
	if enabled, _ := btn.IsEnabled(); !enabled {
		s.log.Warn("upload_avatar", "avatar submit button is disabled")
		return
	}
	btn.Click()
}

func (s *session) email(ctx context.Context, email string) {
	if pause(ctx, 2*time.Second) != nil {
		return
	}
	if s.first("input#input_email").Fill(email) != nil {
		return
	}
	if s.first("input#checkboxOptIn").Check() != nil {
		return
	}
	btn := s.first("#submitBtnStep04")
	if enabled, _ := btn.IsEnabled(); enabled {
		btn.Click()
	}
}

func (s *session) phone(ctx context.Context, p Profile) error {
	if err := pause(ctx, 2*time.Second); err != nil {
		return err
	}

	tel, err := s.visible("input#input_tel")
	if err == nil {
		err = tel.Click()
	}
	if err == nil {
		err = tel.Fill("")
	}
	if err == nil {
		err = tel.PressSequentially(p.Phone, playwright.LocatorPressSequentiallyOptions{Delay: playwright.Float(50)})
	}
	if err == nil {
		err = tel.Press("Tab")
	}
	if err != nil {
		return fmt.Errorf("phone page failed: %w", err)
	}
	if err := pause(ctx, time.Second); err != nil {
		return err
	}

	pass := s.first("input#input_password_tel")
	err = pass.Fill(p.Password)
	if err == nil {
		err = pass.Press("Tab")
	}
	if err != nil {
		return fmt.Errorf("phone page failed: %w", err)
	}
	if err := pause(ctx, time.Second); err != nil {
		return err
	}

	btn := s.first("#submitBtnStep05")
	if disabled, _ := btn.IsDisabled(); disabled {
		s.log.Info("step6_retry", "submit still disabled, clicking body")
		s.first("body").Click()
		if err := pause(ctx, time.Second); err != nil {
			return err
		}
	}
	if err := btn.Click(); err != nil {
		return fmt.Errorf("phone page failed: %w", err)
	}
	s.log.Info("step6_submit", "phone and password submitted")
	return pause(ctx, 2*time.Second)
}

// SubmitCode enters the verification code and dismisses the like prompt
func (s *session) SubmitCode(ctx context.Context, code string) error {
	if err := s.first("#input_code_tel").Fill(code); err != nil {
		return fmt.Errorf("failed to fill verification code: %w", err)
	}
	s.first("body").Click()
	if err := pause(ctx, time.Second); err != nil {
		return err
	}
	if err := s.first("#submitBtnStep06").Click(); err != nil {
		return fmt.Errorf("failed to submit verification code: %w", err)
	}
	s.log.Info("sms_submit", "verification code submitted")
	if err := pause(ctx, 2*time.Second); err != nil {
		return err
	}

	skip := s.first("img.delButton")
	if skip.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	}) == nil {
		skip.Click()
	}
	return nil
}

// UploadCertificate submits an age verification image from path
func (s *session) UploadCertificate(ctx context.Context, path string) error {
	// the account page needs a moment to settle after signup
	if err := pause(ctx, 5*time.Second); err != nil {
		return err
	}
	if _, err := s.page.Goto(s.site.CertificateURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
	}); err != nil {
		return fmt.Errorf("failed to open certificate page: %w", err)
	}

	uploader := s.first("input#uploader")
	if err := uploader.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(elementTimeout),
	}); err != nil {
		return fmt.Errorf("certificate uploader missing: %w", err)
	}
	if err := uploader.SetInputFiles(path); err != nil {
		return fmt.Errorf("failed to attach certificate: %w", err)
	}
	if err := pause(ctx, 2*time.Second); err != nil {
		return err
	}

	submit := s.first("span.exec-upload.nenrei_pic2")
	submit.ScrollIntoViewIfNeeded()
	if err := pause(ctx, time.Second); err != nil {
		return err
	}
	if err := submit.Click(); err != nil {
		return fmt.Errorf("failed to submit certificate: %w", err)
	}
	if err := pause(ctx, 2*time.Second); err != nil {
		return err
	}

	if err := s.first("div.menuLink >> a").Click(); err != nil {
		return fmt.Errorf("failed to leave certificate page: %w", err)
	}
	return nil
}

// Close closes the tab and drops the CDP connection. The window itself
// stays open; its lifetime belongs to the browser manager.
func (s *session) Close() {
	s.page.Close()
	s.browser.Close()
}
