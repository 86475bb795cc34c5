package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"ieee-registration-bot/internal/config"
	"ieee-registration-bot/internal/logger"
)

// settleDelay gives the grid's scripts a moment after the selector appears.
const settleDelay = time.Second

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	loginDomain string
	username    string
	password    string
}

// ChromeFactory launches a local Chrome per session using cfg.
func ChromeFactory(cfg config.RosterConfig) BrowserFactory {
	return func(ctx context.Context) (Browser, error) {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		headless := cfg.Headless == nil || *cfg.Headless
		opts = append(opts, chromedp.Flag("headless", headless))
		if cfg.ChromePath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
		}

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
		// Start the browser now so launch failures surface here.
		if err := chromedp.Run(browserCtx); err != nil {
			cancelBrowser()
			cancelAlloc()
			return nil, fmt.Errorf("failed to launch chrome: %w", err)
		}

		return &chromeBrowser{
			ctx: browserCtx,
			cancel: func() {
				cancelBrowser()
				cancelAlloc()
			},
			loginDomain: cfg.LoginDomain,
			username:    cfg.Username,
			password:    cfg.Password,
		}, nil
	}
}

func (b *chromeBrowser) Load(ctx context.Context, rawURL, selector string, timeout time.Duration) (string, error) {
	var location string
	if err := chromedp.Run(b.ctx,
		chromedp.Navigate(rawURL),
		chromedp.Location(&location),
	); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}

	if b.loginDomain != "" && strings.Contains(location, b.loginDomain) {
		logger.Debug("Roster redirected to login page, signing in")
		if err := b.login(); err != nil {
			return "", err
		}
	}

	waitCtx, cancel := context.WithTimeout(b.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var doc string
	if err := chromedp.Run(waitCtx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &doc, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("%s did not appear within %s: %w", selector, timeout, err)
	}
	return doc, nil
}

func (b *chromeBrowser) login() error {
	err := chromedp.Run(b.ctx,
		chromedp.WaitVisible("#username", chromedp.ByQuery),
		chromedp.SendKeys("#username", b.username, chromedp.ByQuery),
		chromedp.SendKeys("#password", b.password, chromedp.ByQuery),
		chromedp.Click("#submitButton", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to sign in to roster: %w", err)
	}
	return nil
}

func (b *chromeBrowser) Eval(ctx context.Context, script string) error {
	if err := chromedp.Run(b.ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("failed to evaluate script: %w", err)
	}
	return nil
}

func (b *chromeBrowser) Close() {
	b.cancel()
}
