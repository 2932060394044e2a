/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: export.go
Description: Report export helpers. PDF rendering through headless Chrome (chromedp)
and opening a generated report in the desktop browser.
*/

package reporting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
)

// ErrNoBrowser is returned when no Chrome or Chromium executable can be found
var ErrNoBrowser = errors.New("no headless chrome available")

// DefaultPDFTimeout bounds a PDF export when the context carries no deadline
const DefaultPDFTimeout = 30 * time.Second

var chromeNames = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
}

// FindChrome returns the first Chrome executable on PATH
func FindChrome() (string, error) {
	for _, name := range chromeNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNoBrowser
}

// ExportPDF prints the HTML report at htmlPath to pdfPath
func ExportPDF(ctx context.Context, htmlPath, pdfPath string) error {
	chrome, err := FindChrome()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("report not found: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPDFTimeout)
		defer cancel()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.ExecPath(chrome))
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var buf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+filepath.ToSlash(abs)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			buf = data
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to print %s: %w", htmlPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(pdfPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(pdfPath, buf, 0644)
}

// Open shows a generated report in the default browser
func Open(path string) error {
	return browser.OpenFile(path)
}
