package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// PDFConfig drives the headless Chrome exporter.
type PDFConfig struct {
	ChromePath string
	Timeout    time.Duration
}

// PDFExporter prints rendered report pages to PDF with headless Chrome.
type PDFExporter struct {
	chromePath string
	timeout    time.Duration
}

var chromeCandidates = []string{
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/snap/bin/chromium",
}

// NewPDFExporter builds an exporter. An empty ChromePath falls back to the usual install
// locations and finally to chromedp's own lookup.
func NewPDFExporter(cfg PDFConfig) *PDFExporter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PDFExporter{chromePath: detectChromePath(cfg.ChromePath), timeout: timeout}
}

func detectChromePath(configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
		logrus.WithField("chrome_path", configured).Warn("configured chrome path not found")
	}
	for _, path := range chromeCandidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// PrintURL navigates to the report page and prints it as A4 PDF.
func (e *PDFExporter) PrintURL(ctx context.Context, renderURL string) ([]byte, error) {
	if e == nil {
		return nil, errors.New("pdf exporter is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("enable-print-preview", true),
	)
	if e.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(e.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	chromedpCtx, chromedpCancel := chromedp.NewContext(allocCtx)
	defer chromedpCancel()

	var pdfBuf []byte
	err := chromedp.Run(chromedpCtx,
		chromedp.EmulateViewport(794, 1123),
		chromedp.Navigate(renderURL),
		chromedp.WaitReady("#report-content"),
		chromedp.Evaluate(`
			Promise.all(Array.from(document.querySelectorAll('img')).map(img => new Promise(resolve => {
				if (img.complete) { resolve(); return; }
				const timeout = setTimeout(resolve, 5000);
				img.onload = () => { clearTimeout(timeout); resolve(); };
				img.onerror = () => { clearTimeout(timeout); img.style.display = 'none'; resolve(); };
			})));
		`, nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			// A4: 210mm x 297mm
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.4).
				WithMarginBottom(0.4).
				WithMarginLeft(0.4).
				WithMarginRight(0.4).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print report pdf: %w", err)
	}
	return pdfBuf, nil
}
