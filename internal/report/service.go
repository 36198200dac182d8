// Package report delivers emergency triage alerts to an on-call Telegram chat.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/signintech/gopdf"

	"afiya-triage/internal/language"
	"afiya-triage/internal/safety"
	"afiya-triage/internal/triage"
)

// ErrNoFont is returned when none of the configured TTF fonts could be loaded.
var ErrNoFont = errors.New("no usable font for PDF report")

// DefaultFontPaths are the usual DejaVuSans locations on Alpine and Debian images.
// DejaVu covers the Yoruba and Igbo diacritics.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

const (
	fontFamily  = "DejaVu"
	marginLeft  = 40.0
	textWidth   = 515.0
	pageBottom  = 790.0
	maxSymptoms = 1000
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

type Service struct {
	tgClient  TelegramClient
	chatID    int64
	fontPaths []string
	now       func() time.Time
	logger    *slog.Logger
}

// NewService returns an alerter for chatID. With no fontPaths the
// DefaultFontPaths are tried.
func NewService(tg TelegramClient, chatID int64, fontPaths ...string) *Service {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	return &Service{
		tgClient:  tg,
		chatID:    chatID,
		fontPaths: fontPaths,
		now:       time.Now,
		logger:    slog.Default().With("component", "report"),
	}
}

// NotifyEmergency sends a short text alert and then the PDF report. A PDF that
// cannot be rendered is logged and skipped; the text alert has already gone out.
func (s *Service) NotifyEmergency(ctx context.Context, q triage.SymptomQuery, res triage.DiagnosisResult) error {
	s.logger.Info("sending emergency alert", "response_id", res.ID, "severity", res.Severity, "chat_id", s.chatID)
	if err := s.tgClient.SendMessage(ctx, s.chatID, AlertText(q, res)); err != nil {
		return fmt.Errorf("alert message: %w", err)
	}

	doc, err := s.RenderPDF(q, res)
	if err != nil {
		s.logger.Warn("skipping PDF report", "response_id", res.ID, "error", err)
		return nil
	}
	fileName := fmt.Sprintf("triage_%s.pdf", res.ID.String())
	if err := s.tgClient.SendDocument(ctx, s.chatID, doc, fileName); err != nil {
		return fmt.Errorf("alert report: %w", err)
	}
	s.logger.Info("emergency report sent", "response_id", res.ID, "bytes", len(doc))
	return nil
}

// AlertText is the plain-text message posted before the PDF.
func AlertText(q triage.SymptomQuery, res triage.DiagnosisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 %s triage alert\n", severityLabel(res.Severity))
	fmt.Fprintf(&b, "Response: %s\n", res.ID)
	fmt.Fprintf(&b, "Language: %s\n", language.Name(res.Language))
	if q.Age != nil {
		fmt.Fprintf(&b, "Age: %d\n", *q.Age)
	}
	if q.Gender != "" {
		fmt.Fprintf(&b, "Gender: %s\n", q.Gender)
	}
	if cats := safety.Categories(res.RedFlags); len(cats) > 0 {
		fmt.Fprintf(&b, "Red flags: %s\n", strings.Join(cats, ", "))
	}
	fmt.Fprintf(&b, "Symptoms: %s", truncate(q.Symptoms, 300))
	return b.String()
}

// RenderPDF builds the triage report for one result.
func (s *Service) RenderPDF(q triage.SymptomQuery, res triage.DiagnosisResult) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.SetMargins(marginLeft, 40, marginLeft, 40)
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont(fontFamily, path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("%w: last error: %v", ErrNoFont, fontErr)
	}

	w := &pageWriter{pdf: pdf}
	w.heading(20, fmt.Sprintf("%s triage report", severityLabel(res.Severity)))
	w.gap(10)

	w.font(11)
	w.line(fmt.Sprintf("Date: %s", s.now().UTC().Format("02.01.2006 15:04 MST")))
	w.line(fmt.Sprintf("Response ID: %s", res.ID))
	w.line(fmt.Sprintf("Language: %s", language.Name(res.Language)))
	if q.Age != nil {
		w.line(fmt.Sprintf("Age: %d", *q.Age))
	}
	if q.Gender != "" {
		w.line(fmt.Sprintf("Gender: %s", q.Gender))
	}
	w.gap(10)

	w.heading(14, "Reported symptoms")
	w.font(11)
	w.paragraph(truncate(q.Symptoms, maxSymptoms))
	if q.AdditionalInfo != "" {
		w.paragraph("Additional information: " + q.AdditionalInfo)
	}
	w.gap(10)

	w.heading(14, "Red flags")
	w.font(11)
	if len(res.RedFlags) == 0 {
		w.line("- none detected")
	}
	for _, f := range res.RedFlags {
		w.paragraph(fmt.Sprintf("- [%s] %s", f.Severity, f.Category))
	}
	w.gap(10)

	w.heading(14, "Possible conditions")
	w.font(11)
	if len(res.Conditions) == 0 {
		w.line("- no matches")
	}
	for _, c := range res.Conditions {
		w.paragraph(fmt.Sprintf("- %s (confidence %.2f, severity %s)", c.Title, c.Confidence, c.Severity))
	}
	w.gap(10)

	w.heading(14, "Recommendations")
	w.font(11)
	for _, r := range res.Recommendations {
		w.paragraph("- " + r)
	}

	if res.Analysis != "" {
		w.gap(10)
		w.heading(14, "Model analysis")
		w.font(11)
		w.paragraph(res.Analysis)
	}

	w.gap(20)
	w.font(9)
	w.paragraph(res.Disclaimer)

	if w.err != nil {
		return nil, w.err
	}
	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// pageWriter keeps the first error and breaks pages near the bottom margin.
type pageWriter struct {
	pdf  *gopdf.GoPdf
	size float64
	err  error
}

func (w *pageWriter) font(size float64) {
	if w.err != nil {
		return
	}
	w.size = size
	w.err = w.pdf.SetFont(fontFamily, "", size)
}

func (w *pageWriter) heading(size float64, text string) {
	w.font(size)
	w.line(text)
}

func (w *pageWriter) line(text string) {
	if w.err != nil {
		return
	}
	if w.pdf.GetY() > pageBottom {
		w.pdf.AddPage()
	}
	w.err = w.pdf.Cell(nil, text)
	w.pdf.Br(w.size + 4)
}

func (w *pageWriter) paragraph(text string) {
	if w.err != nil || text == "" {
		return
	}
	lines, err := w.pdf.SplitText(text, textWidth)
	if err != nil {
		w.err = err
		return
	}
	for _, l := range lines {
		w.line(l)
	}
}

func (w *pageWriter) gap(h float64) {
	if w.err == nil {
		w.pdf.Br(h)
	}
}

func severityLabel(s safety.Severity) string {
	if s == safety.SeverityNone {
		return "ROUTINE"
	}
	return string(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
