package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afiya-triage/internal/language"
	"afiya-triage/internal/safety"
	"afiya-triage/internal/triage"
)

type sentDoc struct {
	chatID int64
	data   []byte
	name   string
}

type fakeTelegram struct {
	messages []string
	docs     []sentDoc
	msgErr   error
}

func (f *fakeTelegram) SendMessage(_ context.Context, _ int64, text string) error {
	if f.msgErr != nil {
		return f.msgErr
	}
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeTelegram) SendDocument(_ context.Context, chatID int64, data []byte, name string) error {
	f.docs = append(f.docs, sentDoc{chatID: chatID, data: data, name: name})
	return nil
}

func fixture() (triage.SymptomQuery, triage.DiagnosisResult) {
	age := 54
	q := triage.SymptomQuery{
		Symptoms: "crushing chest pain spreading to my left arm",
		Age:      &age,
		Gender:   "male",
	}
	flags := safety.NewDetector().Detect(q.Symptoms)
	res := triage.DiagnosisResult{
		ID:              uuid.MustParse("6f1c1d2e-8d5b-4a8e-9d1f-3b2c1a0e9f7d"),
		RedFlags:        flags,
		Severity:        safety.MaxSeverity(flags),
		Disclaimer:      safety.Disclaimer(),
		Recommendations: safety.Recommendations(flags),
		Language:        language.English,
		Conditions: []triage.ConditionMatch{
			{Title: "Myocardial infarction", Severity: "critical", Confidence: 0.91},
		},
	}
	return q, res
}

func availableFont(t *testing.T) string {
	t.Helper()
	for _, p := range DefaultFontPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Skip("DejaVuSans not installed")
	return ""
}

func TestAlertText(t *testing.T) {
	q, res := fixture()
	text := AlertText(q, res)

	assert.Contains(t, text, "EMERGENCY triage alert")
	assert.Contains(t, text, res.ID.String())
	assert.Contains(t, text, "Age: 54")
	assert.Contains(t, text, "chest_pain")
	assert.Contains(t, text, "crushing chest pain")
}

func TestNotifyEmergencySendsMessageAndPDF(t *testing.T) {
	font := availableFont(t)
	tg := &fakeTelegram{}
	svc := NewService(tg, -1001, font)

	q, res := fixture()
	require.NoError(t, svc.NotifyEmergency(context.Background(), q, res))

	require.Len(t, tg.messages, 1)
	require.Len(t, tg.docs, 1)
	assert.Equal(t, int64(-1001), tg.docs[0].chatID)
	assert.Equal(t, "triage_"+res.ID.String()+".pdf", tg.docs[0].name)
	assert.True(t, bytes.HasPrefix(tg.docs[0].data, []byte("%PDF-")))
}

func TestNotifyEmergencyWithoutFontSendsTextOnly(t *testing.T) {
	tg := &fakeTelegram{}
	svc := NewService(tg, 7, "/nonexistent/font.ttf")

	q, res := fixture()
	require.NoError(t, svc.NotifyEmergency(context.Background(), q, res))

	assert.Len(t, tg.messages, 1)
	assert.Empty(t, tg.docs)
}

func TestNotifyEmergencyMessageFailure(t *testing.T) {
	tg := &fakeTelegram{msgErr: errors.New("chat not found")}
	svc := NewService(tg, 7, "/nonexistent/font.ttf")

	q, res := fixture()
	err := svc.NotifyEmergency(context.Background(), q, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Empty(t, tg.docs)
}

func TestRenderPDFNoFont(t *testing.T) {
	svc := NewService(&fakeTelegram{}, 7, "/nonexistent/font.ttf")
	q, res := fixture()
	_, err := svc.RenderPDF(q, res)
	assert.ErrorIs(t, err, ErrNoFont)
}

func TestRenderPDFLongInputPaginates(t *testing.T) {
	font := availableFont(t)
	svc := NewService(&fakeTelegram{}, 7, font)

	q, res := fixture()
	res.Analysis = string(bytes.Repeat([]byte("Ìrora àyà tó le gan. "), 400))
	doc, err := svc.RenderPDF(q, res)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
}
