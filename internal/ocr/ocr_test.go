package ocr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperalchemist/internal/common"
)

type stubRunner struct {
	stdout []byte
	stderr []byte
	err    error

	gotName string
	gotArgs []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.gotName = name
	s.gotArgs = args
	return s.stdout, s.stderr, s.err
}

func newStubExtractor(runner Runner) *Extractor {
	e := NewExtractor(Config{Languages: "eng+kor", Timeout: time.Minute}, nil)
	e.runner = runner
	return e
}

func TestExtractTextInvocation(t *testing.T) {
	stub := &stubRunner{stdout: []byte("extracted text layer")}
	e := newStubExtractor(stub)

	text, err := e.ExtractText(context.Background(), "/tmp/in.pdf")
	require.NoError(t, err)
	assert.Equal(t, "extracted text layer", text)

	assert.Equal(t, "pdftotext", stub.gotName)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix", "/tmp/in.pdf", "-"}, stub.gotArgs)
}

func TestExtractTextFailureIsUnavailable(t *testing.T) {
	stub := &stubRunner{stderr: []byte("no such file"), err: errors.New("exit 1")}
	e := newStubExtractor(stub)

	text, err := e.ExtractText(context.Background(), "/tmp/in.pdf")
	assert.Empty(t, text)
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
}

func TestForceOCRInvocation(t *testing.T) {
	calls := &recordingRunner{responses: map[string][]byte{
		"ocrmypdf":  nil,
		"pdftotext": []byte("ocr text"),
	}}
	e := newStubExtractor(calls)

	derived, text, err := e.ForceOCR(context.Background(), "/tmp/in.pdf", "/tmp/out.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.pdf", derived)
	assert.Equal(t, "ocr text", text)

	require.Len(t, calls.invocations, 2)
	assert.Equal(t, "ocrmypdf", calls.invocations[0].name)
	assert.Equal(t, []string{
		"--force-ocr", "-l", "eng+kor", "--optimize", "1", "--quiet",
		"/tmp/in.pdf", "/tmp/out.pdf",
	}, calls.invocations[0].args)
	assert.Equal(t, "pdftotext", calls.invocations[1].name)
}

func TestForceOCRFailure(t *testing.T) {
	stub := &stubRunner{err: errors.New("tesseract missing")}
	e := newStubExtractor(stub)

	derived, text, err := e.ForceOCR(context.Background(), "/tmp/in.pdf", "/tmp/out.pdf")
	assert.Empty(t, derived)
	assert.Empty(t, text)
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
}

type invocation struct {
	name string
	args []string
}

type recordingRunner struct {
	responses   map[string][]byte
	invocations []invocation
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.invocations = append(r.invocations, invocation{name: name, args: args})
	return r.responses[name], nil, nil
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde...(truncated)", truncate("abcdefghij", 5))
}

func TestExtractorDefaults(t *testing.T) {
	e := NewExtractor(Config{}, nil)
	assert.Equal(t, "pdftotext", e.cfg.Pdftotext)
	assert.Equal(t, "pdftoppm", e.cfg.Pdftoppm)
	assert.Equal(t, "ocrmypdf", e.cfg.OCRmyPDF)
	assert.Equal(t, "eng", e.cfg.Languages)
	assert.Equal(t, 200, e.cfg.DPI)
	assert.Equal(t, 5*time.Minute, e.cfg.Timeout)
}
