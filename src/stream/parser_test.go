package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/orbital/src/aisdk"
)

func collect(t *testing.T, r io.Reader) ([]aisdk.Delta, Outcome, error) {
	t.Helper()
	var deltas []aisdk.Delta
	p := NewParser(Config{ReadSize: 7})
	outcome, err := p.Parse(context.Background(), r, func(d aisdk.Delta) {
		deltas = append(deltas, d)
	})
	return deltas, outcome, err
}

func joinContent(deltas []aisdk.Delta) string {
	var sb strings.Builder
	for _, d := range deltas {
		sb.WriteString(d.Content)
	}
	return sb.String()
}

// splitReader returns the input in two reads split at the given offset.
type splitReader struct {
	parts [][]byte
}

func newSplitReader(data []byte, at int) *splitReader {
	return &splitReader{parts: [][]byte{data[:at], data[at:]}}
}

func (r *splitReader) Read(p []byte) (int, error) {
	for len(r.parts) > 0 && len(r.parts[0]) == 0 {
		r.parts = r.parts[1:]
	}
	if len(r.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.parts[0])
	r.parts[0] = r.parts[0][n:]
	return n, nil
}

func TestParseHello(t *testing.T) {
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n"

	deltas, outcome, err := collect(t, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, "Hello", joinContent(deltas))
	assert.Len(t, deltas, 2)
}

const mixedStream = ": keep-alive\r\n" +
	"\r\n" +
	"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\r\n\r\n" +
	"data: {\"choices\":[{\"delta\":{\"reasoning\":\"thinking \"}}]}\r\n\r\n" +
	"data: {\"choices\":[{\"delta\":{\"reasoning\":\"hard\"}}]}\n\n" +
	"data:{\"choices\":[{\"delta\":{\"content\":\"héllo \"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"wörld\",\"images\":[{\"type\":\"image_url\",\"image_url\":{\"url\":\"https://x.test/a.png\"}}]}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"images\":[{\"type\":\"image_base64\",\"image_base64\":{\"b64_json\":\"AAAA\"}}]}}]}\n\n" +
	"data: [DONE]\n\n"

func TestParseSplitInvariance(t *testing.T) {
	data := []byte(mixedStream)
	want, wantOutcome, err := collect(t, bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, OutcomeDone, wantOutcome)
	require.Len(t, want, 5)

	for at := 0; at <= len(data); at++ {
		got, outcome, err := collect(t, newSplitReader(data, at))
		require.NoError(t, err, "split at %d", at)
		require.Equal(t, wantOutcome, outcome, "split at %d", at)
		require.Equal(t, want, got, "split at %d", at)
	}

	got, outcome, err := collect(t, iotest.OneByteReader(bytes.NewReader(data)))
	require.NoError(t, err)
	assert.Equal(t, wantOutcome, outcome)
	assert.Equal(t, want, got)
}

func TestParseMixedStreamContents(t *testing.T) {
	deltas, _, err := collect(t, strings.NewReader(mixedStream))
	require.NoError(t, err)

	var reasoning strings.Builder
	var images []aisdk.Image
	for _, d := range deltas {
		reasoning.WriteString(d.Reasoning)
		images = append(images, d.Images...)
	}
	assert.Equal(t, "thinking hard", reasoning.String())
	assert.Equal(t, "héllo wörld", joinContent(deltas))
	assert.Equal(t, []aisdk.Image{
		{Type: aisdk.ImageTypeURL, URL: "https://x.test/a.png"},
		{Type: aisdk.ImageTypeURL, URL: "data:image/png;base64,AAAA"},
	}, images)
}

func TestParseImages(t *testing.T) {
	input := `data: {"choices":[{"delta":{"images":[` +
		`{"type":"image_url","image_url":{"url":"https://x.test/1.png","alt":"one"}},` +
		`42,` +
		`{"type":"image_url","image_url":{}},` +
		`{"type":"image_base64","image_base64":{"b64_json":"QUJD","mime_type":"image/jpeg"}},` +
		`{"type":"video"}` +
		`]}}]}` + "\n"

	deltas, outcome, err := collect(t, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, OutcomeEOF, outcome)
	require.Len(t, deltas, 1)
	assert.Equal(t, []aisdk.Image{
		{Type: aisdk.ImageTypeURL, URL: "https://x.test/1.png", Alt: "one"},
		{Type: aisdk.ImageTypeURL, URL: "data:image/jpeg;base64,QUJD"},
	}, deltas[0].Images)
}

func TestParseOnlyMalformedImagesEmitsNothing(t *testing.T) {
	input := `data: {"choices":[{"delta":{"images":[{"type":"image_url"}]}}]}` + "\n"
	deltas, _, err := collect(t, strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, deltas)
}

func TestParseEOFWithoutSentinel(t *testing.T) {
	// Final line has no trailing newline.
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}"

	deltas, outcome, err := collect(t, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, OutcomeEOF, outcome)
	assert.Equal(t, "ab", joinContent(deltas))
}

func TestParseSentinelWithoutNewline(t *testing.T) {
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\ndata: [DONE]"
	deltas, outcome, err := collect(t, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, "a", joinContent(deltas))
}

func TestParseStopsAtSentinel(t *testing.T) {
	input := "data: [DONE]\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}\n"
	deltas, outcome, err := collect(t, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Empty(t, deltas)
}

func TestParseReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\ndata: {\"cho"),
		iotest.ErrReader(boom),
	)

	deltas, _, err := collect(t, r)
	require.Error(t, err)

	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "partial", joinContent(deltas))
}

func TestParseFragmentAcrossLines(t *testing.T) {
	input := "data: {\"choices\":[{\"delta\":\n" +
		"{\"content\":\"joined\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}\n" +
		"data: [DONE]\n"

	deltas, outcome, err := collect(t, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, "joined!", joinContent(deltas))
}

func TestParseFragmentAcrossDataLines(t *testing.T) {
	input := "data: {\"choices\":[{\"delta\":\n" +
		"data: {\"content\":\"x\"}}]}\n" +
		"data: [DONE]\n"

	deltas, _, err := collect(t, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "x", joinContent(deltas))
}

func TestParseMalformedLineDropped(t *testing.T) {
	input := "data: not json\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n" +
		"event: ping\n" +
		"data: [DONE]\n"

	deltas, outcome, err := collect(t, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, "ok", joinContent(deltas))
}

func TestParseIncompleteFragmentRecoversOnNextEvent(t *testing.T) {
	// A truncated event followed by a well-formed one: the joined text is
	// invalid so the fragment is dropped and the new event still parses.
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"lost\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"kept\"}}]}\n" +
		"data: [DONE]\n"

	deltas, _, err := collect(t, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "kept", joinContent(deltas))
}

func TestParseProviderError(t *testing.T) {
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" +
		"data: {\"error\":{\"code\":502,\"message\":\"upstream overloaded\"}}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n"

	deltas, _, err := collect(t, strings.NewReader(input))
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "upstream overloaded", provErr.Message)
	assert.Equal(t, "provider error 502: upstream overloaded", provErr.Error())
	assert.Equal(t, "a", joinContent(deltas))
}

func TestParseCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewParser(Config{})
	_, err := p.Parse(ctx, strings.NewReader("data: [DONE]\n"), func(aisdk.Delta) {
		t.Fatal("no delta expected")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "done", OutcomeDone.String())
	assert.Equal(t, "eof", OutcomeEOF.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}
