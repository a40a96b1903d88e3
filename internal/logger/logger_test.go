package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redirectToBuffer(buf *bytes.Buffer, format string) {
	levelVar := new(slog.LevelVar)
	setLoggingLevel(defaultFactory.level, levelVar)
	defaultFactory.format = format
	defaultFactory.levelVar = levelVar
	defaultLogger = slog.New(defaultFactory.createJSONOrTextHandler(buf, levelVar, ""))
}

func captureAtLevel(t *testing.T, level, format string) []string {
	t.Helper()
	defaultFactory.level = level
	var buf bytes.Buffer
	redirectToBuffer(&buf, format)

	var out []string
	for _, fn := range []func(string, ...any){Tracef, Debugf, Infof, Warnf, Errorf} {
		fn("example")
		out = append(out, buf.String())
		buf.Reset()
	}
	return out
}

func TestTextFormatRespectsLevel(t *testing.T) {
	out := captureAtLevel(t, Warn, "text")

	assert.Empty(t, out[0]) // trace suppressed
	assert.Empty(t, out[1]) // debug suppressed
	assert.Empty(t, out[2]) // info suppressed
	assert.Regexp(t, regexp.MustCompile(`severity=WARNING message=example`), out[3])
	assert.Regexp(t, regexp.MustCompile(`severity=ERROR message=example`), out[4])
}

func TestTextFormatTraceLevelEmitsEverything(t *testing.T) {
	out := captureAtLevel(t, Trace, "text")

	assert.Regexp(t, regexp.MustCompile(`severity=TRACE`), out[0])
	assert.Regexp(t, regexp.MustCompile(`severity=DEBUG`), out[1])
	assert.Regexp(t, regexp.MustCompile(`severity=INFO`), out[2])
}

func TestJSONFormatUsesTimestampGroupAndSeverity(t *testing.T) {
	out := captureAtLevel(t, Error, "json")

	require.NotEmpty(t, out[4])
	assert.Regexp(t, regexp.MustCompile(`"timestamp":\{"seconds":\d+,"nanos":\d+\}`), out[4])
	assert.Regexp(t, regexp.MustCompile(`"severity":"ERROR"`), out[4])
	assert.Regexp(t, regexp.MustCompile(`"message":"example"`), out[4])
}

func TestOffLevelSuppressesEverything(t *testing.T) {
	out := captureAtLevel(t, Off, "text")
	for _, line := range out {
		assert.Empty(t, line)
	}
}

func TestSetLoggingLevelMapsAllNames(t *testing.T) {
	cases := []struct {
		name string
		want slog.Level
	}{
		{Trace, LevelTrace},
		{Debug, LevelDebug},
		{Info, LevelInfo},
		{Warn, LevelWarn},
		{Error, LevelError},
		{Off, LevelOff},
	}
	for _, c := range cases {
		v := new(slog.LevelVar)
		setLoggingLevel(c.name, v)
		assert.Equal(t, c.want, v.Level())
	}
}

func TestSetLogFormatDefaultsToJSONWhenEmpty(t *testing.T) {
	SetLogFormat("")
	assert.Equal(t, "json", defaultFactory.format)
}
