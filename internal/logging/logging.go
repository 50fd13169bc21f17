// Package logging holds the logrus logger shared by the embedshot packages.
package logging

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	timestampFormat = "2006-01-02 15:04:05.000"
	separator       = " — "
)

// Log is the process-wide logger. Its level is driven by embedshot.SetLogLevel.
var Log = New("embedshot")

// New returns a logger writing single-line records to stderr.
func New(name string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetReportCaller(true)
	l.SetFormatter(&LineFormatter{Name: name})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// LineFormatter renders entries as
//
//	<time> — <name> — <LEVEL> — <func>:<line> — <message> [key=value ...]
type LineFormatter struct {
	Name string
}

func (f *LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b := e.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	b.WriteString(strings.Join([]string{
		e.Time.Format(timestampFormat),
		f.Name,
		strings.ToUpper(e.Level.String()),
	}, separator))
	b.WriteString(separator)
	if e.HasCaller() {
		fmt.Fprintf(b, "%s:%d%s", shortFunc(e.Caller.Function), e.Caller.Line, separator)
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, e.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// shortFunc trims the import path from a runtime function name:
// "github.com/x/y/pkg.(*T).M" becomes "(*T).M".
func shortFunc(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	if _, after, ok := strings.Cut(fn, "."); ok {
		return after
	}
	return fn
}
