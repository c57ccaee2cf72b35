package logger

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const timeLayout = "2006-01-02 15:04:05"

// LineFormatter renders one entry per line:
// "2006-01-02 15:04:05 | INFO     | message key=value".
type LineFormatter struct{}

func (LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s | %-8s | %s", e.Time.Format(timeLayout), levelName(e.Level), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.PanicLevel:
		return "CRITICAL"
	case logrus.FatalLevel:
		return "FATAL"
	default:
		// logrus spells WARN as "warning" already
		return strings.ToUpper(l.String())
	}
}

// New builds the process logger. It is created once in main and passed
// down to every component.
func New(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(LineFormatter{})
	return log, nil
}
