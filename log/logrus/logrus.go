// Package logrus adapts sirupsen/logrus to journeycas.Logger.
package logrus

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/journeycas"
)

type Logger struct{ E *logrus.Entry }

var _ journeycas.Logger = Logger{}

// NewJSON logs JSON lines to w at level; an unknown level means info.
func NewJSON(w io.Writer, level string) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return Logger{E: logrus.NewEntry(l)}
}

func (l Logger) Debug(msg string, f journeycas.Fields) { l.log(logrus.DebugLevel, msg, f) }
func (l Logger) Info(msg string, f journeycas.Fields)  { l.log(logrus.InfoLevel, msg, f) }
func (l Logger) Warn(msg string, f journeycas.Fields)  { l.log(logrus.WarnLevel, msg, f) }
func (l Logger) Error(msg string, f journeycas.Fields) { l.log(logrus.ErrorLevel, msg, f) }

func (l Logger) log(lvl logrus.Level, msg string, f journeycas.Fields) {
	if !l.E.Logger.IsLevelEnabled(lvl) {
		return
	}
	e := l.E
	if len(f) > 0 {
		e = e.WithFields(logrus.Fields(f))
	}
	e.Log(lvl, msg)
}
