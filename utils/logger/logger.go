package logger

import (
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
)

type stringer interface {
	String() string
}

const objField = "obj"

func objToString(obj any) (objStr string) {
	if obj == nil {
		objStr = "NIL"
	} else if stringerObj, ok := obj.(stringer); ok {
		objStr = stringerObj.String()
	} else if objStr, ok = obj.(string); ok {
	} else {
		t := reflect.TypeOf(obj)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		objStr = t.Name()
	}
	return
}

// Init sets the global level and the text formatter used by every helper.
func Init(lvl logrus.Level) {
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		PadLevelText:    true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
}

// ParseLevel parses a level name, falling back to info on empty input.
func ParseLevel(s string) (logrus.Level, error) {
	if s == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(s)
}

func entry(object any) *logrus.Entry {
	return logrus.WithField(objField, objToString(object))
}

func Trace(object any, message string) {
	if !logrus.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	entry(object).Trace(message)
}

func Tracef(object any, message string, args ...any) {
	if !logrus.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	entry(object).Trace(fmt.Sprintf(message, args...))
}

func Debug(object any, message string) {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	entry(object).Debug(message)
}

func Debugf(object any, message string, args ...any) {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	entry(object).Debug(fmt.Sprintf(message, args...))
}

func Info(object any, message string) {
	if !logrus.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	entry(object).Info(message)
}

func Infof(object any, message string, args ...any) {
	if !logrus.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	entry(object).Info(fmt.Sprintf(message, args...))
}

func Warningf(object any, message string, args ...any) {
	if !logrus.IsLevelEnabled(logrus.WarnLevel) {
		return
	}
	entry(object).Warning(fmt.Sprintf(message, args...))
}

func Errorf(object any, message string, args ...any) {
	if !logrus.IsLevelEnabled(logrus.ErrorLevel) {
		return
	}
	entry(object).Error(fmt.Sprintf(message, args...))
}

func Fatalf(object any, message string, args ...any) {
	entry(object).Fatal(fmt.Sprintf(message, args...))
}
