package logger

import (
	"go.uber.org/zap"
)

// New builds the process logger. Development mode uses the console
// encoder, anything else the production JSON encoder.
func New(env string) (*zap.SugaredLogger, error) {
	var l *zap.Logger
	var err error
	if env == "development" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
