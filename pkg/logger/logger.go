package logger

import (
	"github.com/fatflowers/matchday/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func New(cfg *config.Config) (*zap.SugaredLogger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.TimeKey = "time"
	if cfg != nil && cfg.Env == config.EnvDev {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar().With("env", cfgEnv(cfg)), nil
}

func cfgEnv(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return string(cfg.Env)
}

var Module = fx.Options(
	fx.Provide(New),
)
