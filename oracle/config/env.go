package config

import (
	"os"

	errorsmod "cosmossdk.io/errors"
	"github.com/spf13/cast"

	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

const (
	EnvLogLevel           = "RELAYER_LOG_LEVEL"
	EnvQueueInterval      = "RELAYER_QUEUE_INTERVAL"
	EnvStatusAddr         = "RELAYER_STATUS_ADDR"
	EnvFailureMode        = "RELAYER_FAILURE_MODE"
	EnvFailureMaxAttempts = "RELAYER_FAILURE_MAX_ATTEMPTS"
)

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = v
	}

	if v, ok := os.LookupEnv(EnvQueueInterval); ok {
		d, err := parseDuration(v)
		if err != nil {
			return errorsmod.Wrapf(types.ErrInvalidConfig, "%s: %v", EnvQueueInterval, err)
		}
		c.Relayer.QueueInterval = d
	}

	if v, ok := os.LookupEnv(EnvStatusAddr); ok {
		c.Relayer.StatusAddr = v
	}

	if v, ok := os.LookupEnv(EnvFailureMode); ok {
		c.Relayer.Failure.Mode = v
	}

	if v, ok := os.LookupEnv(EnvFailureMaxAttempts); ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return errorsmod.Wrapf(types.ErrInvalidConfig, "%s: %v", EnvFailureMaxAttempts, err)
		}
		c.Relayer.Failure.MaxAttempts = n
	}

	return nil
}
