package doctor

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rileyhilliard/connmon/internal/config"
	"github.com/rileyhilliard/connmon/internal/errors"
)

// ConfigFileCheck reports which config file is in use. Running on
// defaults is a warning, not a failure.
type ConfigFileCheck struct {
	// Path is the file that was loaded; empty means defaults.
	Path string
	// LoadErr is the error from loading, if any.
	LoadErr error
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return "CONFIG" }

func (c *ConfigFileCheck) Run(context.Context) CheckResult {
	switch {
	case c.LoadErr != nil:
		return CheckResult{
			Status:     StatusFail,
			Message:    "Config failed to load: " + errors.Summarize(c.LoadErr),
			Suggestion: "Check the YAML syntax, or run 'connmon init --force' to start over",
		}
	case c.Path == "":
		return CheckResult{
			Status:     StatusWarn,
			Message:    "No config file found, using defaults and environment",
			Suggestion: "Run 'connmon init' to create " + config.ConfigFileName,
		}
	default:
		return CheckResult{
			Status:  StatusPass,
			Message: "Config file: " + c.Path,
		}
	}
}

// ConfigValidCheck runs config.Validate.
type ConfigValidCheck struct {
	Config *config.Config
}

func (c *ConfigValidCheck) Name() string     { return "config_valid" }
func (c *ConfigValidCheck) Category() string { return "CONFIG" }

func (c *ConfigValidCheck) Run(context.Context) CheckResult {
	if err := config.Validate(c.Config); err != nil {
		res := CheckResult{Status: StatusFail, Message: err.Error()}
		var ce *errors.Error
		if stderrors.As(err, &ce) {
			res.Message, res.Suggestion = ce.Message, ce.Suggestion
		}
		return res
	}
	return CheckResult{
		Status: StatusPass,
		Message: fmt.Sprintf("transport %s, region %s, every %s",
			c.Config.Transport.Kind, c.Config.Session.Region, c.Config.Monitor.Interval),
	}
}
