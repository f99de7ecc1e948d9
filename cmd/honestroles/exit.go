package main

import (
	"errors"

	libconfig "github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/ingest"
	"github.com/hypertrial/honestroles-sub000/pkg/pipeline"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
)

// Process exit codes.
const (
	ExitOK              = 0
	ExitUnexpected      = 1
	ExitConfig          = 2
	ExitPluginLoad      = 3
	ExitPluginExecution = 4
	ExitStageExecution  = 5
)

// exitCode maps an error returned by a command to the process exit code.
// Classification uses errors.Is only; messages are never inspected.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pipeline.ErrStageExecution):
		return ExitStageExecution
	case errors.Is(err, plugin.ErrPluginExecution):
		return ExitPluginExecution
	case errors.Is(err, plugin.ErrPluginLoad), errors.Is(err, plugin.ErrPluginValidation):
		return ExitPluginLoad
	case errors.Is(err, libconfig.ErrConfigValidation),
		errors.Is(err, libconfig.ErrConfigRead),
		errors.Is(err, pipeline.ErrRuntimeInitialization),
		errors.Is(err, ingest.ErrInputRead),
		errors.Is(err, ingest.ErrInputPrepare),
		errors.Is(err, ingest.ErrBinaryInput):
		return ExitConfig
	default:
		return ExitUnexpected
	}
}
