package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/komodo-sh/komodo/pkg/types"
)

// The validate hooks run on the merged config before create and update
// persists. They resolve referenced resources, rewriting name references to
// ids so stored configs never depend on other resources' names, and reject
// configs the executor could not act on.

func validateServer(_ *Store) validateFn[types.ServerConfig] {
	return func(_ context.Context, _ ValidateSelf, cfg *types.ServerConfig) error {
		if cfg.Address != "" {
			u, err := url.Parse(cfg.Address)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return types.NewValidationError("address", "must be a full url including scheme")
			}
			cfg.Address = strings.TrimSuffix(cfg.Address, "/")
		}
		if cfg.TimeoutSeconds < 0 {
			return types.NewValidationError("timeout_seconds", "must not be negative")
		}
		for field, pair := range map[string][2]float64{
			"cpu":  {cfg.CpuWarning, cfg.CpuCritical},
			"mem":  {cfg.MemWarning, cfg.MemCritical},
			"disk": {cfg.DiskWarning, cfg.DiskCritical},
		} {
			if pair[0] > pair[1] {
				return types.NewValidationError(field+"_warning", "must not exceed the critical threshold")
			}
		}
		return nil
	}
}

func validateDeployment(store *Store) validateFn[types.DeploymentConfig] {
	return func(ctx context.Context, _ ValidateSelf, cfg *types.DeploymentConfig) error {
		if cfg.ServerID != "" {
			server, err := store.Server(ctx, cfg.ServerID)
			if err != nil {
				return refError("server_id", cfg.ServerID, err)
			}
			cfg.ServerID = server.ID.Hex()
		}
		switch cfg.Image.Type {
		case types.ImageTypeImage, types.ImageTypeBuild:
		case "":
			cfg.Image.Type = types.ImageTypeImage
		default:
			return types.NewValidationError("image.type", fmt.Sprintf("unknown image type %q", cfg.Image.Type))
		}
		if cfg.Image.Type == types.ImageTypeBuild && cfg.Image.Params.BuildID != "" {
			build, err := store.Build(ctx, cfg.Image.Params.BuildID)
			if err != nil {
				return refError("image.params.build_id", cfg.Image.Params.BuildID, err)
			}
			cfg.Image.Params.BuildID = build.ID.Hex()
		}
		return nil
	}
}

func validateBuild(store *Store) validateFn[types.BuildConfig] {
	return func(ctx context.Context, _ ValidateSelf, cfg *types.BuildConfig) error {
		if cfg.BuilderID != "" {
			builder, err := store.Builder(ctx, cfg.BuilderID)
			if err != nil {
				return refError("builder_id", cfg.BuilderID, err)
			}
			cfg.BuilderID = builder.ID.Hex()
		}
		if cfg.Version.Major < 0 || cfg.Version.Minor < 0 || cfg.Version.Patch < 0 {
			return types.NewValidationError("version", "components must not be negative")
		}
		return nil
	}
}

func validateRepo(store *Store) validateFn[types.RepoConfig] {
	return func(ctx context.Context, _ ValidateSelf, cfg *types.RepoConfig) error {
		if cfg.ServerID != "" {
			server, err := store.Server(ctx, cfg.ServerID)
			if err != nil {
				return refError("server_id", cfg.ServerID, err)
			}
			cfg.ServerID = server.ID.Hex()
		}
		if cfg.BuilderID != "" {
			builder, err := store.Builder(ctx, cfg.BuilderID)
			if err != nil {
				return refError("builder_id", cfg.BuilderID, err)
			}
			cfg.BuilderID = builder.ID.Hex()
		}
		return nil
	}
}

func validateProcedure(_ *Store) validateFn[types.ProcedureConfig] {
	return func(_ context.Context, self ValidateSelf, cfg *types.ProcedureConfig) error {
		if err := validateSchedule(cfg.Schedule, cfg.ScheduleTimezone); err != nil {
			return err
		}
		for si, stage := range cfg.Stages {
			for ei, exec := range stage.Executions {
				if !exec.Enabled {
					continue
				}
				field := fmt.Sprintf("stages[%d].executions[%d]", si, ei)
				if exec.Execution.Type == types.ExecNone {
					continue
				}
				kind, selector := exec.Execution.Selector()
				if kind == "" {
					return types.NewValidationError(field, fmt.Sprintf("unknown execution type %q", exec.Execution.Type))
				}
				if selector == "" {
					return types.NewValidationError(field, "missing target")
				}
				// Direct self-reference would always recurse to the
				// depth limit; deeper cycles are caught at run time.
				if exec.Execution.Type == types.ExecRunProcedure &&
					(selector == self.ID || selector == self.Name) {
					return types.NewValidationError(field, "procedure cannot run itself")
				}
			}
		}
		return nil
	}
}

func validateAction(_ *Store) validateFn[types.ActionConfig] {
	return func(_ context.Context, _ ValidateSelf, cfg *types.ActionConfig) error {
		return validateSchedule(cfg.Schedule, cfg.ScheduleTimezone)
	}
}

func validateStack(store *Store) validateFn[types.StackConfig] {
	return func(ctx context.Context, _ ValidateSelf, cfg *types.StackConfig) error {
		if cfg.ServerID != "" {
			server, err := store.Server(ctx, cfg.ServerID)
			if err != nil {
				return refError("server_id", cfg.ServerID, err)
			}
			cfg.ServerID = server.ID.Hex()
		}
		if strings.HasPrefix(cfg.RunDirectory, "/") || strings.Contains(cfg.RunDirectory, "..") {
			return types.NewValidationError("run_directory", "must be a relative path within the repo")
		}
		return nil
	}
}

func validateResourceSync(_ *Store) validateFn[types.ResourceSyncConfig] {
	return func(_ context.Context, _ ValidateSelf, cfg *types.ResourceSyncConfig) error {
		for _, p := range cfg.ResourcePath {
			clean := filepath.Clean(p)
			if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
				return types.NewValidationError("resource_path",
					fmt.Sprintf("%q must stay within the sync directory", p))
			}
		}
		return nil
	}
}

func validateBuilder(store *Store) validateFn[types.BuilderConfig] {
	return func(ctx context.Context, _ ValidateSelf, cfg *types.BuilderConfig) error {
		switch cfg.Type {
		case types.BuilderUrl, types.BuilderAws, types.BuilderHetzner:
		case types.BuilderServer:
			if cfg.Params.ServerID != "" {
				server, err := store.Server(ctx, cfg.Params.ServerID)
				if err != nil {
					return refError("params.server_id", cfg.Params.ServerID, err)
				}
				cfg.Params.ServerID = server.ID.Hex()
			}
		case "":
			cfg.Type = types.BuilderUrl
		default:
			return types.NewValidationError("type", fmt.Sprintf("unknown builder type %q", cfg.Type))
		}
		if cfg.Params.Port < 0 || cfg.Params.Port > 65535 {
			return types.NewValidationError("params.port", "must be 0-65535")
		}
		return nil
	}
}

func validateAlerter(_ *Store) validateFn[types.AlerterConfig] {
	return func(_ context.Context, _ ValidateSelf, cfg *types.AlerterConfig) error {
		switch cfg.Endpoint.Type {
		case types.EndpointSlack, types.EndpointDiscord, types.EndpointCustom:
		case "":
			cfg.Endpoint.Type = types.EndpointCustom
		default:
			return types.NewValidationError("endpoint.type",
				fmt.Sprintf("unknown endpoint type %q", cfg.Endpoint.Type))
		}
		if cfg.Endpoint.Params.URL != "" && !strings.HasPrefix(cfg.Endpoint.Params.URL, "http") {
			return types.NewValidationError("endpoint.params.url", "must be an http(s) url")
		}
		return nil
	}
}

func validateServerTemplate(_ *Store) validateFn[types.ServerTemplateConfig] {
	return func(_ context.Context, _ ValidateSelf, cfg *types.ServerTemplateConfig) error {
		switch cfg.Type {
		case types.TemplateAws, types.TemplateHetzner:
		case "":
			cfg.Type = types.TemplateAws
		default:
			return types.NewValidationError("type", fmt.Sprintf("unknown template type %q", cfg.Type))
		}
		return nil
	}
}

// validateSchedule checks a cron expression and timezone. Empty schedules
// are fine; scheduling simply stays off.
func validateSchedule(schedule, timezone string) error {
	if schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return types.NewValidationError("schedule", err.Error())
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return types.NewValidationError("schedule_timezone", err.Error())
		}
	}
	return nil
}

// refError distinguishes a missing reference (the caller's mistake, so
// Invalid) from an infrastructure failure.
func refError(field, selector string, err error) error {
	if errors.Is(err, types.ErrNotFound) {
		return types.NewValidationError(field, fmt.Sprintf("%q does not exist", selector))
	}
	return err
}
