// Package action runs the TypeScript automations declared on Action
// resources. Scripts execute through the host's deno binary with an
// ephemeral api key scoped to the run, so a script talks back to the core
// with the action user's permissions and the credential dies with the run.
package action

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/interpolate"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
	"github.com/komodo-sh/komodo/pkg/update"
)

// keyExpiryGrace pads the ephemeral key's expiry past the run timeout, so a
// run racing its own deadline is not failed by credential expiry first.
const keyExpiryGrace = time.Minute

// Runner executes action scripts.
type Runner struct {
	db   *database.Client
	cfg  *config.Config
	port int
}

// NewRunner creates a runner. Scripts reach the core at localhost on the
// configured port.
func NewRunner(db *database.Client, cfg *config.Config) *Runner {
	return &Runner{db: db, cfg: cfg, port: cfg.Port}
}

// Run executes one action, appending the run log to the update. The returned
// error reports script failure as well as setup failure; either way every
// log line has already been redacted and attached.
func (r *Runner) Run(ctx context.Context, action *resource.Action, ub *update.Builder) error {
	vars, err := r.loadVariables(ctx)
	if err != nil {
		ub.AddError(ctx, "Run Action", err)
		return err
	}

	interp := interpolate.New(vars)
	contents, err := interp.String(action.Config.FileContents)
	if err != nil {
		err = types.NewValidationError("file_contents", err.Error())
		ub.AddError(ctx, "Run Action", err)
		return err
	}
	if log := interp.SummaryLog(); log != nil {
		ub.AddLog(ctx, *log)
	}

	key, secret, err := r.createRunKey(ctx)
	if err != nil {
		ub.AddError(ctx, "Run Action", err)
		return err
	}
	defer r.deleteRunKey(key)

	// The script file and every log line carry the ephemeral credential,
	// so redaction covers it alongside the secret variables.
	redacted := map[string]string{
		"ACTION_API_KEY":    key,
		"ACTION_API_SECRET": secret,
	}
	for _, v := range vars {
		if v.IsSecret {
			redacted[v.Name] = v.Value
		}
	}
	redactor := interpolate.NewValueRedactor(redacted)
	ub.SetRedactor(redactor)

	coreURL := fmt.Sprintf("http://localhost:%d", r.port)
	script := composeScript(coreURL, key, secret, contents)

	name := runFileName()
	path := filepath.Join(r.cfg.Actions.Directory, name+".ts")
	if err := os.MkdirAll(r.cfg.Actions.Directory, 0o700); err != nil {
		err = fmt.Errorf("failed to prepare action directory: %w", err)
		ub.AddError(ctx, "Run Action", err)
		return err
	}
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		err = fmt.Errorf("failed to write action file: %w", err)
		ub.AddError(ctx, "Run Action", err)
		return err
	}
	defer r.cleanupRunFiles(path, name)

	log := r.execute(ctx, path, action.Config.ReloadDenoDeps)
	ub.AddLog(ctx, log)
	if !log.Success {
		return fmt.Errorf("action run failed")
	}
	return nil
}

// execute runs deno against the generated file and captures the outcome as
// one log. The run is bounded by the configured timeout.
func (r *Runner) execute(ctx context.Context, path string, reloadDeps bool) types.Log {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Actions.Timeout())
	defer cancel()

	args := []string{"run", "--allow-all"}
	if reloadDeps {
		args = append(args, "--reload")
	}
	args = append(args, path)

	start := types.NowMS()
	cmd := exec.CommandContext(runCtx, r.cfg.Actions.DenoBinPath, args...)
	cmd.Env = append(os.Environ(), "DENO_DIR="+r.denoDir())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	end := types.NowMS()

	log := types.Log{
		Stage:   "Run Action",
		Command: fmt.Sprintf("%s run --allow-all <action file>", r.cfg.Actions.DenoBinPath),
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Success: err == nil,
		StartTS: start,
		EndTS:   end,
	}
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			log.Stderr += fmt.Sprintf("\naction timed out after %s", r.cfg.Actions.Timeout())
		} else if log.Stderr == "" {
			log.Stderr = err.Error()
		}
	}
	return log
}

// loadVariables reads the full variable set for interpolation and redaction.
func (r *Runner) loadVariables(ctx context.Context) ([]types.Variable, error) {
	cur, err := r.db.Collections.Variables.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list variables: %w", err)
	}
	var vars []types.Variable
	if err := cur.All(ctx, &vars); err != nil {
		return nil, fmt.Errorf("failed to decode variables: %w", err)
	}
	return vars, nil
}

// createRunKey mints the ephemeral api key the script authenticates with.
// It belongs to the action system user and expires shortly after the run
// timeout in case cleanup never happens.
func (r *Runner) createRunKey(ctx context.Context) (key, secret string, err error) {
	var user types.User
	err = r.db.Collections.Users.FindOne(ctx, bson.M{"username": types.SystemUserAction}).Decode(&user)
	if err != nil {
		return "", "", fmt.Errorf("action user missing: %w", err)
	}
	key = "K-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	secret = "S-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = r.db.Collections.ApiKeys.InsertOne(ctx, types.ApiKey{
		Name:      "action run",
		UserID:    user.ID.Hex(),
		Key:       key,
		Secret:    types.HashApiSecret(secret),
		CreatedAt: types.NowMS(),
		Expires:   time.Now().Add(r.cfg.Actions.Timeout() + keyExpiryGrace).UnixMilli(),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create run api key: %w", err)
	}
	return key, secret, nil
}

// deleteRunKey revokes the run's credential. Best effort with its own
// deadline: the run context may already be cancelled.
func (r *Runner) deleteRunKey(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r.db.Collections.ApiKeys.DeleteOne(ctx, bson.M{"key": key}); err != nil {
		slog.Error("failed to delete action run api key", "error", err)
	}
}

// cleanupRunFiles removes the generated script and deno's compiled artifacts
// for it. The credential is baked into both.
func (r *Runner) cleanupRunFiles(path, name string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to remove action file", "path", path, "error", err)
	}
	genDir := filepath.Join(r.denoDir(), "gen", "file")
	_ = filepath.WalkDir(genDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.Contains(d.Name(), name) {
			if rmErr := os.Remove(p); rmErr != nil {
				slog.Error("failed to remove action artifact", "path", p, "error", rmErr)
			}
		}
		return nil
	})
}

func (r *Runner) denoDir() string {
	return filepath.Join(r.cfg.Actions.Directory, "deno")
}

// runFileName returns a short random name, so concurrent runs never collide
// and the file name leaks nothing about the action.
func runFileName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
