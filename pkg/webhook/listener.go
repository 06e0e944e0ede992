// Package webhook handles git provider push deliveries: signature
// verification, branch matching, and per-resource serialization in front of
// the execution engine. Handlers run the resulting executions as the github
// system user, so every side effect still lands in the update journal.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/state"
	"github.com/komodo-sh/komodo/pkg/syncer"
	"github.com/komodo-sh/komodo/pkg/types"
)

// signaturePrefix is the github x-hub-signature-256 header format.
const signaturePrefix = "sha256="

// maxJitter spreads handler start times to discourage timing probes against
// the signature check.
const maxJitter = 500 * time.Millisecond

// Executor runs the synthesized requests. Implemented by the execution
// engine; an interface here keeps the listener testable and breaks the
// package cycle.
type Executor interface {
	ExecuteAsSystem(ctx context.Context, username string, req types.ExecuteRequest) (types.Update, error)
}

// Listener verifies and dispatches webhook deliveries.
type Listener struct {
	state  *state.State
	store  *resource.Store
	syncer *syncer.Syncer
	exec   Executor

	secret string
	jitter func()
}

// New wires the listener. The secret comes from the webhook_secret config
// field; when empty, every delivery is refused.
func New(st *state.State, store *resource.Store, sy *syncer.Syncer, exec Executor) *Listener {
	return &Listener{
		state:  st,
		store:  store,
		syncer: sy,
		exec:   exec,
		secret: st.Config.WebhookSecret,
		jitter: func() {
			time.Sleep(time.Duration(rand.Int64N(int64(maxJitter))))
		},
	}
}

// Verify checks the delivery's HMAC-SHA256 signature over the raw body.
// Runs the jitter sleep first so accept and reject take comparable time.
func (l *Listener) Verify(signature string, body []byte) error {
	l.jitter()

	if l.secret == "" {
		return fmt.Errorf("webhook secret not configured: %w", types.ErrUnauthenticated)
	}
	hexDigest, ok := strings.CutPrefix(signature, signaturePrefix)
	if !ok {
		return fmt.Errorf("malformed signature header: %w", types.ErrUnauthenticated)
	}
	got, err := hex.DecodeString(hexDigest)
	if err != nil {
		return fmt.Errorf("malformed signature header: %w", types.ErrUnauthenticated)
	}

	mac := hmac.New(sha256.New, []byte(l.secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return fmt.Errorf("signature mismatch: %w", types.ErrUnauthenticated)
	}
	return nil
}

// pushPayload is the subset of the github push event the listener reads.
type pushPayload struct {
	Ref string `json:"ref"`
}

// parseBranch extracts the pushed branch from the delivery body.
func parseBranch(body []byte) (string, error) {
	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", types.NewValidationError("body", "not a json push event")
	}
	branch := strings.TrimPrefix(payload.Ref, "refs/heads/")
	if branch == "" {
		return "", types.NewValidationError("ref", "push event carries no branch ref")
	}
	return branch, nil
}

// Build triggers RunBuild when a push lands on the build's branch.
func (l *Listener) Build(ctx context.Context, id, signature string, body []byte) error {
	if err := l.Verify(signature, body); err != nil {
		return err
	}
	branch, err := parseBranch(body)
	if err != nil {
		return err
	}
	build, err := l.store.Build(ctx, id)
	if err != nil {
		return err
	}
	if !build.Config.WebhookEnabled {
		return types.NewValidationError("webhook", "webhook disabled for this build")
	}
	if branch != build.Config.Branch {
		return types.NewValidationError("ref",
			fmt.Sprintf("push to %s does not match configured branch %s", branch, build.Config.Branch))
	}

	return l.run(ctx, types.KindBuild, build.ID.Hex(), types.ExecuteRequest{
		Type:   types.ExecRunBuild,
		Params: types.ExecuteParams{Build: build.ID.Hex()},
	})
}

// Repo triggers CloneRepo or PullRepo when a push lands on the repo's branch.
func (l *Listener) Repo(ctx context.Context, id, signature string, body []byte, execType types.ExecutionType) error {
	if err := l.Verify(signature, body); err != nil {
		return err
	}
	branch, err := parseBranch(body)
	if err != nil {
		return err
	}
	repo, err := l.store.Repo(ctx, id)
	if err != nil {
		return err
	}
	if !repo.Config.WebhookEnabled {
		return types.NewValidationError("webhook", "webhook disabled for this repo")
	}
	if branch != repo.Config.Branch {
		return types.NewValidationError("ref",
			fmt.Sprintf("push to %s does not match configured branch %s", branch, repo.Config.Branch))
	}

	return l.run(ctx, types.KindRepo, repo.ID.Hex(), types.ExecuteRequest{
		Type:   execType,
		Params: types.ExecuteParams{Repo: repo.ID.Hex()},
	})
}

// Procedure triggers RunProcedure when a push lands on the branch bound into
// the webhook url. Procedures have no git config of their own; the url names
// the branch they respond to.
func (l *Listener) Procedure(ctx context.Context, id, urlBranch, signature string, body []byte) error {
	if err := l.Verify(signature, body); err != nil {
		return err
	}
	branch, err := parseBranch(body)
	if err != nil {
		return err
	}
	procedure, err := l.store.Procedure(ctx, id)
	if err != nil {
		return err
	}
	if !procedure.Config.WebhookEnabled {
		return types.NewValidationError("webhook", "webhook disabled for this procedure")
	}
	if branch != urlBranch {
		return types.NewValidationError("ref",
			fmt.Sprintf("push to %s does not match url branch %s", branch, urlBranch))
	}

	return l.run(ctx, types.KindProcedure, procedure.ID.Hex(), types.ExecuteRequest{
		Type:   types.ExecRunProcedure,
		Params: types.ExecuteParams{Procedure: procedure.ID.Hex()},
	})
}

// SyncRefresh recomputes a sync's pending plan without applying it.
func (l *Listener) SyncRefresh(ctx context.Context, id, signature string, body []byte) error {
	sync, err := l.verifiedSync(ctx, id, signature, body)
	if err != nil {
		return err
	}

	release := l.state.WebhookLocks.Lock(lockKey(types.KindResourceSync, sync.ID.Hex()))
	defer release()

	if _, err := l.syncer.RefreshPending(ctx, sync); err != nil {
		return err
	}
	return nil
}

// SyncRun applies a sync through the execution engine.
func (l *Listener) SyncRun(ctx context.Context, id, signature string, body []byte) error {
	sync, err := l.verifiedSync(ctx, id, signature, body)
	if err != nil {
		return err
	}
	return l.run(ctx, types.KindResourceSync, sync.ID.Hex(), types.ExecuteRequest{
		Type:   types.ExecRunSync,
		Params: types.ExecuteParams{Sync: sync.ID.Hex()},
	})
}

// verifiedSync is the shared front half of the two sync endpoints. Sync
// declarations live on the core host, so there is no branch to match.
func (l *Listener) verifiedSync(ctx context.Context, id, signature string, body []byte) (*resource.ResourceSync, error) {
	if err := l.Verify(signature, body); err != nil {
		return nil, err
	}
	sync, err := l.store.ResourceSync(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sync.Config.WebhookEnabled {
		return nil, types.NewValidationError("webhook", "webhook disabled for this sync")
	}
	return sync, nil
}

// run executes the synthesized request as the github user, holding the
// resource's webhook lock so back-to-back deliveries queue instead of
// tripping the busy check.
func (l *Listener) run(ctx context.Context, kind types.ResourceKind, id string, req types.ExecuteRequest) error {
	release := l.state.WebhookLocks.Lock(lockKey(kind, id))
	defer release()

	u, err := l.exec.ExecuteAsSystem(ctx, types.SystemUserGithub, req)
	if err != nil {
		return err
	}
	if !u.Success {
		slog.Warn("Webhook-triggered execution failed",
			"operation", u.Operation, "target_id", id, "update_id", u.ID.Hex())
	}
	return nil
}

func lockKey(kind types.ResourceKind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}
