package periphery

import (
	"context"

	"github.com/komodo-sh/komodo/pkg/types"
)

type emptyParams struct{}

// --- agent and host reads ---

// GetVersion returns the agent's version string. Also serves as the
// reachability probe: a fresh cloud builder is ready once this succeeds.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	res, err := call[types.GetVersionResponse](ctx, c, "GetVersion", emptyParams{})
	return res.Version, err
}

// GetSystemInformation returns the host's static description.
func (c *Client) GetSystemInformation(ctx context.Context) (types.SystemInformation, error) {
	return call[types.SystemInformation](ctx, c, "GetSystemInformation", emptyParams{})
}

// GetSystemStats returns the latest usage sample.
func (c *Client) GetSystemStats(ctx context.Context) (types.SystemStats, error) {
	return call[types.SystemStats](ctx, c, "GetSystemStats", emptyParams{})
}

// GetSystemProcesses returns the host's process listing.
func (c *Client) GetSystemProcesses(ctx context.Context) ([]types.SystemProcess, error) {
	return call[[]types.SystemProcess](ctx, c, "GetSystemProcesses", emptyParams{})
}

// --- docker reads ---

// GetContainerList returns all containers on the host, running or not.
func (c *Client) GetContainerList(ctx context.Context) ([]types.Container, error) {
	return call[[]types.Container](ctx, c, "GetContainerList", emptyParams{})
}

// GetImageList returns locally available images.
func (c *Client) GetImageList(ctx context.Context) ([]types.ImageListItem, error) {
	return call[[]types.ImageListItem](ctx, c, "GetImageList", emptyParams{})
}

// GetNetworkList returns docker networks on the host.
func (c *Client) GetNetworkList(ctx context.Context) ([]types.NetworkListItem, error) {
	return call[[]types.NetworkListItem](ctx, c, "GetNetworkList", emptyParams{})
}

// GetContainerLog returns the tail of one container's log.
func (c *Client) GetContainerLog(ctx context.Context, name string, tail int64) (types.Log, error) {
	return call[types.Log](ctx, c, "GetContainerLog", struct {
		Name string `json:"name"`
		Tail int64  `json:"tail"`
	}{name, tail})
}

// --- container lifecycle ---

type containerParams struct {
	Name   string                  `json:"name"`
	Signal types.TerminationSignal `json:"signal,omitempty"`
	Time   int64                   `json:"time,omitempty"`
}

// StartContainer starts a stopped container.
func (c *Client) StartContainer(ctx context.Context, name string) (types.Log, error) {
	return call[types.Log](ctx, c, "StartContainer", containerParams{Name: name})
}

// RestartContainer restarts a container.
func (c *Client) RestartContainer(ctx context.Context, name string) (types.Log, error) {
	return call[types.Log](ctx, c, "RestartContainer", containerParams{Name: name})
}

// PauseContainer pauses a running container.
func (c *Client) PauseContainer(ctx context.Context, name string) (types.Log, error) {
	return call[types.Log](ctx, c, "PauseContainer", containerParams{Name: name})
}

// UnpauseContainer resumes a paused container.
func (c *Client) UnpauseContainer(ctx context.Context, name string) (types.Log, error) {
	return call[types.Log](ctx, c, "UnpauseContainer", containerParams{Name: name})
}

// StopContainer stops a container with the given signal and grace period.
func (c *Client) StopContainer(ctx context.Context, name string, signal types.TerminationSignal, time int64) (types.Log, error) {
	return call[types.Log](ctx, c, "StopContainer", containerParams{Name: name, Signal: signal, Time: time})
}

// RemoveContainer stops and removes a container.
func (c *Client) RemoveContainer(ctx context.Context, name string, signal types.TerminationSignal, time int64) (types.Log, error) {
	return call[types.Log](ctx, c, "RemoveContainer", containerParams{Name: name, Signal: signal, Time: time})
}

// RenameContainer renames a container in place.
func (c *Client) RenameContainer(ctx context.Context, currName, newName string) (types.Log, error) {
	return call[types.Log](ctx, c, "RenameContainer", struct {
		CurrName string `json:"curr_name"`
		NewName  string `json:"new_name"`
	}{currName, newName})
}

// StopAllContainers stops every container on the host.
func (c *Client) StopAllContainers(ctx context.Context) ([]types.Log, error) {
	return call[[]types.Log](ctx, c, "StopAllContainers", emptyParams{})
}

// --- deploy ---

// DeployParams runs one deployment's container. Config fields with secrets
// must already be interpolated and the image fully resolved.
type DeployParams struct {
	Name                 string                 `json:"name"`
	Image                string                 `json:"image"`
	ImageRegistryAccount string                 `json:"image_registry_account,omitempty"`
	Config               types.DeploymentConfig `json:"config"`
}

// Deploy pulls the image and recreates the deployment's container.
func (c *Client) Deploy(ctx context.Context, params DeployParams) (types.Log, error) {
	return call[types.Log](ctx, c, "Deploy", params)
}

// --- git ---

// GitParams identifies a repo clone on the agent host.
type GitParams struct {
	Name        string                 `json:"name"`
	Provider    string                 `json:"provider,omitempty"`
	Account     string                 `json:"account,omitempty"`
	HTTPS       bool                   `json:"https"`
	Repo        string                 `json:"repo"`
	Branch      string                 `json:"branch,omitempty"`
	Commit      string                 `json:"commit,omitempty"`
	Path        string                 `json:"path,omitempty"`
	OnClone     types.SystemCommand    `json:"on_clone,omitempty"`
	OnPull      types.SystemCommand    `json:"on_pull,omitempty"`
	Environment []types.EnvironmentVar `json:"environment,omitempty"`
	EnvFilePath string                 `json:"env_file_path,omitempty"`
}

// GitResult carries the logs of a git operation and the resulting head.
type GitResult struct {
	Logs          []types.Log `json:"logs"`
	CommitHash    string      `json:"commit_hash,omitempty"`
	CommitMessage string      `json:"commit_message,omitempty"`
}

// Success reports whether every log of the operation succeeded.
func (r *GitResult) Success() bool {
	for _, l := range r.Logs {
		if !l.Success {
			return false
		}
	}
	return true
}

// CloneRepo clones the repo fresh, replacing any existing clone, then runs
// the on-clone and on-pull hooks.
func (c *Client) CloneRepo(ctx context.Context, params GitParams) (GitResult, error) {
	return call[GitResult](ctx, c, "CloneRepo", params)
}

// PullRepo fast-forwards an existing clone and runs the on-pull hook.
func (c *Client) PullRepo(ctx context.Context, params GitParams) (GitResult, error) {
	return call[GitResult](ctx, c, "PullRepo", params)
}

// DeleteRepo removes a clone from the agent host.
func (c *Client) DeleteRepo(ctx context.Context, name string) (types.Log, error) {
	return call[types.Log](ctx, c, "DeleteRepo", struct {
		Name string `json:"name"`
	}{name})
}

// --- build ---

// BuildParams runs a docker build of a cloned repo.
type BuildParams struct {
	Name    string            `json:"name"`
	Config  types.BuildConfig `json:"config"`
	Version types.Version     `json:"version"`
	// Registry credential resolved by the core; empty skips push.
	RegistryToken string `json:"registry_token,omitempty"`
}

// Build runs docker build (and push when a registry is configured),
// returning one log per build stage.
func (c *Client) Build(ctx context.Context, params BuildParams) ([]types.Log, error) {
	return call[[]types.Log](ctx, c, "Build", params)
}

// PruneBuilders removes dangling build cache and builder instances.
func (c *Client) PruneBuilders(ctx context.Context) (types.Log, error) {
	return call[types.Log](ctx, c, "PruneBuilders", emptyParams{})
}

// --- compose ---

// ComposeUpParams deploys a compose project from the given file contents.
type ComposeUpParams struct {
	Project              string                 `json:"project"`
	Files                []types.FileContents   `json:"files"`
	RunDirectory         string                 `json:"run_directory,omitempty"`
	// FilePaths are compose files passed with -f, relative to RunDirectory.
	FilePaths            []string               `json:"file_paths,omitempty"`
	Services             []string               `json:"services,omitempty"`
	Environment          []types.EnvironmentVar `json:"environment,omitempty"`
	EnvFilePath          string                 `json:"env_file_path,omitempty"`
	ImageRegistryAccount string                 `json:"image_registry_account,omitempty"`
	ExtraArgs            []string               `json:"extra_args,omitempty"`
	// DestroyFirst runs compose down before up.
	DestroyFirst bool `json:"destroy_first,omitempty"`
}

// ComposeUp runs compose up -d for the project.
func (c *Client) ComposeUp(ctx context.Context, params ComposeUpParams) ([]types.Log, error) {
	return call[[]types.Log](ctx, c, "ComposeUp", params)
}

// ComposePull pulls the project's images without recreating containers.
func (c *Client) ComposePull(ctx context.Context, project string, services []string) ([]types.Log, error) {
	return call[[]types.Log](ctx, c, "ComposePull", struct {
		Project  string   `json:"project"`
		Services []string `json:"services,omitempty"`
	}{project, services})
}

// ComposeExecution runs an arbitrary compose subcommand (start, stop,
// restart, pause, unpause, down) against the project.
func (c *Client) ComposeExecution(ctx context.Context, project, command string) (types.Log, error) {
	return call[types.Log](ctx, c, "ComposeExecution", struct {
		Project string `json:"project"`
		Command string `json:"command"`
	}{project, command})
}

// ListComposeProjects returns the compose projects present on the host.
func (c *Client) ListComposeProjects(ctx context.Context) ([]string, error) {
	return call[[]string](ctx, c, "ListComposeProjects", emptyParams{})
}

// GetComposeServiceLog returns the tail of one service's log.
func (c *Client) GetComposeServiceLog(ctx context.Context, project, service string, tail int64) (types.Log, error) {
	return call[types.Log](ctx, c, "GetComposeServiceLog", struct {
		Project string `json:"project"`
		Service string `json:"service"`
		Tail    int64  `json:"tail"`
	}{project, service, tail})
}

// --- prunes ---

// PruneContainers removes stopped containers.
func (c *Client) PruneContainers(ctx context.Context) (types.Log, error) {
	return call[types.Log](ctx, c, "PruneContainers", emptyParams{})
}

// PruneImages removes dangling images.
func (c *Client) PruneImages(ctx context.Context) (types.Log, error) {
	return call[types.Log](ctx, c, "PruneImages", emptyParams{})
}

// PruneNetworks removes unused networks.
func (c *Client) PruneNetworks(ctx context.Context) (types.Log, error) {
	return call[types.Log](ctx, c, "PruneNetworks", emptyParams{})
}

// PruneVolumes removes unused volumes.
func (c *Client) PruneVolumes(ctx context.Context) (types.Log, error) {
	return call[types.Log](ctx, c, "PruneVolumes", emptyParams{})
}

// PruneSystem runs docker system prune.
func (c *Client) PruneSystem(ctx context.Context) (types.Log, error) {
	return call[types.Log](ctx, c, "PruneSystem", emptyParams{})
}
