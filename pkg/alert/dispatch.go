package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

// dispatch fans the alert out to every matching alerter. Deliveries run
// concurrently; each failure is logged against its alerter.
func (m *Manager) dispatch(ctx context.Context, a types.Alert) {
	alerters, err := m.store.Alerters(ctx, resource.ListQuery{})
	if err != nil {
		slog.Error("Failed to load alerters for dispatch", "error", err)
		return
	}

	var g errgroup.Group
	for _, alerter := range alerters {
		if !alerterAccepts(alerter.Config, a) {
			continue
		}
		alerter := alerter
		g.Go(func() error {
			if err := m.send(ctx, alerter.Config.Endpoint, a); err != nil {
				slog.Error("Failed to deliver alert",
					"alerter", alerter.Name,
					"endpoint_type", alerter.Config.Endpoint.Type,
					"data_type", a.DataType,
					"error", err)
			}
			return nil
		})
	}
	g.Wait()
}

// alerterAccepts applies the alerter's enabled flag, type whitelist, resource
// whitelist, and resource blacklist to the alert.
func alerterAccepts(cfg types.AlerterConfig, a types.Alert) bool {
	if !cfg.Enabled {
		return false
	}
	if len(cfg.AlertTypes) > 0 {
		found := false
		for _, t := range cfg.AlertTypes {
			if t == a.DataType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(cfg.Resources) > 0 {
		found := false
		for _, r := range cfg.Resources {
			if r == a.Target {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, r := range cfg.ExceptResources {
		if r == a.Target {
			return false
		}
	}
	return true
}

// send delivers one alert to one endpoint, bounded by the dispatch timeout.
func (m *Manager) send(ctx context.Context, endpoint types.AlerterEndpoint, a types.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	switch endpoint.Type {
	case types.EndpointSlack:
		return m.sendSlack(ctx, endpoint.Params.URL, a)
	case types.EndpointDiscord:
		return m.sendDiscord(ctx, endpoint.Params.URL, a)
	case types.EndpointCustom:
		return m.sendCustom(ctx, endpoint.Params.URL, a)
	default:
		return types.NewValidationError("endpoint.type", fmt.Sprintf("unknown alerter endpoint type: %s", endpoint.Type))
	}
}

func (m *Manager) sendSlack(ctx context.Context, url string, a types.Alert) error {
	header := slack.NewHeaderBlock(slack.NewTextBlockObject(
		slack.PlainTextType,
		fmt.Sprintf("%s %s", levelEmoji(a.Level), title(a)),
		true, false))

	body := slack.NewSectionBlock(slack.NewTextBlockObject(
		slack.MarkdownType, Summary(a), false, false), nil, nil)

	msg := &slack.WebhookMessage{
		Blocks: &slack.Blocks{BlockSet: []slack.Block{header, body}},
	}
	if err := slack.PostWebhookContext(ctx, url, msg); err != nil {
		return types.NewExternalError("slack", err)
	}
	return nil
}

// discordEmbed is the subset of Discord's webhook payload the alerter uses.
type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func (m *Manager) sendDiscord(ctx context.Context, url string, a types.Alert) error {
	payload := discordPayload{Embeds: []discordEmbed{{
		Title:       fmt.Sprintf("%s %s", levelEmoji(a.Level), title(a)),
		Description: Summary(a),
		Color:       levelColor(a.Level),
	}}}
	return m.post(ctx, "discord", url, payload)
}

// sendCustom posts the raw alert JSON, leaving interpretation to the receiver.
func (m *Manager) sendCustom(ctx context.Context, url string, a types.Alert) error {
	return m.post(ctx, "custom alerter", url, a)
}

func (m *Manager) post(ctx context.Context, service, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode alert payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.NewExternalError(service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := m.http.Do(req)
	if err != nil {
		return types.NewExternalError(service, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return types.NewExternalError(service,
			fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(detail))))
	}
	return nil
}

func levelEmoji(level types.SeverityLevel) string {
	switch level {
	case types.SeverityOk:
		return "✅"
	case types.SeverityWarning:
		return "⚠️"
	case types.SeverityCritical:
		return "🚨"
	default:
		return "ℹ️"
	}
}

func levelColor(level types.SeverityLevel) int {
	switch level {
	case types.SeverityOk:
		return 0x2ecc71
	case types.SeverityWarning:
		return 0xe67e22
	case types.SeverityCritical:
		return 0xe74c3c
	default:
		return 0x95a5a6
	}
}

func title(a types.Alert) string {
	switch a.DataType {
	case types.AlertServerUnreachable:
		if a.Resolved {
			return "Server reachable again"
		}
		return "Server unreachable"
	case types.AlertServerCpu:
		return "Server CPU usage"
	case types.AlertServerMem:
		return "Server memory usage"
	case types.AlertServerDisk:
		return "Server disk usage"
	case types.AlertContainerStateChange:
		return "Container state change"
	case types.AlertDeploymentImageUpdateAvailable:
		return "Image update available"
	case types.AlertDeploymentAutoUpdated:
		return "Deployment auto updated"
	case types.AlertStackStateChange:
		return "Stack state change"
	case types.AlertStackImageUpdateAvailable:
		return "Stack image update available"
	case types.AlertStackAutoUpdated:
		return "Stack auto updated"
	case types.AlertAwsBuilderTerminationFailed, types.AlertHetznerBuilderTerminationFailed:
		return "Builder instance termination FAILED"
	case types.AlertBuildFailed:
		return "Build failed"
	case types.AlertScheduleRun:
		return "Scheduled run"
	case types.AlertTest:
		return "Test alert"
	default:
		return string(a.DataType)
	}
}

// Summary renders the one-paragraph human description of the alert.
func Summary(a types.Alert) string {
	d := a.Data
	switch a.DataType {
	case types.AlertServerUnreachable:
		if a.Resolved {
			return fmt.Sprintf("*%s* is reachable again", d.Name)
		}
		if d.Err != "" {
			return fmt.Sprintf("*%s* is unreachable: %s", d.Name, d.Err)
		}
		return fmt.Sprintf("*%s* is unreachable", d.Name)
	case types.AlertServerCpu:
		return fmt.Sprintf("*%s* CPU usage at %.1f%%", d.Name, d.Percentage)
	case types.AlertServerMem:
		return fmt.Sprintf("*%s* memory usage at %.1f%% (%.1f of %.1f GB)",
			d.Name, d.Percentage, d.UsedGB, d.TotalGB)
	case types.AlertServerDisk:
		return fmt.Sprintf("*%s* disk usage at %.1f%% (%.1f of %.1f GB)",
			d.Name, d.Percentage, d.UsedGB, d.TotalGB)
	case types.AlertContainerStateChange:
		return fmt.Sprintf("*%s* on *%s*: %s ➜ %s", d.Name, d.ServerName, d.From, d.To)
	case types.AlertStackStateChange:
		return fmt.Sprintf("*%s* on *%s*: %s ➜ %s", d.Name, d.ServerName, d.From, d.To)
	case types.AlertDeploymentImageUpdateAvailable:
		return fmt.Sprintf("*%s* has an image update available: %s", d.Name, d.Image)
	case types.AlertStackImageUpdateAvailable:
		return fmt.Sprintf("*%s* has an image update available: %s", d.Name, d.Image)
	case types.AlertDeploymentAutoUpdated, types.AlertStackAutoUpdated:
		return fmt.Sprintf("*%s* was automatically redeployed with %s", d.Name, d.Image)
	case types.AlertAwsBuilderTerminationFailed, types.AlertHetznerBuilderTerminationFailed:
		return fmt.Sprintf("failed to terminate builder instance *%s*: %s. The instance must be terminated manually.",
			d.InstanceID, d.Err)
	case types.AlertBuildFailed:
		if d.Version != nil {
			return fmt.Sprintf("build *%s* failed at v%s", d.Name, d.Version.String())
		}
		return fmt.Sprintf("build *%s* failed", d.Name)
	case types.AlertScheduleRun:
		return fmt.Sprintf("scheduled run of *%s* finished", d.Name)
	case types.AlertTest:
		return fmt.Sprintf("test alert from alerter *%s*", d.Name)
	default:
		return string(a.DataType)
	}
}
