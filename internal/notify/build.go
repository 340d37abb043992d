package notify

import (
	"github.com/charmbracelet/log"

	"github.com/bmad-assist/bmad-assist-go/internal/config"
)

// BuildSinks constructs the set of Sink implementations named in
// cfg.Sinks. "log" is always included so notifications remain visible
// even with no webhook configured; unknown sink names are skipped with
// a warning rather than failing startup, since a bad notify config
// should never block the loop: notification sinks are non-fatal.
func BuildSinks(cfg config.NotifyConfig, logger *log.Logger) []Sink {
	sinks := []Sink{NewLogSink(logger)}

	seen := map[string]bool{"log": true}
	for _, name := range cfg.Sinks {
		if seen[name] {
			continue
		}
		seen[name] = true
		switch name {
		case "webhook":
			if cfg.WebhookURL == "" {
				if logger != nil {
					logger.Warn("notify: webhook sink requested but webhook_url is empty, skipping")
				}
				continue
			}
			sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, 0))
		default:
			if logger != nil {
				logger.Warn("notify: unknown sink name, skipping", "sink", name)
			}
		}
	}
	return sinks
}
