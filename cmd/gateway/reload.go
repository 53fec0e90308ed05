package main

import (
	"github.com/vyrodovalexey/avaform/internal/config"
	"github.com/vyrodovalexey/avaform/internal/observability"
	"github.com/vyrodovalexey/avaform/internal/router"
)

// applyConfig compiles the policies of cfg and swaps them in. In-flight
// requests finish with the table they started with. A failure leaves the
// active table untouched.
func (a *application) applyConfig(cfg *config.GatewayConfig) error {
	table, err := router.FromConfig(cfg, a.logger)
	if err != nil {
		return err
	}

	a.warnRestartRequired(a.config.Load(), cfg)

	a.table.Store(table)
	a.config.Store(cfg)
	a.metrics.RecordConfigReload(true)

	a.logger.Info("transformation policies reloaded",
		observability.Bool("default_policy", table.Default() != nil),
		observability.Int("routes", len(table.Routes())),
	)
	return nil
}

// onReloadError counts reloads the watcher rejected.
func (a *application) onReloadError(error) {
	a.metrics.RecordConfigReload(false)
}

// warnRestartRequired logs settings that only take effect on restart.
func (a *application) warnRestartRequired(old, updated *config.GatewayConfig) {
	if old == nil {
		return
	}

	var changed []string
	if old.Spec.Listener != updated.Spec.Listener {
		changed = append(changed, "spec.listener")
	}
	if old.Spec.Upstream != updated.Spec.Upstream {
		changed = append(changed, "spec.upstream")
	}
	if old.Spec.Admin != updated.Spec.Admin {
		changed = append(changed, "spec.admin")
	}
	if old.Spec.Observability != updated.Spec.Observability {
		changed = append(changed, "spec.observability")
	}

	if len(changed) > 0 {
		a.logger.Warn("configuration changes require a restart to take effect",
			observability.Strings("sections", changed),
		)
	}
}
