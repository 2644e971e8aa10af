package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	// LogLevelChanged is set when server.log_level differs. Applied live.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CoachChanged is set when the pacing or voice differs. Applied to new
	// sessions and to timers started after the reload in running ones.
	CoachChanged bool

	// MaxSessionsChanged is set when coach.max_sessions differs. Applied
	// live; existing sessions above a lowered cap are not closed.
	MaxSessionsChanged bool
	NewMaxSessions     int

	// RestartRequired lists top-level sections that changed but can only
	// take effect after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.CoachChanged && !d.MaxSessionsChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oc, nc := old.Coach, new.Coach
	if oc.MaxSessions != nc.MaxSessions {
		d.MaxSessionsChanged = true
		d.NewMaxSessions = nc.MaxSessions
	}
	oc.MaxSessions, nc.MaxSessions = 0, 0
	if oc != nc {
		d.CoachChanged = true
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"providers", old.Providers, new.Providers},
		{"store", old.Store, new.Store},
		{"auth", old.Auth, new.Auth},
		{"notify", old.Notify, new.Notify},
		{"mcp", old.MCP, new.MCP},
		{"observe", old.Observe, new.Observe},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
