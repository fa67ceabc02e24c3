package cli

import (
	"testing"

	"github.com/rcliao/tai/internal/config"
)

func TestGetDBPathPrecedence(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = "/from/config.db"

	t.Setenv("TAI_DB", "")
	if got := getDBPath(cfg); got != "/from/config.db" {
		t.Errorf("config path: got %q", got)
	}

	t.Setenv("TAI_DB", "/from/env.db")
	if got := getDBPath(cfg); got != "/from/env.db" {
		t.Errorf("env path: got %q", got)
	}

	dbPath = "/from/flag.db"
	t.Cleanup(func() { dbPath = "" })
	if got := getDBPath(cfg); got != "/from/flag.db" {
		t.Errorf("flag path: got %q", got)
	}
}

func TestStoreLocation(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = "/x.db"
	if got := storeLocation(cfg); got != "/x.db" {
		t.Errorf("sqlite: got %q", got)
	}
	cfg.Store.Driver = config.DriverRedis
	cfg.Store.RedisURL = "redis://h:6379/0"
	if got := storeLocation(cfg); got != "redis://h:6379/0" {
		t.Errorf("redis: got %q", got)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"chat", "ask", "get", "put", "rm", "list", "ns", "export", "import", "stats", "memory", "template", "code"}
	have := map[string]bool{}
	for _, c := range RootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}
