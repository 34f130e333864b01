package version

import (
	"runtime/debug"
	"testing"
)

func TestResolveFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		GoVersion: "go1.26.0",
		Main:      debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	}
	info := resolve(func() (*debug.BuildInfo, bool) { return bi, true })
	if info.Version != "v0.3.1" || info.Commit != "0123456789abcdef0123" || info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.GoVersion != "go1.26.0" {
		t.Fatalf("go version: %q", info.GoVersion)
	}
}

func TestResolveDevelFallsBackToDev(t *testing.T) {
	bi := &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}
	info := resolve(func() (*debug.BuildInfo, bool) { return bi, true })
	if info.Version != "dev" {
		t.Fatalf("got %q", info.Version)
	}
	info = resolve(func() (*debug.BuildInfo, bool) { return nil, false })
	if info.Version != "dev" || info.Commit != "" {
		t.Fatalf("unexpected info without build info %+v", info)
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("got %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
