package transferplan_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/pushback-tool/pushback/pkg/ignore"
	"github.com/pushback-tool/pushback/pkg/pathtoken"
	"github.com/pushback-tool/pushback/pkg/resolver"
	"github.com/pushback-tool/pushback/pkg/snapshot"
	"github.com/pushback-tool/pushback/pkg/transferplan"
)

func settledResolution(t *testing.T) resolver.Resolution {
	t.Helper()
	tok, err := pathtoken.New("/home/u/app")
	if err != nil {
		t.Fatal(err)
	}
	b, err := snapshot.BucketFor(snapshot.None, time.Now(), 0)
	if err != nil {
		t.Fatal(err)
	}
	return resolver.Resolve(tok, b, nil, resolver.Policy{})
}

func compile(t *testing.T, patterns ...string) *ignore.RuleSet {
	t.Helper()
	rs, err := ignore.Compile(nil, patterns, nil)
	if err != nil {
		t.Fatal(err)
	}
	return rs
}

func TestBuildResolvesRemotePath(t *testing.T) {
	res := settledResolution(t)

	plan, err := transferplan.Build(res, compile(t), transferplan.Options{
		RemoteBase: "~/backups/",
		Delete:     true,
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if want := "~/backups/" + res.Candidate.FullName; plan.RemotePath != want {
		t.Errorf("remote path = %q, want %q", plan.RemotePath, want)
	}
	if plan.Mode != resolver.Create {
		t.Errorf("mode = %s, want create", plan.Mode)
	}
	if !plan.DeleteExtraneous {
		t.Error("delete flag must pass through")
	}
}

func TestBuildRejectsPendingResolution(t *testing.T) {
	res := settledResolution(t)
	res.Decision = resolver.NeedsDecision

	_, err := transferplan.Build(res, compile(t), transferplan.Options{RemoteBase: "/srv/backups"})
	if !errors.Is(err, transferplan.ErrUndecided) {
		t.Errorf("expected ErrUndecided, got %v", err)
	}
}

func TestFilterArgsPreserveRuleOrder(t *testing.T) {
	rs := compile(t, "*.log", "!keep.log", "*.log")

	got := transferplan.FilterArgs(rs)
	want := []string{"--exclude=*.log", "--include=keep.log", "--exclude=*.log"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filter args = %v, want %v", got, want)
	}
}

func TestFilterArgsInjectParentDirsForReinclude(t *testing.T) {
	rs := compile(t, "build/", "!/build/out/important.log")

	got := transferplan.FilterArgs(rs)
	want := []string{
		"--exclude=build/",
		"--include=/build/",
		"--include=/build/out/",
		"--include=/build/out/important.log",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filter args = %v, want %v", got, want)
	}
}

func TestFilterArgsDeduplicateInjectedParents(t *testing.T) {
	rs := compile(t, "docs/", "!docs/a.md", "!docs/b.md")

	got := transferplan.FilterArgs(rs)
	want := []string{
		"--exclude=docs/",
		"--include=docs/",
		"--include=docs/a.md",
		"--include=docs/b.md",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filter args = %v, want %v", got, want)
	}
}

func TestDryRunDiffersByFlagOnly(t *testing.T) {
	res := settledResolution(t)
	rs := compile(t, "*.tmp", "!keep.tmp")
	opts := transferplan.Options{RemoteBase: "/srv/backups", Delete: true, ExtraArgs: []string{"--bwlimit=1000"}}

	live, err := transferplan.Build(res, rs, opts)
	if err != nil {
		t.Fatal(err)
	}
	opts.DryRun = true
	dry, err := transferplan.Build(res, rs, opts)
	if err != nil {
		t.Fatal(err)
	}

	if !dry.DryRun || live.DryRun {
		t.Fatal("dry-run flag not carried correctly")
	}
	dry.DryRun = false
	if !reflect.DeepEqual(live, dry) {
		t.Errorf("plans differ beyond the dry-run flag:\nlive %+v\ndry  %+v", live, dry)
	}
}
