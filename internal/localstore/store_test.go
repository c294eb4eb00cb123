package localstore

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func TestPrefsDefaults(t *testing.T) {
	s, _ := openTestStore(t)
	theme, err := s.Theme()
	if err != nil || theme != "light" {
		t.Fatalf("Theme() = %q, %v; want light", theme, err)
	}
	open, err := s.SidebarOpen()
	if err != nil || !open {
		t.Fatalf("SidebarOpen() = %v, %v; want true", open, err)
	}
}

func TestPrefsRoundTrip(t *testing.T) {
	s, dir := openTestStore(t)
	if err := s.SetTheme("dark"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	if err := s.SetSidebarOpen(false); err != nil {
		t.Fatalf("SetSidebarOpen: %v", err)
	}
	s.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if theme, _ := reopened.Theme(); theme != "dark" {
		t.Fatalf("theme after reopen = %q, want dark", theme)
	}
	if open, _ := reopened.SidebarOpen(); open {
		t.Fatal("sidebar should still be closed after reopen")
	}
}

func TestJarPersistsCookies(t *testing.T) {
	s, dir := openTestStore(t)
	u, _ := url.Parse("http://backend.local/api")
	s.Jar().SetCookies(u, []*http.Cookie{{Name: "SESSION", Value: "abc", Path: "/"}})
	s.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	cookies := reopened.Jar().Cookies(u)
	if len(cookies) != 1 || cookies[0].Name != "SESSION" || cookies[0].Value != "abc" {
		t.Fatalf("cookies after reopen = %v", cookies)
	}
}

func TestJarSkipsExpiredAndForeignHosts(t *testing.T) {
	s, _ := openTestStore(t)
	jar := s.Jar()
	u, _ := url.Parse("http://backend.local/")
	jar.SetCookies(u, []*http.Cookie{
		{Name: "LIVE", Value: "1"},
		{Name: "DEAD", Value: "1", Expires: time.Now().Add(-time.Hour)},
	})
	cookies := jar.Cookies(u)
	if len(cookies) != 1 || cookies[0].Name != "LIVE" {
		t.Fatalf("cookies = %v, want only LIVE", cookies)
	}
	other, _ := url.Parse("http://other.local/")
	if got := jar.Cookies(other); len(got) != 0 {
		t.Fatalf("foreign host got cookies: %v", got)
	}
}

func TestJarMatchesCookiePath(t *testing.T) {
	s, _ := openTestStore(t)
	jar := s.Jar()
	base, _ := url.Parse("http://backend.local/")
	jar.SetCookies(base, []*http.Cookie{
		{Name: "ROOT", Value: "1", Path: "/"},
		{Name: "SCOPED", Value: "1", Path: "/api"},
	})

	api, _ := url.Parse("http://backend.local/api/tasks")
	if got := jar.Cookies(api); len(got) != 2 {
		t.Fatalf("cookies under /api = %v, want both", got)
	}

	other, _ := url.Parse("http://backend.local/oauth2/authorization/google")
	got := jar.Cookies(other)
	if len(got) != 1 || got[0].Name != "ROOT" {
		t.Fatalf("cookies outside /api = %v, want only ROOT", got)
	}

	// A prefix that is not a whole segment must not match.
	apiish, _ := url.Parse("http://backend.local/apiary")
	got = jar.Cookies(apiish)
	if len(got) != 1 || got[0].Name != "ROOT" {
		t.Fatalf("cookies for /apiary = %v, want only ROOT", got)
	}
}

func TestJarClear(t *testing.T) {
	s, _ := openTestStore(t)
	jar := s.Jar()
	u, _ := url.Parse("http://backend.local/")
	jar.SetCookies(u, []*http.Cookie{{Name: "SESSION", Value: "abc"}})
	if err := jar.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := jar.Cookies(u); len(got) != 0 {
		t.Fatalf("cookies after clear: %v", got)
	}
}

func TestJournal(t *testing.T) {
	s, _ := openTestStore(t)
	s.RecordMutation("task.update", 5, "committed", "")
	s.RecordMutation("task.delete", 5, "rolled_back", "boom")

	entries, err := s.RecentMutations(10)
	if err != nil {
		t.Fatalf("RecentMutations: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Action != "task.delete" || entries[0].Outcome != "rolled_back" {
		t.Fatalf("newest entry = %+v", entries[0])
	}
	if entries[1].EntityID == nil || *entries[1].EntityID != 5 {
		t.Fatalf("entity id = %v", entries[1].EntityID)
	}
}
