package localstore

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Jar is an http.CookieJar backed by the state database, so the backend
// session cookie survives between CLI invocations. Hosts match exactly
// (the client only ever talks to one backend); paths match by prefix
// segment as browsers do.
type Jar struct {
	store *Store
}

func (s *Store) Jar() *Jar {
	return &Jar{store: s}
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			j.delete(u.Hostname(), c.Name, cookiePath(c))
			continue
		}
		expires := ""
		if c.MaxAge > 0 {
			expires = time.Now().Add(time.Duration(c.MaxAge) * time.Second).UTC().Format(time.RFC3339)
		} else if !c.Expires.IsZero() {
			expires = c.Expires.UTC().Format(time.RFC3339)
		}
		_, _ = j.store.DB.Exec(
			`INSERT INTO cookies(host, name, value, path, expires, secure, http_only)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(host, name, path) DO UPDATE SET
			   value=excluded.value, expires=excluded.expires,
			   secure=excluded.secure, http_only=excluded.http_only`,
			u.Hostname(), c.Name, c.Value, cookiePath(c), expires, boolInt(c.Secure), boolInt(c.HttpOnly),
		)
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	rows, err := j.store.DB.Query(
		`SELECT name, value, path, expires, secure FROM cookies WHERE host=?`, u.Hostname(),
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []*http.Cookie
	now := time.Now()
	for rows.Next() {
		var name, value, path string
		var expires *string
		var secure int
		if err := rows.Scan(&name, &value, &path, &expires, &secure); err != nil {
			continue
		}
		if !pathMatches(u.Path, path) {
			continue
		}
		if expires != nil && *expires != "" {
			if t, err := time.Parse(time.RFC3339, *expires); err == nil && t.Before(now) {
				continue
			}
		}
		if secure == 1 && u.Scheme != "https" {
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil
	}
	return out
}

func pathMatches(requestPath, cookiePath string) bool {
	if requestPath == "" {
		requestPath = "/"
	}
	if cookiePath == "/" || requestPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}

// Clear drops every stored cookie, used on logout.
func (j *Jar) Clear() error {
	_, err := j.store.DB.Exec(`DELETE FROM cookies`)
	return err
}

func (j *Jar) delete(host, name, path string) {
	_, _ = j.store.DB.Exec(`DELETE FROM cookies WHERE host=? AND name=? AND path=?`, host, name, path)
}

func cookiePath(c *http.Cookie) string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
