package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
)

// trackingJar wraps cookiejar.Jar, additionally remembering every host a
// cookie was ever set for. http.CookieJar has no enumeration method of its
// own — Cookies(u) only returns what matches a given URL — so persisting a
// session's full cookie set requires tracking which URLs it has seen.
type trackingJar struct {
	jar *cookiejar.Jar

	mu    sync.Mutex
	hosts map[string]struct{}
}

func newTrackingJar() *trackingJar {
	jar, _ := cookiejar.New(nil)
	return &trackingJar{jar: jar, hosts: make(map[string]struct{})}
}

// SetCookies implements http.CookieJar.
func (j *trackingJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	j.mu.Lock()
	j.hosts[u.Host] = struct{}{}
	j.mu.Unlock()
}

// Cookies implements http.CookieJar.
func (j *trackingJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// allCookies enumerates every cookie set for any host this jar has seen,
// deduplicated by domain/path/name. cookiejar hands back only Name and
// Value, so each cookie's Domain is set to the host it was read under.
func (j *trackingJar) allCookies() []*http.Cookie {
	j.mu.Lock()
	hosts := make([]string, 0, len(j.hosts))
	for h := range j.hosts {
		hosts = append(hosts, h)
	}
	j.mu.Unlock()

	seen := make(map[string]struct{})
	var all []*http.Cookie
	for _, host := range hosts {
		domain := (&url.URL{Host: host}).Hostname()
		for _, c := range j.jar.Cookies(&url.URL{Scheme: "https", Host: host}) {
			c.Domain = domain
			key := c.Domain + "|" + c.Path + "|" + c.Name
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, c)
		}
	}
	return all
}

// restoreCookies seeds the jar with previously-persisted cookies, replaying
// them through SetCookies grouped by domain. Each comes back as a domain
// cookie for that host with path "/"; attributes that allCookies does not
// capture (Path, Expires, Secure, HttpOnly) are not restored.
func (j *trackingJar) restoreCookies(cookies []*http.Cookie) {
	byHost := make(map[string][]*http.Cookie)
	for _, c := range cookies {
		host := strings.TrimPrefix(c.Domain, ".")
		byHost[host] = append(byHost[host], c)
	}
	for host, group := range byHost {
		j.SetCookies(&url.URL{Scheme: "https", Host: host}, group)
	}
}
