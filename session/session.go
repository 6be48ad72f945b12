// Package session logs in to an Open edX platform and reads the dashboard and
// courseware pages of the signed-in user.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"

	"charm.land/log/v2"

	"github.com/Gaurav-Gosain/coursedl/course"
	"github.com/Gaurav-Gosain/coursedl/scraper"
)

// UserAgent identifies the downloader to the platform.
const UserAgent = "edX-downloader/0.01"

const csrfCookie = "csrftoken"

var platforms = map[string]string{
	"edx":      "https://courses.edx.org",
	"stanford": "https://lagunita.stanford.edu",
	"usyd-sit": "http://online.it.usyd.edu.au",
	"fun":      "https://www.france-universite-numerique-mooc.fr",
	"gwu-seas": "http://openedx.seas.gwu.edu",
	"gwu-open": "http://mooc.online.gwu.edu",
	"mitprox":  "https://mitprofessionalx.mit.edu",
}

// Platform is an Open edX deployment.
type Platform struct {
	Name    string
	BaseURL string
}

func (p Platform) LoginURL() string     { return p.BaseURL + "/login_ajax" }
func (p Platform) DashboardURL() string { return p.BaseURL + "/dashboard" }

// Lookup returns the known platform called name.
func Lookup(name string) (Platform, error) {
	base, ok := platforms[name]
	if !ok {
		return Platform{}, fmt.Errorf("unknown platform %q (known: %s)", name, strings.Join(PlatformNames(), ", "))
	}
	return Platform{Name: name, BaseURL: base}, nil
}

// PlatformNames lists the known platforms in sorted order.
func PlatformNames() []string {
	names := make([]string, 0, len(platforms))
	for n := range platforms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoginError is returned when the platform rejects the credentials.
type LoginError struct {
	Message string
}

func (e *LoginError) Error() string { return "login failed: " + e.Message }

// Session holds the cookie-carrying client shared by every request made on
// behalf of the user.
type Session struct {
	Platform Platform
	Client   *http.Client
	Fetcher  *scraper.CollyFetcher

	token string
}

// New prepares a session for p. Nothing is requested until Bootstrap.
func New(p Platform) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Jar: jar}
	return &Session{
		Platform: p,
		Client:   client,
		Fetcher:  scraper.NewCollyFetcher(scraper.NewCollector(client, UserAgent), p.BaseURL),
	}, nil
}

// Bootstrap visits the login page so the platform sets its CSRF cookie.
func (s *Session) Bootstrap(ctx context.Context) error {
	if _, err := s.Fetcher.Fetch(ctx, s.Platform.LoginURL(), nil); err != nil {
		return fmt.Errorf("open %s: %w", s.Platform.LoginURL(), err)
	}

	u, err := url.Parse(s.Platform.LoginURL())
	if err != nil {
		return err
	}
	for _, c := range s.Client.Jar.Cookies(u) {
		if c.Name == csrfCookie {
			s.token = c.Value
			return nil
		}
	}
	log.FromContext(ctx).Warn("No CSRF token issued", "platform", s.Platform.Name)
	return nil
}

// Token is the CSRF token found by Bootstrap, possibly empty.
func (s *Session) Token() string { return s.token }

// Headers returns a fresh copy of the headers sent with every request.
func (s *Session) Headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", UserAgent)
	h.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	h.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	h.Set("Referer", s.Platform.LoginURL())
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("X-CSRFToken", s.token)
	return h
}

type loginResponse struct {
	Success bool   `json:"success"`
	Value   string `json:"value"`
}

// Login signs in with the given credentials.
func (s *Session) Login(ctx context.Context, username, password string) error {
	form := url.Values{
		"email":    {username},
		"password": {password},
		"remember": {"false"},
	}
	body, err := s.Fetcher.Do(ctx, http.MethodPost, s.Platform.LoginURL(), strings.NewReader(form.Encode()), s.Headers())
	if err != nil {
		var fe *scraper.FetchError
		if errors.As(err, &fe) && fe.Status >= 400 && fe.Status < 500 {
			return &LoginError{Message: "Wrong Email or Password."}
		}
		return err
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if !resp.Success {
		msg := resp.Value
		if msg == "" {
			msg = "Wrong Email or Password."
		}
		return &LoginError{Message: msg}
	}
	log.FromContext(ctx).Debug("Logged in", "platform", s.Platform.Name, "user", username)
	return nil
}

// Courses lists the enrolled courses on the dashboard.
func (s *Session) Courses(ctx context.Context) ([]course.Course, error) {
	body, err := s.Fetcher.Fetch(ctx, s.Platform.DashboardURL(), s.Headers())
	if err != nil {
		return nil, err
	}
	courses, err := scraper.ParseCourses(body, s.Platform.BaseURL)
	if err != nil {
		return nil, &scraper.ParseError{URL: s.Platform.DashboardURL(), Err: err}
	}
	return courses, nil
}

// Sections lists the sections of c from its courseware page.
func (s *Session) Sections(ctx context.Context, c course.Course) ([]course.Section, error) {
	page := CoursewareURL(c)
	body, err := s.Fetcher.Fetch(ctx, page, s.Headers())
	if err != nil {
		return nil, err
	}
	sections, err := scraper.ParseSections(body, s.Platform.BaseURL)
	if err != nil {
		return nil, &scraper.ParseError{URL: page, Err: err}
	}
	return sections, nil
}

// CoursewareURL is the course's info URL pointed at its courseware page.
func CoursewareURL(c course.Course) string {
	return strings.ReplaceAll(c.URL, "info", "courseware")
}
