package reputation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"fraud-advisor/backend/pkg/cache"
	"fraud-advisor/backend/pkg/logger"
	"fraud-advisor/backend/pkg/secrets"

	"golang.org/x/time/rate"
)

const (
	DefaultHIBPURL      = "https://haveibeenpwned.com/api/v3"
	DefaultAbuseIPDBURL = "https://api.abuseipdb.com/api/v2"
	DefaultPhishScanURL = "https://api.zvelo.com/v1"
)

// Config holds keys, endpoints and pacing for every provider.
// Empty keys fall back to the secret store.
type Config struct {
	HIBPKey      string
	AbuseIPDBKey string
	PhishScanKey string

	HIBPURL      string
	AbuseIPDBURL string
	PhishScanURL string

	Timeout       time.Duration
	CacheTTL      time.Duration
	RatePerSecond float64
}

// Service performs the lookups
type Service struct {
	hibp      *provider
	abuseIPDB *provider
	phishScan *provider
}

// New builds the three providers sharing one cache and secret store
func New(cfg Config, store cache.Store, sm secrets.Manager, log *logger.Logger) *Service {
	if log == nil {
		log = logger.GetGlobal()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}

	client := &http.Client{Timeout: cfg.Timeout}
	mk := func(name, base, def, key, secretKey string, auth func(http.Header, string)) *provider {
		if base == "" {
			base = def
		}
		return &provider{
			name:       name,
			baseURL:    trimBase(base),
			key:        key,
			secretKey:  secretKey,
			auth:       auth,
			httpClient: client,
			limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
			cache:      store,
			ttl:        cfg.CacheTTL,
			secrets:    sm,
			log:        log,
		}
	}

	return &Service{
		hibp: mk("hibp", cfg.HIBPURL, DefaultHIBPURL, cfg.HIBPKey, "hibp-api-key",
			func(h http.Header, key string) { h.Set("hibp-api-key", key) }),
		abuseIPDB: mk("abuseipdb", cfg.AbuseIPDBURL, DefaultAbuseIPDBURL, cfg.AbuseIPDBKey, "abuseipdb-api-key",
			func(h http.Header, key string) { h.Set("Key", key) }),
		phishScan: mk("phishscan", cfg.PhishScanURL, DefaultPhishScanURL, cfg.PhishScanKey, "phishscan-api-key",
			func(h http.Header, key string) { h.Set("Authorization", "Bearer "+key) }),
	}
}

// Breach is one HIBP breach record
type Breach struct {
	Name        string   `json:"Name"`
	Title       string   `json:"Title"`
	Domain      string   `json:"Domain"`
	BreachDate  string   `json:"BreachDate"`
	AddedDate   string   `json:"AddedDate,omitempty"`
	PwnCount    int64    `json:"PwnCount"`
	Description string   `json:"Description,omitempty"`
	DataClasses []string `json:"DataClasses"`
	IsVerified  bool     `json:"IsVerified"`
}

// BreachedAccount lists the breaches an address appears in.
// An address unknown to the provider yields an empty list.
func (s *Service) BreachedAccount(ctx context.Context, email string) ([]Breach, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return nil, fmt.Errorf("%w: %q is not an email address", ErrInvalidInput, email)
	}
	normalized := strings.ToLower(addr.Address)

	return cached(ctx, s.hibp, normalized, func(ctx context.Context, key string) ([]Breach, error) {
		var breaches []Breach
		path := "/breachedaccount/" + url.PathEscape(normalized) + "?truncateResponse=false"
		err := s.hibp.do(ctx, http.MethodGet, path, key, nil, &breaches)
		if errors.Is(err, errNotFound) {
			return []Breach{}, nil
		}
		if err != nil {
			return nil, err
		}
		if breaches == nil {
			breaches = []Breach{}
		}
		return breaches, nil
	})
}

// IPReport is the AbuseIPDB verdict for one address
type IPReport struct {
	IPAddress            string   `json:"ip_address"`
	IsPublic             bool     `json:"is_public"`
	IPVersion            int      `json:"ip_version"`
	IsWhitelisted        bool     `json:"is_whitelisted"`
	AbuseConfidenceScore int      `json:"abuse_confidence_score"`
	CountryCode          string   `json:"country_code,omitempty"`
	UsageType            string   `json:"usage_type,omitempty"`
	ISP                  string   `json:"isp,omitempty"`
	Domain               string   `json:"domain,omitempty"`
	Hostnames            []string `json:"hostnames"`
	TotalReports         int      `json:"total_reports"`
	NumDistinctUsers     int      `json:"num_distinct_users"`
	LastReportedAt       *string  `json:"last_reported_at,omitempty"`
	Source               string   `json:"source"`
}

type abuseIPDBResponse struct {
	Data struct {
		IPAddress            string   `json:"ipAddress"`
		IsPublic             bool     `json:"isPublic"`
		IPVersion            int      `json:"ipVersion"`
		IsWhitelisted        *bool    `json:"isWhitelisted"`
		AbuseConfidenceScore int      `json:"abuseConfidenceScore"`
		CountryCode          string   `json:"countryCode"`
		UsageType            string   `json:"usageType"`
		ISP                  string   `json:"isp"`
		Domain               string   `json:"domain"`
		Hostnames            []string `json:"hostnames"`
		TotalReports         int      `json:"totalReports"`
		NumDistinctUsers     int      `json:"numDistinctUsers"`
		LastReportedAt       *string  `json:"lastReportedAt"`
	} `json:"data"`
}

// CheckIP looks up abuse reports from the last 90 days
func (s *Service) CheckIP(ctx context.Context, ip string) (*IPReport, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an IP address", ErrInvalidInput, ip)
	}
	normalized := addr.String()

	return cached(ctx, s.abuseIPDB, normalized, func(ctx context.Context, key string) (*IPReport, error) {
		q := url.Values{"ipAddress": {normalized}, "maxAgeInDays": {"90"}}
		var raw abuseIPDBResponse
		if err := s.abuseIPDB.do(ctx, http.MethodGet, "/check?"+q.Encode(), key, nil, &raw); err != nil {
			if errors.Is(err, errNotFound) {
				return nil, fmt.Errorf("%w: abuseipdb returned status 404", ErrUpstream)
			}
			return nil, err
		}
		d := raw.Data
		report := &IPReport{
			IPAddress:            d.IPAddress,
			IsPublic:             d.IsPublic,
			IPVersion:            d.IPVersion,
			IsWhitelisted:        d.IsWhitelisted != nil && *d.IsWhitelisted,
			AbuseConfidenceScore: d.AbuseConfidenceScore,
			CountryCode:          d.CountryCode,
			UsageType:            d.UsageType,
			ISP:                  d.ISP,
			Domain:               d.Domain,
			Hostnames:            d.Hostnames,
			TotalReports:         d.TotalReports,
			NumDistinctUsers:     d.NumDistinctUsers,
			LastReportedAt:       d.LastReportedAt,
			Source:               "abuseipdb",
		}
		if report.IPAddress == "" {
			report.IPAddress = normalized
		}
		if report.Hostnames == nil {
			report.Hostnames = []string{}
		}
		return report, nil
	})
}

// URLReport is the PhishScan verdict for one URL
type URLReport struct {
	URL         string   `json:"url"`
	IsPhishing  bool     `json:"is_phishing"`
	Confidence  float64  `json:"confidence"`
	Category    string   `json:"category"`
	ThreatLevel string   `json:"threat_level"`
	Redirects   []string `json:"redirects"`
	FinalURL    string   `json:"final_url,omitempty"`
	Domain      string   `json:"domain,omitempty"`
	Source      string   `json:"source"`
}

type phishScanRequest struct {
	URL                string `json:"url"`
	IncludeRedirects   bool   `json:"include_redirects"`
	IncludeScreenshots bool   `json:"include_screenshots"`
}

type phishScanResponse struct {
	Result struct {
		URL         string   `json:"url"`
		IsPhishing  bool     `json:"is_phishing"`
		Confidence  float64  `json:"confidence"`
		Category    string   `json:"category"`
		ThreatLevel string   `json:"threat_level"`
		Redirects   []string `json:"redirects"`
		FinalURL    string   `json:"final_url"`
		Domain      string   `json:"domain"`
	} `json:"result"`
}

// CheckURL asks PhishScan whether an http(s) URL is a phishing page
func (s *Service) CheckURL(ctx context.Context, rawURL string) (*URLReport, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidInput, rawURL)
	}

	return cached(ctx, s.phishScan, u.String(), func(ctx context.Context, key string) (*URLReport, error) {
		var raw phishScanResponse
		req := phishScanRequest{URL: u.String(), IncludeRedirects: true}
		if err := s.phishScan.do(ctx, http.MethodPost, "/phish", key, req, &raw); err != nil {
			if errors.Is(err, errNotFound) {
				return nil, fmt.Errorf("%w: phishscan returned status 404", ErrUpstream)
			}
			return nil, err
		}
		r := raw.Result
		report := &URLReport{
			URL:         r.URL,
			IsPhishing:  r.IsPhishing,
			Confidence:  r.Confidence,
			Category:    r.Category,
			ThreatLevel: r.ThreatLevel,
			Redirects:   r.Redirects,
			FinalURL:    r.FinalURL,
			Domain:      r.Domain,
			Source:      "zvelo_phishscan",
		}
		if report.URL == "" {
			report.URL = u.String()
		}
		if report.Category == "" {
			report.Category = "unknown"
		}
		if report.ThreatLevel == "" {
			report.ThreatLevel = "low"
		}
		if report.Redirects == nil {
			report.Redirects = []string{}
		}
		return report, nil
	})
}
