// Package dnsdiag classifies the DNS state of an unreachable target host.
// It is purely diagnostic: its findings are logged and never change a verdict.
package dnsdiag

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Class is the DNS state of a host.
type Class string

const (
	ClassResolves    Class = "RESOLVES"
	ClassNXDomain    Class = "NXDOMAIN"
	ClassNoARecord   Class = "NO_A_RECORD"
	ClassServFail    Class = "SERVFAIL_or_TIMEOUT"
	ClassInvalidName Class = "INVALID_NAME"
)

// DefaultTimeout bounds each DNS exchange.
const DefaultTimeout = 3 * time.Second

// Status is the outcome of a diagnosis.
type Status struct {
	Host      string
	Class     Class
	Addresses []string
	CNAME     string
	Server    string
	Err       string
}

// Diagnoser queries one DNS server directly.
type Diagnoser struct {
	server  string
	timeout time.Duration
	client  *dns.Client
}

// Option configures a Diagnoser.
type Option func(*Diagnoser) error

// WithServer queries addr (host:port) instead of the system resolver.
func WithServer(addr string) Option {
	return func(d *Diagnoser) error {
		if addr == "" {
			return fmt.Errorf("server must not be empty")
		}
		d.server = addr
		return nil
	}
}

// WithTimeout sets the per-query timeout.
func WithTimeout(t time.Duration) Option {
	return func(d *Diagnoser) error {
		if t <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", t)
		}
		d.timeout = t
		return nil
	}
}

// New creates a Diagnoser. Without WithServer the first nameserver from
// /etc/resolv.conf is used.
func New(opts ...Option) (*Diagnoser, error) {
	d := &Diagnoser{timeout: DefaultTimeout}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("dnsdiag: %w", err)
		}
	}

	if d.server == "" {
		cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("dnsdiag: read resolver config: %w", err)
		}
		if len(cfg.Servers) == 0 {
			return nil, fmt.Errorf("dnsdiag: no nameserver configured")
		}
		d.server = net.JoinHostPort(cfg.Servers[0], cfg.Port)
	}

	d.client = &dns.Client{Timeout: d.timeout}
	return d, nil
}

// HostFromURL extracts the host name of a base URL.
func HostFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Diagnose classifies host. It queries A first and falls back to AAAA when
// the name exists without IPv4 addresses.
func (d *Diagnoser) Diagnose(ctx context.Context, host string) Status {
	s := Status{Host: strings.TrimSpace(host), Server: d.server}

	if ip := net.ParseIP(s.Host); ip != nil {
		s.Class = ClassResolves
		s.Addresses = []string{ip.String()}
		return s
	}
	if s.Host == "" || strings.Contains(s.Host, "://") {
		s.Class = ClassInvalidName
		return s
	}
	if _, ok := dns.IsDomainName(s.Host); !ok {
		s.Class = ClassInvalidName
		return s
	}

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		resp, err := d.exchange(ctx, s.Host, qtype)
		if err != nil {
			s.Class = ClassServFail
			s.Err = err.Error()
			return s
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			s.Class = ClassNXDomain
			return s
		default:
			s.Class = ClassServFail
			s.Err = "rcode " + dns.RcodeToString[resp.Rcode]
			return s
		}

		for _, rr := range resp.Answer {
			switch v := rr.(type) {
			case *dns.A:
				s.Addresses = append(s.Addresses, v.A.String())
			case *dns.AAAA:
				s.Addresses = append(s.Addresses, v.AAAA.String())
			case *dns.CNAME:
				if s.CNAME == "" {
					s.CNAME = strings.TrimSuffix(v.Target, ".")
				}
			}
		}
		if len(s.Addresses) > 0 {
			s.Class = ClassResolves
			return s
		}
	}

	s.Class = ClassNoARecord
	return s
}

func (d *Diagnoser) exchange(ctx context.Context, host string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	resp, _, err := d.client.ExchangeContext(ctx, msg, d.server)
	if err != nil {
		return nil, fmt.Errorf("dns %s %s: %w", dns.TypeToString[qtype], host, err)
	}
	return resp, nil
}
