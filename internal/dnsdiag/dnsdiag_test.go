package dnsdiag

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// startTestServer starts an in-process UDP DNS server on a random port.
func startTestServer(t *testing.T, handler func(dns.ResponseWriter, *dns.Msg)) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	srv := &dns.Server{PacketConn: pc, Handler: dns.HandlerFunc(handler)}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

// zone answers from a fixed record set; unknown names get NXDOMAIN.
func zone(records map[string][]string) func(dns.ResponseWriter, *dns.Msg) {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		rrs, ok := records[q.Name]
		if !ok {
			m.Rcode = dns.RcodeNameError
			_ = w.WriteMsg(m)
			return
		}
		for _, s := range rrs {
			rr, err := dns.NewRR(s)
			if err != nil {
				continue
			}
			if rr.Header().Rrtype == q.Qtype || rr.Header().Rrtype == dns.TypeCNAME {
				m.Answer = append(m.Answer, rr)
			}
		}
		_ = w.WriteMsg(m)
	}
}

func newTestDiagnoser(t *testing.T, addr string) *Diagnoser {
	t.Helper()
	d, err := New(WithServer(addr), WithTimeout(500*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return d
}

func TestDiagnose(t *testing.T) {
	addr := startTestServer(t, zone(map[string][]string{
		"app.azurewebsites.net.": {"app.azurewebsites.net. 60 IN CNAME waws-prod.cloudapp.net.", "app.azurewebsites.net. 60 IN A 20.40.1.2"},
		"v6only.example.net.":    {"v6only.example.net. 60 IN AAAA 2001:db8::1"},
		"empty.example.net.":     {},
	}))
	d := newTestDiagnoser(t, addr)

	tests := []struct {
		host      string
		expected  Class
		addresses int
		cname     string
	}{
		{"app.azurewebsites.net", ClassResolves, 1, "waws-prod.cloudapp.net"},
		{"v6only.example.net", ClassResolves, 1, ""},
		{"empty.example.net", ClassNoARecord, 0, ""},
		{"gone.example.net", ClassNXDomain, 0, ""},
		{"", ClassInvalidName, 0, ""},
		{"https://app.example.net", ClassInvalidName, 0, ""},
		{"127.0.0.1", ClassResolves, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			s := d.Diagnose(context.Background(), tt.host)
			if s.Class != tt.expected {
				t.Errorf("Class = %s, want %s (err %q)", s.Class, tt.expected, s.Err)
			}
			if len(s.Addresses) != tt.addresses {
				t.Errorf("Addresses = %v, want %d entries", s.Addresses, tt.addresses)
			}
			if s.CNAME != tt.cname {
				t.Errorf("CNAME = %q, want %q", s.CNAME, tt.cname)
			}
		})
	}
}

func TestDiagnoseServFail(t *testing.T) {
	addr := startTestServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, dns.RcodeServerFailure)
		_ = w.WriteMsg(m)
	})

	s := newTestDiagnoser(t, addr).Diagnose(context.Background(), "app.example.net")
	if s.Class != ClassServFail {
		t.Errorf("Class = %s, want %s", s.Class, ClassServFail)
	}
	if s.Err != "rcode SERVFAIL" {
		t.Errorf("Err = %q", s.Err)
	}
}

func TestDiagnoseTimeout(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer pc.Close()

	d, err := New(WithServer(pc.LocalAddr().String()), WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	s := d.Diagnose(context.Background(), "app.example.net")
	if s.Class != ClassServFail {
		t.Errorf("Class = %s, want %s", s.Class, ClassServFail)
	}
	if s.Err == "" {
		t.Error("expected resolver error text")
	}
}

func TestNewOptions(t *testing.T) {
	if _, err := New(WithServer("")); err == nil {
		t.Error("expected error for empty server")
	}
	if _, err := New(WithServer("127.0.0.1:53"), WithTimeout(0)); err == nil {
		t.Error("expected error for zero timeout")
	}
	d, err := New(WithServer("127.0.0.1:53"), WithTimeout(7*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.timeout != 7*time.Second {
		t.Errorf("timeout = %v, want 7s", d.timeout)
	}
}

func TestHostFromURL(t *testing.T) {
	tests := map[string]string{
		"https://app.azurewebsites.net":     "app.azurewebsites.net",
		"http://localhost:8000/":            "localhost",
		"https://[2001:db8::1]:8443/health": "2001:db8::1",
		"::not a url":                       "",
	}
	for in, want := range tests {
		if got := HostFromURL(in); got != want {
			t.Errorf("HostFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
