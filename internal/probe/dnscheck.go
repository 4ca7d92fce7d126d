package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/hamed0406/servermonitor/internal/domain"
)

// DNS classes reported by DNSDiagnoser.Diagnose.
const (
	DNSResolves    = "RESOLVES"
	DNSNXDomain    = "NXDOMAIN"
	DNSNoARecord   = "NO_A_RECORD"
	DNSServfail    = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName = "INVALID_NAME"
	DNSLiteralIP   = "IP_LITERAL"
)

const defaultDNSTimeout = 3 * time.Second

type DNSStatus struct {
	Domain        string
	IPs           []string
	Class         string
	ResolverError string
}

// DNSDiagnoser classifies a host's DNS state. With Server empty it uses the
// OS resolver, otherwise it queries Server ("host:port") directly.
type DNSDiagnoser struct {
	Server  string
	Timeout time.Duration
}

func (d DNSDiagnoser) Diagnose(ctx context.Context, host string) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSpace(host)}
	if s.Domain == "" || strings.Contains(s.Domain, "://") {
		s.Class = DNSInvalidName
		return s
	}
	if net.ParseIP(s.Domain) != nil {
		s.Class = DNSLiteralIP
		s.IPs = []string{s.Domain}
		return s
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	if d.Server != "" {
		return d.exchange(ctx, s)
	}
	return lookupOS(ctx, s)
}

func lookupOS(ctx context.Context, s DNSStatus) DNSStatus {
	r := &net.Resolver{}
	ips, err := r.LookupIPAddr(ctx, s.Domain)
	if err == nil && len(ips) > 0 {
		for _, ip := range ips {
			s.IPs = append(s.IPs, ip.String())
		}
		s.Class = DNSResolves
		return s
	}
	if err != nil {
		s.ResolverError = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) && !de.IsNotFound {
			s.Class = DNSServfail
			return s
		}
	}
	if ns, err := r.LookupNS(ctx, s.Domain); err == nil && len(ns) > 0 {
		s.Class = DNSNoARecord
		return s
	}
	s.Class = DNSNXDomain
	return s
}

func (d DNSDiagnoser) exchange(ctx context.Context, s DNSStatus) DNSStatus {
	c := &dns.Client{}
	for _, qt := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(s.Domain), qt)
		resp, _, err := c.ExchangeContext(ctx, msg, d.Server)
		if err != nil {
			s.ResolverError = err.Error()
			s.Class = DNSServfail
			return s
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			s.Class = DNSNXDomain
			return s
		default:
			s.ResolverError = dns.RcodeToString[resp.Rcode]
			s.Class = DNSServfail
			return s
		}
		for _, rr := range resp.Answer {
			switch v := rr.(type) {
			case *dns.A:
				s.IPs = append(s.IPs, v.A.String())
			case *dns.AAAA:
				s.IPs = append(s.IPs, v.AAAA.String())
			}
		}
	}
	if len(s.IPs) > 0 {
		s.Class = DNSResolves
	} else {
		s.Class = DNSNoARecord
	}
	return s
}

// WithDNSDiagnosis wraps inner so Offline results carry the DNS class of the
// target host in Reason. The status itself is never changed.
func WithDNSDiagnosis(inner Checker, d DNSDiagnoser) Checker {
	return &dnsDiagnosing{inner: inner, diag: d}
}

type dnsDiagnosing struct {
	inner Checker
	diag  DNSDiagnoser
}

func (c *dnsDiagnosing) Check(ctx context.Context, target string) Result {
	out := c.inner.Check(ctx, target)
	if out.Status.Kind != domain.StatusOffline {
		return out
	}
	// the probe context is usually spent by now
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.diag.timeout())
	defer cancel()
	ds := c.diag.Diagnose(dctx, extractHost(target))
	out.Reason = strings.TrimSpace(out.Reason + " dns=" + ds.Class)
	return out
}

func (d DNSDiagnoser) timeout() time.Duration {
	if d.Timeout <= 0 {
		return defaultDNSTimeout
	}
	return d.Timeout
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
