// Package probe performs the HTTP check against the monitored target.
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/selfmon/selfmon/internal/monerr"
)

var (
	HTTPUserAgent = "selfmon health check"
)

const (
	HTTP_REDIRECT_MAX = 10

	// DefaultTimeout is the hard limit of a single check.
	DefaultTimeout = 30 * time.Second

	// maxDrainBytes is the limit of response body to read before closing connection.
	maxDrainBytes = 1024 * 1024
)

var (
	ErrRedirectLoopDetected = errors.New("redirect loop detected")
	ErrUnsupportedScheme    = errors.New("unsupported scheme")
	ErrMissingHost          = errors.New("missing target host")
)

func checkHTTPRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > HTTP_REDIRECT_MAX {
		return ErrRedirectLoopDetected
	}
	return nil
}

// Outcome is the result of a probe that got a response.
type Outcome struct {
	StatusCode int

	// Elapsed is the elapsed milliseconds, rounded to 2 decimal places.
	Elapsed float64
}

// Options is the settings for HTTPProber.
type Options struct {
	// Timeout is the limit of a check. DefaultTimeout is used if zero.
	Timeout time.Duration

	// VerifyTLS enables certificate verification.
	// It is disabled by default, to watch hosts with self-signed certificates.
	VerifyTLS bool
}

// HTTPProber sends a GET request to the target.
type HTTPProber struct {
	target  *url.URL
	timeout time.Duration
	client  *http.Client
	request *http.Request
}

// NewHTTPProber validates target URL and makes a HTTPProber.
func NewHTTPProber(target string, opts Options) (*HTTPProber, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, monerr.New(monerr.ErrConfig, err, "invalid target URL")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, monerr.New(monerr.ErrConfig, ErrUnsupportedScheme, "invalid target URL %q", target)
	}
	if u.Hostname() == "" {
		return nil, monerr.New(monerr.ErrConfig, ErrMissingHost, "invalid target URL %q", target)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{
		Transport: &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			DisableKeepAlives: true,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !opts.VerifyTLS,
			},
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
		},
		CheckRedirect: checkHTTPRedirect,
	}

	return &HTTPProber{
		target:  u,
		timeout: timeout,
		client:  client,
		request: &http.Request{
			Method: http.MethodGet,
			URL:    u,
			Header: http.Header{
				"User-Agent": {HTTPUserAgent},
			},
		},
	}, nil
}

func (p *HTTPProber) Target() *url.URL {
	return p.target
}

func (p *HTTPProber) Timeout() time.Duration {
	return p.timeout
}

// Probe sends a request and waits response.
//
// The error is always a monerr.ErrProbe error, and it means the target did not respond.
// The Outcome has Elapsed even if an error returned.
func (p *HTTPProber) Probe(ctx context.Context) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := p.request.Clone(ctx)

	st := time.Now()
	resp, err := p.client.Do(req)
	d := time.Since(st)

	out := Outcome{
		Elapsed: Milliseconds(d),
	}

	if err != nil {
		return out, monerr.New(monerr.ErrProbe, nil, "%s", p.errorMessage(ctx, err))
	}

	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	resp.Body.Close()

	out.StatusCode = resp.StatusCode
	return out, nil
}

func (p *HTTPProber) errorMessage(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("probe timed out after %s", p.timeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return "probe aborted"
	}

	dnsErr := &net.DNSError{}
	opErr := &net.OpError{}
	certErr := &tls.CertificateVerificationError{}
	unknownAuthority := x509.UnknownAuthorityError{}
	hostnameErr := x509.HostnameError{}

	switch {
	case errors.Is(err, ErrRedirectLoopDetected):
		return ErrRedirectLoopDetected.Error()
	case errors.As(err, &dnsErr):
		return dnsErrorToMessage(dnsErr)
	case errors.As(err, &certErr), errors.As(err, &unknownAuthority), errors.As(err, &hostnameErr):
		return "certificate verification failed: " + unwrapURLError(err).Error()
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return fmt.Sprintf("%s: %s", opErr.Addr, opErr.Err)
	default:
		return unwrapURLError(err).Error()
	}
}

func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func dnsErrorToMessage(err *net.DNSError) string {
	msg := err.Error()
	if err.IsNotFound {
		msg = "lookup " + err.Name + ": not found"
	}
	if err.Server != "" {
		msg += " on " + err.Server
	}
	return msg
}

// Milliseconds converts duration to milliseconds that rounded to 2 decimal places.
func Milliseconds(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*100) / 100
}
