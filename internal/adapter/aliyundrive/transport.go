package aliyundrive

import (
	"bytes"
	"io"
	"net/http"
	"net/url"

	"github.com/semmidev/alipan-runner/internal/config"
	"github.com/semmidev/alipan-runner/internal/domain"
)

// NewHTTPClient builds the transport shared by the session and the client.
// No request timeout is set beyond the transport defaults.
func NewHTTPClient(cfg *config.DriveConfig, logger Logger) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.Proxy {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, &domain.EndpointError{URL: cfg.ProxyURL, Err: err}
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	var rt http.RoundTripper = transport
	if cfg.Verbose {
		rt = &tracingTransport{next: rt, logger: logger}
	}

	return &http.Client{Transport: rt}, nil
}

// tracingTransport logs request and response bodies at debug level. Headers
// are left out so bearer tokens never reach the log.
type tracingTransport struct {
	next   http.RoundTripper
	logger Logger
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			reqBody, _ = io.ReadAll(rc)
			rc.Close()
		}
	}
	t.logger.Debugf("--> %s %s %s", req.Method, req.URL, reqBody)

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Debugf("<-- %s %s failed: %v", req.Method, req.URL, err)
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	t.logger.Debugf("<-- %d %s %s", resp.StatusCode, req.URL, respBody)
	return resp, nil
}
