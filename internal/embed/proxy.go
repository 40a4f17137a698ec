package embed

import (
	"net/http"
	"net/url"
	"time"
)

// newProxyFunc creates a proxy function based on configuration.
// If no proxy URLs are provided, falls back to environment variables.
func newProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

func newHTTPClient(config Config, fallbackTimeout time.Duration) *http.Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = fallbackTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: newProxyFunc(config.HTTPProxy, config.HTTPSProxy),
		},
	}
}
