package proxy

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

const clientTimeout = 120 * time.Second

// NewHTTPClient returns the client every API call goes through. An empty
// socksAddr means a direct connection.
func NewHTTPClient(socksAddr string) (*http.Client, error) {
	if socksAddr == "" {
		return &http.Client{Timeout: clientTimeout}, nil
	}
	return NewSocksClient(socksAddr)
}

func NewSocksClient(socksAddr string) (*http.Client, error) {
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
	}

	// Video downloads and long generations share this client, so the timeout
	// is generous.
	return &http.Client{
		Transport: transport,
		Timeout:   clientTimeout,
	}, nil
}
