package yahoo

import "net/http"

// userAgentTransport stamps every outbound request with a browser user
// agent. Yahoo Finance blocks requests carrying Go's default one.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}
