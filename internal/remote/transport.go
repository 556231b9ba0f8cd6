package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseSize bounds the body read from any path (10MB).
const maxResponseSize = 10 * 1024 * 1024

// relayPlaceholder marks where a relay template expects the target URL.
const relayPlaceholder = "{url}"

// HTTPConfig is shared by every HTTP path.
type HTTPConfig struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (c HTTPConfig) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// DirectPath calls the remote service itself.
func DirectPath(name string, cfg HTTPConfig) Path {
	return Path{Name: name, Send: httpSend(name, cfg, func(target string) string { return target })}
}

// RelayPath calls the service through a forwarding relay. A template holding
// "{url}" gets the escaped target substituted; otherwise the escaped target
// is appended to the template.
func RelayPath(name, template string, cfg HTTPConfig) Path {
	return Path{Name: name, Send: httpSend(name, cfg, func(target string) string {
		escaped := url.QueryEscape(target)
		if strings.Contains(template, relayPlaceholder) {
			return strings.ReplaceAll(template, relayPlaceholder, escaped)
		}
		return template + escaped
	})}
}

// BuildPaths returns the relay paths in order followed by the direct path.
func BuildPaths(relays []string, cfg HTTPConfig) []Path {
	paths := make([]Path, 0, len(relays)+1)
	for i, relay := range relays {
		relay = strings.TrimSpace(relay)
		if relay == "" {
			continue
		}
		paths = append(paths, RelayPath(fmt.Sprintf("relay-%d", i+1), relay, cfg))
	}
	return append(paths, DirectPath("direct", cfg))
}

func httpSend(name string, cfg HTTPConfig, target func(string) string) SendFunc {
	client := cfg.client()
	base := strings.TrimRight(cfg.BaseURL, "/")
	return func(ctx context.Context, req *Request) (*Response, error) {
		full := base + req.Endpoint
		if len(req.Query) > 0 {
			full += "?" + req.Query.Encode()
		}
		var body io.Reader
		if len(req.Body) > 0 {
			body = bytes.NewReader(req.Body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, target(full), body)
		if err != nil {
			return nil, &TransportError{Path: name, Err: err}
		}
		httpReq.Header.Set("Accept", "application/json")
		if body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if cfg.Token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+cfg.Token)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return nil, &TransportError{Path: name, Err: err}
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, &TransportError{Path: name, Status: resp.StatusCode, Err: err}
		}
		return classify(name, resp.StatusCode, payload)
	}
}

// classify maps a raw HTTP answer onto the error taxonomy.
func classify(path string, status int, body []byte) (*Response, error) {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, &AuthError{Path: path, Status: status}
	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return nil, &RemoteValidationError{Path: path, Status: status, Message: envelopeMessage(body, http.StatusText(status))}
	case status < 200 || status > 299:
		return nil, &TransportError{Path: path, Status: status}
	}
	if status == http.StatusNoContent && len(bytes.TrimSpace(body)) == 0 {
		return &Response{Status: status, Body: json.RawMessage("null")}, nil
	}
	if !json.Valid(body) {
		return nil, &MalformedResponseError{Path: path, Err: errors.New("body is not valid JSON")}
	}
	if msg, ok := errorEnvelope(body); ok {
		return nil, &RemoteValidationError{Path: path, Status: status, Message: msg}
	}
	return &Response{Status: status, Body: json.RawMessage(body)}, nil
}

type envelope struct {
	Error json.RawMessage `json:"error"`
}

// errorEnvelope extracts the message of an {"error": ...} body.
func errorEnvelope(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || len(env.Error) == 0 || string(env.Error) == "null" {
		return "", false
	}
	var text string
	if err := json.Unmarshal(env.Error, &text); err == nil {
		return text, true
	}
	var detail struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Error, &detail); err == nil && detail.Message != "" {
		return detail.Message, true
	}
	return string(env.Error), true
}

func envelopeMessage(body []byte, fallback string) string {
	if msg, ok := errorEnvelope(body); ok && msg != "" {
		return msg
	}
	return fallback
}
