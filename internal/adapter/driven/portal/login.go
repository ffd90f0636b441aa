package portal

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ericfisherdev/nauta/internal/domain/model"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

// attributeUUIDPattern matches the attribute UUID in the login response.
var attributeUUIDPattern = regexp.MustCompile(`ATTRIBUTE_UUID=(\w+)&CSRFHW=`)

// Portal form field names this client reads. Every other field is passed
// through untouched.
const (
	fieldCSRF     = "CSRFHW"
	fieldClientIP = "wlanuserip"
)

// FetchLoginForm requests the bootstrap page and reads its first form. If the
// page was not served by the captive portal, it returns ErrAlreadyConnected.
func (c *Client) FetchLoginForm(ctx context.Context) (driven.LoginHandshake, error) {
	session := c.newSession()

	p, err := c.get(ctx, session, c.endpoints.BootstrapURL)
	if err != nil {
		return nil, fmt.Errorf("fetch login form: %w", err)
	}
	if !c.interceptedByPortal(p) {
		return nil, driven.ErrAlreadyConnected
	}

	doc, err := p.document()
	if err != nil {
		return nil, err
	}

	form, err := c.readForm(doc, "form", p.url)
	if err != nil {
		return nil, fmt.Errorf("fetch login form: %w", err)
	}

	return &handshake{client: c, session: session, form: form}, nil
}

// interceptedByPortal reports whether p is the gateway's login page rather
// than the real bootstrap site.
func (c *Client) interceptedByPortal(p page) bool {
	if p.url != nil && p.url.Hostname() == c.portalHost {
		return true
	}
	return strings.Contains(p.body, c.portalHost)
}

// handshake carries one HTTP session through the two-form login relay.
type handshake struct {
	client  *Client
	session *http.Client
	form    model.LoginForm
}

func (h *handshake) Form() model.LoginForm {
	return h.form
}

func (h *handshake) SubmitAuth(
	ctx context.Context,
	username, password string,
	beforeSubmit func(model.SessionTokens) error,
) (model.SessionTokens, error) {
	relay, err := h.client.postForm(ctx, h.session, h.form.Action, withCredentials(h.form.Fields, username, password))
	if err != nil {
		return model.SessionTokens{}, fmt.Errorf("submit bootstrap form: %w", err)
	}

	doc, err := relay.document()
	if err != nil {
		return model.SessionTokens{}, err
	}

	login, err := h.client.readForm(doc, "form#formulario", relay.url)
	if err != nil {
		return model.SessionTokens{}, fmt.Errorf("read login form: %w", err)
	}

	tokens := model.SessionTokens{
		CSRF:     login.Fields[fieldCSRF],
		ClientIP: login.Fields[fieldClientIP],
	}

	if beforeSubmit != nil {
		if err := beforeSubmit(tokens); err != nil {
			return tokens, err
		}
	}

	resp, err := h.client.postForm(ctx, h.session, login.Action, withCredentials(login.Fields, username, password))
	if err != nil {
		return tokens, fmt.Errorf("submit credentials: %w", err)
	}

	m := attributeUUIDPattern.FindStringSubmatch(resp.body)
	if m == nil {
		return tokens, driven.ErrAuthFailed
	}
	tokens.AttributeUUID = m[1]

	return tokens, nil
}
