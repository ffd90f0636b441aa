package portal

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ericfisherdev/nauta/internal/domain/model"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

// expiryLabel is the portal's label for the account expiry row. It must
// match exactly, accent included.
const expiryLabel = "expiración"

// QueryBalance returns the raw balance response body for username. The caller
// decides whether the body is a usable balance.
func (c *Client) QueryBalance(ctx context.Context, username string) (string, error) {
	target, err := balanceQuery(c.endpoints.QueryURL, username)
	if err != nil {
		return "", err
	}

	p, err := c.get(ctx, c.newSession(), target)
	if err != nil {
		return "", fmt.Errorf("query balance for %s: %w", username, err)
	}
	return p.body, nil
}

// QueryExpiry returns the account expiry string with backslashes removed.
func (c *Client) QueryExpiry(ctx context.Context, username, password string) (string, error) {
	doc, err := c.accountPage(ctx, username, password)
	if err != nil {
		return "", fmt.Errorf("query expiry for %s: %w", username, err)
	}

	expiry, ok := findExpiry(doc)
	if !ok {
		return "", fmt.Errorf("query expiry for %s: %w", username, driven.ErrInvalidCredentials)
	}
	return expiry, nil
}

// VerifyCredentials reports whether the account page for the credentials
// shows an expiry row.
func (c *Client) VerifyCredentials(ctx context.Context, username, password string) (bool, error) {
	doc, err := c.accountPage(ctx, username, password)
	if err != nil {
		return false, fmt.Errorf("verify credentials for %s: %w", username, err)
	}

	_, ok := findExpiry(doc)
	return ok, nil
}

// QueryAccountInfo reads the account summary table and the session history
// table from the account page.
func (c *Client) QueryAccountInfo(ctx context.Context, username, password string) (*model.AccountInfo, error) {
	doc, err := c.accountPage(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("query account info for %s: %w", username, err)
	}

	summary := doc.Find("table#sessioninfo").First()
	if summary.Length() == 0 {
		return nil, fmt.Errorf("query account info for %s: %w", username, driven.ErrInvalidCredentials)
	}

	info := &model.AccountInfo{}
	summary.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() != 2 {
			return
		}
		info.Fields = append(info.Fields, model.InfoField{
			Label: cellText(cells.Eq(0)),
			Value: cellText(cells.Eq(1)),
		})
	})

	doc.Find("table#sesiontraza tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}
		var record []string
		cells.Each(func(_ int, cell *goquery.Selection) {
			record = append(record, cellText(cell))
		})
		info.Sessions = append(info.Sessions, record)
	})

	return info, nil
}

// accountPage loads the portal root, copies its hidden fields, and posts
// them with the credentials to the query endpoint.
func (c *Client) accountPage(ctx context.Context, username, password string) (*goquery.Document, error) {
	session := c.newSession()

	root, err := c.get(ctx, session, c.endpoints.PortalURL)
	if err != nil {
		return nil, err
	}

	fields, err := c.extractor.ExtractFields(root.body)
	if err != nil {
		return nil, err
	}

	p, err := c.postForm(ctx, session, c.endpoints.QueryURL, withCredentials(fields, username, password))
	if err != nil {
		return nil, err
	}
	return p.document()
}

// findExpiry locates the element whose own text carries the expiry label
// and returns the text of the next sibling cell.
func findExpiry(doc *goquery.Document) (string, bool) {
	var (
		value string
		found bool
	)

	doc.Find("body *").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !ownTextContains(s, expiryLabel) {
			return true
		}
		found = true
		value = cellText(s.NextAllFiltered("td").First())
		return false
	})

	return value, found
}

// ownTextContains reports whether one of s's direct text nodes contains sub.
func ownTextContains(s *goquery.Selection, sub string) bool {
	contains := false
	s.Contents().EachWithBreak(func(_ int, n *goquery.Selection) bool {
		if goquery.NodeName(n) == "#text" && strings.Contains(n.Text(), sub) {
			contains = true
			return false
		}
		return true
	})
	return contains
}

func cellText(s *goquery.Selection) string {
	return strings.ReplaceAll(strings.TrimSpace(s.Text()), `\`, "")
}

// balanceQuery builds the balance query URL for username.
func balanceQuery(base, username string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse query URL: %w", err)
	}
	q := u.Query()
	q.Set("op", "getLeftTime")
	q.Set("op1", username)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
