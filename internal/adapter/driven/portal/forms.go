package portal

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ericfisherdev/nauta/internal/domain/model"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

// FormFieldExtractor returns the name/value pairs of every input element in
// markup that has both attributes. Inputs missing either one are skipped.
type FormFieldExtractor interface {
	ExtractFields(markup string) (map[string]string, error)
}

// HTMLFormExtractor implements FormFieldExtractor with goquery.
type HTMLFormExtractor struct{}

// ExtractFields parses markup and collects its inputs.
func (HTMLFormExtractor) ExtractFields(markup string) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse form markup: %w", err)
	}

	fields := make(map[string]string)
	doc.Find("input").Each(func(_ int, s *goquery.Selection) {
		name, hasName := s.Attr("name")
		value, hasValue := s.Attr("value")
		if !hasName || !hasValue {
			return
		}
		fields[name] = value
	})
	return fields, nil
}

// readForm locates the form matched by selector in doc and returns its
// resolved action and fields. page is the URL the document was served from.
func (c *Client) readForm(doc *goquery.Document, selector string, page *url.URL) (model.LoginForm, error) {
	form := doc.Find(selector).First()
	if form.Length() == 0 {
		return model.LoginForm{}, fmt.Errorf("%w: %s", driven.ErrFormNotFound, selector)
	}

	markup, err := goquery.OuterHtml(form)
	if err != nil {
		return model.LoginForm{}, fmt.Errorf("render form %s: %w", selector, err)
	}

	fields, err := c.extractor.ExtractFields(markup)
	if err != nil {
		return model.LoginForm{}, err
	}

	action, err := resolveAction(page, form.AttrOr("action", ""))
	if err != nil {
		return model.LoginForm{}, err
	}

	return model.LoginForm{Action: action, Fields: fields}, nil
}

// resolveAction turns a form action into an absolute URL. An empty action
// submits back to the page itself.
func resolveAction(page *url.URL, action string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(action))
	if err != nil {
		return "", fmt.Errorf("parse form action %q: %w", action, err)
	}
	if page == nil {
		return ref.String(), nil
	}
	return page.ResolveReference(ref).String(), nil
}

// withCredentials returns a copy of fields with username and password set.
func withCredentials(fields map[string]string, username, password string) url.Values {
	values := make(url.Values, len(fields)+2)
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("username", username)
	values.Set("password", password)
	return values
}
