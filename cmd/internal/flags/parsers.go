package flags

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strings"

	"go.senan.xyz/nddedup/notifications"
)

var _ flag.Value = (*notificationsParser)(nil)
var _ flag.Value = (*extsParser)(nil)

type notificationsParser struct{ *notifications.Notifications }

func (n *notificationsParser) Set(value string) error {
	eventsRaw, uri, ok := strings.Cut(value, " ")
	if !ok {
		return fmt.Errorf("invalid notification uri format. expected eg \"ev1,ev2 uri\"")
	}
	var lineErrs []error
	for _, ev := range strings.Split(eventsRaw, ",") {
		ev, uri = strings.TrimSpace(ev), strings.TrimSpace(uri)
		err := n.AddURI(notifications.Event(ev), uri)
		lineErrs = append(lineErrs, err)
	}
	return errors.Join(lineErrs...)
}
func (n notificationsParser) String() string {
	if n.Notifications == nil {
		return ""
	}
	var parts []string
	n.Notifications.IterMappings(func(e notifications.Event, uri string) {
		url, _ := url.Parse(uri)
		parts = append(parts, fmt.Sprintf("%s: %s://%s/...", e, url.Scheme, url.Host))
	})
	return strings.Join(parts, ", ")
}

type extsParser struct{ exts *[]string }

func (p *extsParser) Set(value string) error {
	value = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), ".")
	if value == "" {
		return fmt.Errorf("empty extension")
	}
	*p.exts = append(*p.exts, value)
	return nil
}
func (p extsParser) String() string {
	if p.exts == nil {
		return ""
	}
	return strings.Join(*p.exts, ", ")
}
