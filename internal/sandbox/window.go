package sandbox

import (
	"net/url"

	"github.com/dop251/goja"
)

const userAgent = "Mozilla/5.0 (compatible; sinkwatch)"

// setupLocation defines location and navigator from the current URL.
func (r *Runtime) setupLocation() error {
	raw := r.url
	if raw == "" {
		raw = "about:blank"
	}
	u, err := url.Parse(raw)
	if err != nil {
		u = &url.URL{Scheme: "about", Opaque: "blank"}
	}

	location := r.vm.NewObject()
	fields := map[string]string{
		"href":     u.String(),
		"protocol": u.Scheme + ":",
		"host":     u.Host,
		"hostname": u.Hostname(),
		"port":     u.Port(),
		"pathname": u.EscapedPath(),
		"search":   prefixed("?", u.RawQuery),
		"hash":     prefixed("#", u.EscapedFragment()),
		"origin":   origin(u),
	}
	for k, v := range fields {
		if err := location.Set(k, v); err != nil {
			return err
		}
	}
	if err := location.Set("toString", func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(u.String())
	}); err != nil {
		return err
	}
	if err := r.vm.Set("location", location); err != nil {
		return err
	}

	navigator := r.vm.NewObject()
	if err := navigator.Set("userAgent", userAgent); err != nil {
		return err
	}
	return r.vm.Set("navigator", navigator)
}

func prefixed(prefix, s string) string {
	if s == "" {
		return ""
	}
	return prefix + s
}

func origin(u *url.URL) string {
	if u.Host == "" {
		return "null"
	}
	return u.Scheme + "://" + u.Host
}
