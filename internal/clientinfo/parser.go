package clientinfo

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
)

type ClientInfo struct {
	Browser        string
	BrowserVersion string
	OS             string
	DeviceFamily   string
	Bot            bool
}

type Parser interface {
	Parse(raw string) ClientInfo
}

type UserAgentParser struct{}

func NewUserAgentParser() UserAgentParser { return UserAgentParser{} }

func (UserAgentParser) Parse(raw string) ClientInfo {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ClientInfo{Browser: "Unknown", OS: "Unknown", DeviceFamily: "Other"}
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	info := ClientInfo{
		Browser:        orUnknown(name),
		BrowserVersion: majorVersion(version),
		OS:             orUnknown(ua.OSInfo().Name),
		DeviceFamily:   deviceFamily(ua, raw),
		Bot:            ua.Bot(),
	}
	if v := majorVersion(ua.OSInfo().Version); v != "" {
		info.OS = info.OS + " " + v
	}
	return info
}

func deviceFamily(ua *useragent.UserAgent, raw string) string {
	lower := strings.ToLower(raw)
	platform := ua.Platform()
	switch {
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"):
		return "Tablet " + platform
	case strings.Contains(lower, "smart-tv"), strings.Contains(lower, "smarttv"), strings.Contains(lower, "googletv"), strings.Contains(lower, "appletv"):
		return "TV"
	case ua.Mobile():
		return "Mobile " + platform
	case platform == "":
		return "Other"
	default:
		return platform
	}
}

// ClassifyDevice maps a device family onto the closed device type set.
func ClassifyDevice(family string) domain.DeviceType {
	f := strings.ToLower(family)
	switch {
	case strings.Contains(f, "mobile"), strings.Contains(f, "phone"):
		return domain.DeviceTypeMobile
	case strings.Contains(f, "tablet"), strings.Contains(f, "ipad"):
		return domain.DeviceTypeTablet
	case strings.Contains(f, "tv"):
		return domain.DeviceTypeTV
	default:
		return domain.DeviceTypeDesktop
	}
}

// DeviceName renders "<browser> on <os> (<type>)".
func DeviceName(info ClientInfo, deviceType domain.DeviceType) string {
	browser := info.Browser
	if info.BrowserVersion != "" {
		browser = browser + " " + info.BrowserVersion
	}
	return fmt.Sprintf("%s on %s (%s)", browser, info.OS, deviceType)
}

func majorVersion(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexAny(v, "._"); i >= 0 {
		return v[:i]
	}
	return v
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "Unknown"
	}
	return v
}
