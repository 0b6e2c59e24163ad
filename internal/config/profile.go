package config

// Extraction defaults. These match the link-directory layout the tool was
// originally written against and are overridable per site in the
// configuration file.
const (
	// DefaultTargetPattern matches invite URLs of the target messaging
	// service found in anchors, scripts, and pagination fragments.
	DefaultTargetPattern = `https?://chat\.whatsapp\.com/[^\s"'<>]+`

	// DefaultHandlerName is the client-side function whose call sites mark
	// gateway links, as in onclick="singlegroup('https://.../group.php?id=7', ...)".
	DefaultHandlerName = "singlegroup"

	// DefaultGatewayPath is the URL fragment identifying gateway pages.
	DefaultGatewayPath = "group.php?id="
)

// Endpoint describes one incremental-load ("load more") endpoint of a site.
// Each pagination step POSTs a form with the count parameter set to
// Start + (step-1)*Stride, mirroring the site's own client-side loader.
type Endpoint struct {
	// Path is the endpoint path relative to the site root,
	// e.g. "/load-more-cat.php".
	Path string `yaml:"path"`

	// CountParam is the form field carrying the monotonically increasing
	// item count, e.g. "commentNewCount".
	CountParam string `yaml:"countParam"`

	// CategoryParam is the form field carrying the category id. Empty for
	// endpoints that are not category-scoped (e.g. the homepage loader).
	CategoryParam string `yaml:"categoryParam,omitempty"`

	// Start is the count value of the first request.
	Start int `yaml:"start"`

	// Stride is the count increment per request.
	Stride int `yaml:"stride"`

	// Sentinel is an optional substring whose presence in a response body
	// marks the end of pagination, in addition to the empty-body and
	// no-new-links end conditions.
	Sentinel string `yaml:"sentinel,omitempty"`
}

// Profile holds the per-site extraction knobs: how to recognize target
// links, how to recognize gateway links, which pagination endpoints exist,
// and any credentials needed to crawl the site.
//
// Design decision: Extraction rules live in a table keyed by hostname, so
// supporting a new directory site means adding a profile, not a function.
type Profile struct {
	// TargetPattern is the regular expression matching target-domain URLs.
	TargetPattern string `yaml:"targetPattern,omitempty"`

	// HandlerName is the client-side call identifier marking gateway links.
	HandlerName string `yaml:"handlerName,omitempty"`

	// GatewayPath is the URL fragment identifying gateway pages.
	GatewayPath string `yaml:"gatewayPath,omitempty"`

	// Endpoints lists the site's incremental-load endpoints.
	Endpoints []Endpoint `yaml:"endpoints,omitempty"`

	// Cookie is an HTTP cookie sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global crawl depth for this site. Zero means
	// use the global setting.
	Depth int `yaml:"depth,omitempty"`
}

// DefaultProfile returns the profile used when a site has no entry in the
// configuration file.
func DefaultProfile() Profile {
	return Profile{
		TargetPattern: DefaultTargetPattern,
		HandlerName:   DefaultHandlerName,
		GatewayPath:   DefaultGatewayPath,
		Endpoints: []Endpoint{
			{
				Path:          "/load-more-cat.php",
				CountParam:    "commentNewCount",
				CategoryParam: "catid",
				Start:         12,
				Stride:        12,
			},
			{
				Path:       "/more-groups.php",
				CountParam: "commentNewCount",
				Start:      16,
				Stride:     8,
			},
		},
	}
}

// File represents the structure of the .linkharvest configuration file.
type File struct {
	// Sites maps hostnames to their site-specific profiles.
	// Keys are bare hostnames, e.g. "realgrouplinks.com".
	Sites map[string]Profile `yaml:"sites,omitempty"`

	// Defaults contains the profile applied to all sites unless overridden
	// in a site-specific entry.
	Defaults Profile `yaml:"defaults,omitempty"`
}

// GetProfile returns the effective profile for a hostname. It starts from
// the built-in defaults, layers the file-level defaults, then the
// site-specific entry, field by field.
func (cf *File) GetProfile(host string) Profile {
	result := DefaultProfile()

	if cf == nil {
		return result
	}

	result = mergeProfile(result, cf.Defaults)
	if site, ok := cf.Sites[host]; ok {
		result = mergeProfile(result, site)
	}

	return result
}

// mergeProfile overlays non-zero fields of over onto base.
func mergeProfile(base, over Profile) Profile {
	if over.TargetPattern != "" {
		base.TargetPattern = over.TargetPattern
	}
	if over.HandlerName != "" {
		base.HandlerName = over.HandlerName
	}
	if over.GatewayPath != "" {
		base.GatewayPath = over.GatewayPath
	}
	if len(over.Endpoints) > 0 {
		base.Endpoints = over.Endpoints
	}
	if over.Cookie != "" {
		base.Cookie = over.Cookie
	}
	if len(over.Headers) > 0 {
		if base.Headers == nil {
			base.Headers = make(map[string]string)
		}
		for k, v := range over.Headers {
			base.Headers[k] = v
		}
	}
	if over.Depth != 0 {
		base.Depth = over.Depth
	}
	return base
}
