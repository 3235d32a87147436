package identity

import (
	"fmt"
	"strings"

	"github.com/edvin/dbaas/internal/transport"
)

// EndpointKind selects which URL flavor of an endpoint to use.
type EndpointKind string

const (
	EndpointPublic   EndpointKind = "public"
	EndpointAdmin    EndpointKind = "admin"
	EndpointInternal EndpointKind = "internal"
)

// ServiceCatalog is the identity service's directory of endpoints, decoded
// from either of the two historical wire shapes (nested access.serviceCatalog
// or a flat endpoints list).
type ServiceCatalog struct {
	Services []Service
}

type Service struct {
	Name      string
	Type      string
	Endpoints []Endpoint
}

type Endpoint struct {
	Region      string
	PublicURL   string
	AdminURL    string
	InternalURL string
}

// URL returns the endpoint URL for the requested kind, or "" when the
// catalog entry does not carry one.
func (e Endpoint) URL(kind EndpointKind) string {
	switch kind {
	case EndpointAdmin:
		return e.AdminURL
	case EndpointInternal:
		return e.InternalURL
	default:
		return e.PublicURL
	}
}

// The three catalog filters are pure and commute; composition order never
// changes the result set.

func filterType(services []Service, serviceType string) []Service {
	if serviceType == "" {
		return services
	}
	var out []Service
	for _, s := range services {
		if s.Type == serviceType {
			out = append(out, s)
		}
	}
	return out
}

func filterName(services []Service, serviceName string) []Service {
	if serviceName == "" {
		return services
	}
	var out []Service
	for _, s := range services {
		if s.Name == serviceName {
			out = append(out, s)
		}
	}
	return out
}

func filterRegion(endpoints []Endpoint, region string) []Endpoint {
	if region == "" {
		return endpoints
	}
	var out []Endpoint
	for _, e := range endpoints {
		if e.Region == region {
			out = append(out, e)
		}
	}
	return out
}

// ResolveEndpoint applies the catalog lookup rules: filter services by type,
// then (when more than one remains and serviceName is set) by name, then
// filter their endpoints by region, and finally select the URL of the
// requested kind. Exactly one URL must survive.
func ResolveEndpoint(catalog *ServiceCatalog, serviceType, serviceName, region string, kind EndpointKind) (string, error) {
	services := filterType(catalog.Services, serviceType)
	if len(services) > 1 {
		services = filterName(services, serviceName)
	}

	var urls []string
	for _, s := range services {
		for _, e := range filterRegion(s.Endpoints, region) {
			if u := e.URL(kind); u != "" {
				urls = append(urls, u)
			}
		}
	}

	switch len(urls) {
	case 0:
		return "", transport.NewError(transport.KindEndpointNotFound,
			"no endpoint for service type %q (name %q, region %q, %s)",
			serviceType, serviceName, region, kind)
	case 1:
		return urls[0], nil
	default:
		return "", transport.NewError(transport.KindAmbiguousEndpoints,
			"multiple endpoints match service type %q (name %q, region %q, %s): %s",
			serviceType, serviceName, region, kind, strings.Join(urls, ", "))
	}
}

// flatEndpoint is one entry of the flat "endpoints" catalog shape, where
// every entry carries its own service name and type.
type flatEndpoint struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Region      string `json:"region"`
	PublicURL   string `json:"publicURL"`
	AdminURL    string `json:"adminURL"`
	InternalURL string `json:"internalURL"`
}

// catalogFromFlat folds a flat endpoint list into the nested shape so both
// wire formats resolve identically.
func catalogFromFlat(endpoints []flatEndpoint) *ServiceCatalog {
	index := map[string]int{}
	catalog := &ServiceCatalog{}
	for _, fe := range endpoints {
		key := fe.Type + "\x00" + fe.Name
		i, ok := index[key]
		if !ok {
			catalog.Services = append(catalog.Services, Service{Name: fe.Name, Type: fe.Type})
			i = len(catalog.Services) - 1
			index[key] = i
		}
		catalog.Services[i].Endpoints = append(catalog.Services[i].Endpoints, Endpoint{
			Region:      fe.Region,
			PublicURL:   fe.PublicURL,
			AdminURL:    fe.AdminURL,
			InternalURL: fe.InternalURL,
		})
	}
	return catalog
}

// ParseEndpointKind normalizes a user-supplied endpoint kind string.
func ParseEndpointKind(s string) (EndpointKind, error) {
	switch strings.ToLower(strings.TrimSuffix(s, "URL")) {
	case "", "public":
		return EndpointPublic, nil
	case "admin":
		return EndpointAdmin, nil
	case "internal":
		return EndpointInternal, nil
	}
	return "", fmt.Errorf("unknown endpoint kind %q", s)
}
