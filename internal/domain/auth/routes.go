package auth

import (
	"errors"
	"fmt"
	"strings"
)

// RouteClass is the access category of a request path.
type RouteClass string

const (
	RoutePublic        RouteClass = "public"
	RouteAuthenticated RouteClass = "authenticated"
	RouteAdminOnly     RouteClass = "admin_only"
)

// RouteRule maps a path pattern to a RouteClass.
// Prefix rules match the pattern itself and any sub-path ("/admin" matches
// "/admin" and "/admin/x" but not "/administrator"). Exact rules match only
// the pattern.
type RouteRule struct {
	Pattern string
	Class   RouteClass
	Exact   bool
}

func (r RouteRule) matches(path string) bool {
	if r.Exact {
		return path == r.Pattern
	}
	if r.Pattern == "/" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, r.Pattern) {
		return false
	}
	rest := path[len(r.Pattern):]
	return rest == "" || rest[0] == '/' || strings.HasSuffix(r.Pattern, "/")
}

// RouteTable classifies paths by longest matching pattern.
// Among rules of equal pattern length the first declared wins.
// Paths no rule matches are classified as RouteAuthenticated.
type RouteTable struct {
	rules []RouteRule
}

// NewRouteTable validates rules and builds a table preserving declaration order.
func NewRouteTable(rules []RouteRule) (*RouteTable, error) {
	var errs []error
	for i, r := range rules {
		if !strings.HasPrefix(r.Pattern, "/") {
			errs = append(errs, fmt.Errorf("route rule %d: pattern %q must start with /", i, r.Pattern))
		}
		switch r.Class {
		case RoutePublic, RouteAuthenticated, RouteAdminOnly:
		default:
			errs = append(errs, fmt.Errorf("route rule %d: unknown class %q", i, r.Class))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &RouteTable{rules: append([]RouteRule(nil), rules...)}, nil
}

// DefaultRouteRules returns the gateway's static route list.
func DefaultRouteRules() []RouteRule {
	return []RouteRule{
		{Pattern: "/", Class: RoutePublic, Exact: true},
		{Pattern: "/login", Class: RoutePublic},
		{Pattern: "/auth", Class: RoutePublic},
		{Pattern: "/logout", Class: RoutePublic},
		{Pattern: "/unauthorized", Class: RoutePublic},
		{Pattern: "/healthz", Class: RoutePublic},
		{Pattern: "/static", Class: RoutePublic},
		{Pattern: "/about", Class: RoutePublic},
		{Pattern: "/services", Class: RoutePublic},
		{Pattern: "/contact", Class: RoutePublic},
		{Pattern: "/support", Class: RoutePublic},
		{Pattern: "/portal", Class: RouteAuthenticated},
		{Pattern: "/api", Class: RouteAuthenticated},
		{Pattern: "/api/admin", Class: RouteAdminOnly},
		{Pattern: "/admin", Class: RouteAdminOnly},
		{Pattern: "/admin/login", Class: RoutePublic},
		{Pattern: "/admin/error", Class: RoutePublic},
	}
}

// DefaultRouteTable builds a table from DefaultRouteRules.
func DefaultRouteTable() *RouteTable {
	t, err := NewRouteTable(DefaultRouteRules())
	if err != nil {
		panic(err) // static rules; unreachable
	}
	return t
}

// Classify returns the class of the longest rule matching path.
func (t *RouteTable) Classify(path string) RouteClass {
	if path == "" {
		path = "/"
	}
	best := -1
	bestLen := -1
	for i, r := range t.rules {
		if !r.matches(path) {
			continue
		}
		if len(r.Pattern) > bestLen {
			best, bestLen = i, len(r.Pattern)
		}
	}
	if best < 0 {
		return RouteAuthenticated
	}
	return t.rules[best].Class
}

// Outcome is the Route Guard verdict for a request.
type Outcome string

const (
	OutcomeAllow                  Outcome = "allow"
	OutcomeRedirectToLogin        Outcome = "redirect_to_login"
	OutcomeRedirectToUnauthorized Outcome = "redirect_to_unauthorized"
)

// Authorize decides what to do with a request to path.
// session must be nil when the caller has no valid session.
func (t *RouteTable) Authorize(path string, session *Session) Outcome {
	return AuthorizeClass(t.Classify(path), session)
}

// AuthorizeClass applies the guard state machine to an already classified path.
func AuthorizeClass(class RouteClass, session *Session) Outcome {
	switch class {
	case RoutePublic:
		return OutcomeAllow
	case RouteAdminOnly:
		if session == nil {
			return OutcomeRedirectToLogin
		}
		if !session.IsAdmin() {
			return OutcomeRedirectToUnauthorized
		}
		return OutcomeAllow
	default:
		if session == nil {
			return OutcomeRedirectToLogin
		}
		return OutcomeAllow
	}
}
