package claims

// Package claims turns provider profile documents into domain identities
// using configurable JMESPath expressions.

import (
	"errors"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/nextphaseit/portal-gateway/internal/domain/auth"
)

// Mapping holds one JMESPath expression per identity field.
type Mapping struct {
	Subject     string
	Email       string
	DisplayName string
}

// GraphMapping reads a Microsoft Graph /me document.
// mail is empty for accounts without a mailbox, so userPrincipalName is the fallback.
var GraphMapping = Mapping{
	Subject:     "id",
	Email:       "mail || userPrincipalName",
	DisplayName: "displayName || givenName",
}

// OIDCMapping reads ID token or UserInfo claims.
// An email with email_verified=false is skipped in favor of the principal name.
var OIDCMapping = Mapping{
	Subject:     "sub",
	Email:       "(email_verified != `false` && email) || preferred_username || upn",
	DisplayName: "name || nickname || email",
}

// Mapper evaluates a Mapping against decoded JSON documents.
type Mapper struct {
	provider domainauth.ProviderName
	m        Mapping
}

// NewMapper validates every expression. Empty fields in override keep the base expression.
func NewMapper(provider domainauth.ProviderName, base, override Mapping) (*Mapper, error) {
	m := base
	if override.Subject != "" {
		m.Subject = override.Subject
	}
	if override.Email != "" {
		m.Email = override.Email
	}
	if override.DisplayName != "" {
		m.DisplayName = override.DisplayName
	}

	var problems []string
	for field, expr := range map[string]string{"subject": m.Subject, "email": m.Email, "display name": m.DisplayName} {
		if strings.TrimSpace(expr) == "" {
			problems = append(problems, field+" expression is required")
			continue
		}
		if _, err := jmespath.Compile(expr); err != nil {
			problems = append(problems, fmt.Sprintf("%s expression %q: %v", field, expr, err))
		}
	}
	if err := domainauth.NewConfigurationError(string(provider)+" claims", problems...); err != nil {
		return nil, err
	}
	return &Mapper{provider: provider, m: m}, nil
}

// Identity maps doc to an Identity. A missing subject or an email without a
// domain is reported as ErrProfileFetchFailed.
func (mp *Mapper) Identity(doc map[string]any) (domainauth.Identity, error) {
	subject, err := mp.lookup(mp.m.Subject, doc)
	if err != nil {
		return domainauth.Identity{}, err
	}
	email, err := mp.lookup(mp.m.Email, doc)
	if err != nil {
		return domainauth.Identity{}, err
	}
	name, err := mp.lookup(mp.m.DisplayName, doc)
	if err != nil {
		return domainauth.Identity{}, err
	}

	email = domainauth.NormalizeEmail(email)
	var errs []error
	if subject == "" {
		errs = append(errs, errors.New("profile has no subject"))
	}
	if domainauth.EmailDomain(email) == "" {
		errs = append(errs, errors.New("profile has no usable email"))
	}
	if err := errors.Join(errs...); err != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: %w", domainauth.ErrProfileFetchFailed, err)
	}

	if name == "" {
		name = email
	}
	return domainauth.Identity{
		SubjectID:   subject,
		Email:       email,
		DisplayName: strings.TrimSpace(name),
		Provider:    mp.provider,
	}, nil
}

func (mp *Mapper) lookup(expr string, doc map[string]any) (string, error) {
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return "", fmt.Errorf("%w: evaluate %q: %w", domainauth.ErrProfileFetchFailed, expr, err)
	}
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(val), nil
	case float64:
		return fmt.Sprintf("%.0f", val), nil
	case bool:
		// `a && b` yields false when a is false and b is absent.
		return "", nil
	default:
		return "", fmt.Errorf("%w: %q returned %T", domainauth.ErrProfileFetchFailed, expr, v)
	}
}
