package linkedin

import (
	"context"
	"net/http"
	"strings"
)

const (
	OrganizationURNPrefix = "urn:li:organization:"

	// The projection resolves the organization name next to its URN.
	organizationACLsQuery = "q=roleAssignee&role=ADMINISTRATOR&projection=(elements*(*,organization~(localizedName)))"
)

// Organization is a page the member administers.
type Organization struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URN   string `json:"urn"`
	Role  string `json:"role,omitempty"`
	State string `json:"state,omitempty"`
}

type organizationACLs struct {
	Elements []struct {
		Organization         string `json:"organization"`
		Role                 string `json:"role"`
		State                string `json:"state"`
		OrganizationResolved *struct {
			LocalizedName string `json:"localizedName"`
		} `json:"organization~"`
	} `json:"elements"`
}

// OrganizationID returns the part of a URN after the last colon. Input
// without a colon is returned unchanged, so the function is idempotent.
func OrganizationID(urn string) string {
	if i := strings.LastIndex(urn, ":"); i >= 0 {
		return urn[i+1:]
	}
	return urn
}

// OrganizationURN builds the author/owner URN for an organization id.
func OrganizationURN(orgID string) string {
	return OrganizationURNPrefix + OrganizationID(orgID)
}

// ListAdministeredPages returns the organizations the member is an
// ADMINISTRATOR of. An empty slice is a valid answer.
func (c *Client) ListAdministeredPages(ctx context.Context, accessToken string, opts ...CallOption) ([]Organization, error) {
	if accessToken == "" {
		return nil, &UpstreamError{Op: opPages.desc, Err: ErrMissingAccessToken}
	}
	o := applyCallOptions(callOptions{}, opts)

	var acls organizationACLs
	_, err := c.sendJSON(ctx, request{
		op:          opPages,
		method:      http.MethodGet,
		url:         OrganizationACLsURL + "?" + organizationACLsQuery,
		accessToken: accessToken,
		timeout:     o.timeout,
	}, nil, &acls)
	if err != nil {
		return nil, err
	}

	orgs := make([]Organization, 0, len(acls.Elements))
	for _, el := range acls.Elements {
		if el.Organization == "" {
			continue
		}
		name := el.Organization
		if el.OrganizationResolved != nil && el.OrganizationResolved.LocalizedName != "" {
			name = el.OrganizationResolved.LocalizedName
		}
		orgs = append(orgs, Organization{
			ID:    OrganizationID(el.Organization),
			Name:  name,
			URN:   el.Organization,
			Role:  el.Role,
			State: el.State,
		})
	}

	return orgs, nil
}
