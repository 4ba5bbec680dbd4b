package storefront

import (
	"context"
	"strings"
)

const policiesQuery = `
query Policies {
  shop {
    privacyPolicy {
      id
      title
      handle
      body
    }
    shippingPolicy {
      id
      title
      handle
      body
    }
    termsOfService {
      id
      title
      handle
      body
    }
    refundPolicy {
      id
      title
      handle
      body
    }
  }
}
`

// Policies returns every published shop policy, skipping unset ones.
func (c *Client) Policies(ctx context.Context) ([]Policy, error) {
	var resp struct {
		Shop struct {
			PrivacyPolicy  *Policy `json:"privacyPolicy"`
			ShippingPolicy *Policy `json:"shippingPolicy"`
			TermsOfService *Policy `json:"termsOfService"`
			RefundPolicy   *Policy `json:"refundPolicy"`
		} `json:"shop"`
	}
	if err := c.run(ctx, "Policies", policiesQuery, nil, &resp); err != nil {
		return nil, err
	}

	var out []Policy
	for _, p := range []*Policy{
		resp.Shop.PrivacyPolicy,
		resp.Shop.ShippingPolicy,
		resp.Shop.TermsOfService,
		resp.Shop.RefundPolicy,
	} {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// PolicyByHandle fetches one policy. Handles are matched case-insensitively
// against the canonical kebab-case handle; callers redirect non-canonical
// casings before rendering.
func (c *Client) PolicyByHandle(ctx context.Context, handle string) (*Policy, error) {
	if handle == "" {
		return nil, xerrorsRequired("handle")
	}

	policies, err := c.Policies(ctx)
	if err != nil {
		return nil, err
	}
	for i := range policies {
		if strings.EqualFold(policies[i].Handle, handle) {
			return &policies[i], nil
		}
	}
	return nil, ErrNotFound
}
