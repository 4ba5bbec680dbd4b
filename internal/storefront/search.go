package storefront

import "context"

const searchQuery = `
query SearchProducts($query: String!, $first: Int!) {
  products(first: $first, query: $query) {
    nodes {
      id
      title
      handle
      featuredImage {
        url
        altText
        width
        height
      }
      priceRange {
        minVariantPrice {
          amount
          currencyCode
        }
      }
    }
    pageInfo {
      hasNextPage
      hasPreviousPage
      endCursor
      startCursor
    }
  }
}
`

const sitemapQuery = `
query SitemapEntries($first: Int!) {
  products(first: $first) {
    nodes {
      handle
      updatedAt
    }
  }
  collections(first: $first) {
    nodes {
      handle
      updatedAt
    }
  }
}
`

// Search runs a product text search; an empty query returns no results
// without touching the API.
func (c *Client) Search(ctx context.Context, query string, first int) ([]ProductSummary, PageInfo, error) {
	if query == "" {
		return nil, PageInfo{}, nil
	}
	if first <= 0 {
		first = DefaultPageSize
	}

	var resp struct {
		Products connection[ProductSummary] `json:"products"`
	}
	err := c.run(ctx, "SearchProducts", searchQuery, map[string]any{
		"query": query,
		"first": first,
	}, &resp)
	if err != nil {
		return nil, PageInfo{}, err
	}
	return resp.Products.Nodes, resp.Products.PageInfo, nil
}

// SitemapEntry is one URL-worthy handle for sitemap.xml generation.
type SitemapEntry struct {
	Handle    string `json:"handle"`
	UpdatedAt string `json:"updatedAt"`
}

// SitemapEntries lists product and collection handles for the sitemap.
func (c *Client) SitemapEntries(ctx context.Context, first int) (products, collections []SitemapEntry, err error) {
	if first <= 0 {
		first = 250
	}
	var resp struct {
		Products    connection[SitemapEntry] `json:"products"`
		Collections connection[SitemapEntry] `json:"collections"`
	}
	if err := c.run(ctx, "SitemapEntries", sitemapQuery, map[string]any{"first": first}, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Products.Nodes, resp.Collections.Nodes, nil
}
