package storefront

import "context"

// DefaultPageSize is how many products a collection page shows per fetch.
const DefaultPageSize = 8

const collectionByHandleQuery = `
query CollectionByHandle($handle: String!, $first: Int!, $cursor: String) {
  collection(handle: $handle) {
    id
    title
    handle
    description
    descriptionHtml
    image {
      url
      altText
      width
      height
    }
    seo {
      title
      description
    }
    products(first: $first, after: $cursor) {
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
}
`

const collectionsQuery = `
query Collections($first: Int!, $cursor: String) {
  collections(first: $first, after: $cursor) {
    nodes {
      id
      title
      handle
      image {
        url
        altText
        width
        height
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

const featuredCollectionQuery = `
query FeaturedCollection {
  collections(first: 1, sortKey: UPDATED_AT, reverse: true) {
    nodes {
      id
      title
      handle
      image {
        url
        altText
        width
        height
      }
    }
  }
}
`

// CollectionByHandle fetches one collection plus a page of its products.
// cursor is empty for the first page. Returns ErrNotFound for unknown
// handles.
func (c *Client) CollectionByHandle(ctx context.Context, handle string, first int, cursor string) (*Collection, error) {
	if handle == "" {
		return nil, xerrorsRequired("handle")
	}
	if first <= 0 {
		first = DefaultPageSize
	}

	vars := map[string]any{
		"handle": handle,
		"first":  first,
	}
	if cursor != "" {
		vars["cursor"] = cursor
	}

	var resp struct {
		Collection *struct {
			Collection
			Products connection[ProductSummary] `json:"products"`
		} `json:"collection"`
	}
	if err := c.run(ctx, "CollectionByHandle", collectionByHandleQuery, vars, &resp); err != nil {
		return nil, err
	}
	if resp.Collection == nil {
		return nil, ErrNotFound
	}

	col := resp.Collection.Collection
	col.Products = resp.Collection.Products.Nodes
	col.ProductsPage = resp.Collection.Products.PageInfo
	return &col, nil
}

// Collections fetches a page of the collection index.
func (c *Client) Collections(ctx context.Context, first int, cursor string) ([]CollectionSummary, PageInfo, error) {
	if first <= 0 {
		first = DefaultPageSize
	}
	vars := map[string]any{"first": first}
	if cursor != "" {
		vars["cursor"] = cursor
	}

	var resp struct {
		Collections connection[CollectionSummary] `json:"collections"`
	}
	if err := c.run(ctx, "Collections", collectionsQuery, vars, &resp); err != nil {
		return nil, PageInfo{}, err
	}
	return resp.Collections.Nodes, resp.Collections.PageInfo, nil
}

// FeaturedCollection is the critical query for the home page: the most
// recently updated collection.
func (c *Client) FeaturedCollection(ctx context.Context) (*CollectionSummary, error) {
	var resp struct {
		Collections connection[CollectionSummary] `json:"collections"`
	}
	if err := c.run(ctx, "FeaturedCollection", featuredCollectionQuery, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Collections.Nodes) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Collections.Nodes[0], nil
}
