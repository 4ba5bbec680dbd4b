package storefront

import "context"

// productByHandleQuery is the critical product query. It asks the API to
// match the selected options server-side and only includes the first
// variant, keeping the response small for products with large catalogs.
// The full variant listing is a separate deferred query.
const productByHandleQuery = `
query ProductByHandle($handle: String!, $selectedOptions: [SelectedOptionInput!]!) {
  product(handle: $handle) {
    id
    title
    handle
    vendor
    description
    descriptionHtml
    options {
      name
      values
    }
    featuredImage {
      url
      altText
      width
      height
    }
    seo {
      title
      description
    }
    selectedVariant: variantBySelectedOptions(selectedOptions: $selectedOptions) {
      ...VariantFields
    }
    variants(first: 1) {
      nodes {
        ...VariantFields
      }
    }
  }
}
` + variantFragment

const variantFragment = `
fragment VariantFields on ProductVariant {
  id
  title
  availableForSale
  sku
  price {
    amount
    currencyCode
  }
  compareAtPrice {
    amount
    currencyCode
  }
  selectedOptions {
    name
    value
  }
  image {
    url
    altText
    width
    height
  }
}
`

const productVariantsQuery = `
query ProductVariants($handle: String!) {
  product(handle: $handle) {
    variants(first: 250) {
      nodes {
        ...VariantFields
      }
    }
  }
}
` + variantFragment

const recommendedProductsQuery = `
query RecommendedProducts($count: Int!) {
  products(first: $count, sortKey: BEST_SELLING) {
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
  }
}
`

type productWire struct {
	Product
	SelectedVariant *ProductVariant            `json:"selectedVariant"`
	Variants        connection[ProductVariant] `json:"variants"`
}

// ProductByHandle runs the critical product query. selected may be empty,
// in which case the API matches nothing and the first variant is used by
// the caller. Returns ErrNotFound when no product has the handle.
func (c *Client) ProductByHandle(ctx context.Context, handle string, selected []SelectedOption) (*Product, error) {
	if handle == "" {
		return nil, xerrorsRequired("handle")
	}

	selVars := make([]map[string]string, 0, len(selected))
	for _, s := range selected {
		selVars = append(selVars, map[string]string{"name": s.Name, "value": s.Value})
	}

	var resp struct {
		Product *productWire `json:"product"`
	}
	err := c.run(ctx, "ProductByHandle", productByHandleQuery, map[string]any{
		"handle":          handle,
		"selectedOptions": selVars,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Product == nil {
		return nil, ErrNotFound
	}

	p := resp.Product.Product
	p.SelectedVariant = resp.Product.SelectedVariant
	if len(resp.Product.Variants.Nodes) > 0 {
		v := resp.Product.Variants.Nodes[0]
		p.FirstVariant = &v
	}
	return &p, nil
}

// ProductAllVariants is the deferred variant listing for a product page.
func (c *Client) ProductAllVariants(ctx context.Context, handle string) ([]ProductVariant, error) {
	if handle == "" {
		return nil, xerrorsRequired("handle")
	}

	var resp struct {
		Product *struct {
			Variants connection[ProductVariant] `json:"variants"`
		} `json:"product"`
	}
	err := c.run(ctx, "ProductVariants", productVariantsQuery, map[string]any{
		"handle": handle,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Product == nil {
		return nil, ErrNotFound
	}
	return resp.Product.Variants.Nodes, nil
}

// RecommendedProducts backs the deferred product rail on the home page.
func (c *Client) RecommendedProducts(ctx context.Context, count int) ([]ProductSummary, error) {
	if count <= 0 {
		count = 4
	}
	var resp struct {
		Products connection[ProductSummary] `json:"products"`
	}
	err := c.run(ctx, "RecommendedProducts", recommendedProductsQuery, map[string]any{
		"count": count,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Products.Nodes, nil
}
