package storefront

import "context"

const articleByHandleQuery = `
query ArticleByHandle($blogHandle: String!, $articleHandle: String!) {
  blog(handle: $blogHandle) {
    articleByHandle(handle: $articleHandle) {
      id
      title
      handle
      contentHtml
      excerpt
      publishedAt
      authorV2 {
        name
      }
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
    }
  }
}
`

const articlesQuery = `
query Articles($blogHandle: String!, $first: Int!, $cursor: String) {
  blog(handle: $blogHandle) {
    title
    articles(first: $first, after: $cursor) {
      nodes {
        id
        title
        handle
        excerpt
        publishedAt
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
}
`

type articleWire struct {
	Article
	AuthorV2 *struct {
		Name string `json:"name"`
	} `json:"authorV2"`
}

// ArticleByHandle fetches one article from a blog. Either handle missing
// yields ErrNotFound.
func (c *Client) ArticleByHandle(ctx context.Context, blogHandle, articleHandle string) (*Article, error) {
	if blogHandle == "" {
		return nil, xerrorsRequired("blogHandle")
	}
	if articleHandle == "" {
		return nil, xerrorsRequired("articleHandle")
	}

	var resp struct {
		Blog *struct {
			Article *articleWire `json:"articleByHandle"`
		} `json:"blog"`
	}
	err := c.run(ctx, "ArticleByHandle", articleByHandleQuery, map[string]any{
		"blogHandle":    blogHandle,
		"articleHandle": articleHandle,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Blog == nil || resp.Blog.Article == nil {
		return nil, ErrNotFound
	}

	a := resp.Blog.Article.Article
	if resp.Blog.Article.AuthorV2 != nil {
		a.AuthorName = resp.Blog.Article.AuthorV2.Name
	}
	return &a, nil
}

// Blog groups a blog title with a page of its articles.
type Blog struct {
	Title    string
	Articles []Article
	Page     PageInfo
}

// Articles fetches a page of a blog's article listing.
func (c *Client) Articles(ctx context.Context, blogHandle string, first int, cursor string) (*Blog, error) {
	if blogHandle == "" {
		return nil, xerrorsRequired("blogHandle")
	}
	if first <= 0 {
		first = DefaultPageSize
	}
	vars := map[string]any{
		"blogHandle": blogHandle,
		"first":      first,
	}
	if cursor != "" {
		vars["cursor"] = cursor
	}

	var resp struct {
		Blog *struct {
			Title    string              `json:"title"`
			Articles connection[Article] `json:"articles"`
		} `json:"blog"`
	}
	if err := c.run(ctx, "Articles", articlesQuery, vars, &resp); err != nil {
		return nil, err
	}
	if resp.Blog == nil {
		return nil, ErrNotFound
	}
	return &Blog{
		Title:    resp.Blog.Title,
		Articles: resp.Blog.Articles.Nodes,
		Page:     resp.Blog.Articles.PageInfo,
	}, nil
}
