package confluence

// Confluence v2 identifiers are strings on the wire.

// Space represents a Confluence space
type Space struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// Page represents a Confluence page
type Page struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Title    string  `json:"title"`
	SpaceID  string  `json:"spaceId"`
	ParentID string  `json:"parentId"`
	Version  Version `json:"version"`
	Body     *Body   `json:"body,omitempty"`
	Links    Links   `json:"_links"`
}

// Version tracks the edit revision of a page
type Version struct {
	Number  int    `json:"number"`
	Message string `json:"message"`
}

// Body holds the page content in one of the supported representations
type Body struct {
	Storage *BodyFormat `json:"storage,omitempty"`
	Wiki    *BodyFormat `json:"wiki,omitempty"`
}

// BodyFormat is the content of a page in a single representation
type BodyFormat struct {
	Representation string `json:"representation"`
	Value          string `json:"value"`
}

// Links carries the hypermedia links of a response
type Links struct {
	Next  string `json:"next"`
	WebUI string `json:"webui"`
}

// Folder represents a Confluence folder
type Folder struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ParentID string `json:"parentId"`
}

// User represents a Confluence user
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// SearchResult is a single CQL search hit
type SearchResult struct {
	Title   string         `json:"title"`
	Excerpt string         `json:"excerpt"`
	URL     string         `json:"url"`
	Content *SearchContent `json:"content,omitempty"`
}

// SearchContent identifies the content behind a search hit
type SearchContent struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Title  string `json:"title"`
}

// paged is the envelope of Confluence's cursor-paginated responses
type paged[T any] struct {
	Results []T   `json:"results"`
	Links   Links `json:"_links"`
}
