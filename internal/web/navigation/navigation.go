// Package navigation provides utilities for managing navigation state, breadcrumbs and tabs.
package navigation

// BreadcrumbItem represents a single breadcrumb link.
type BreadcrumbItem struct {
	Title  string
	URL    string
	Active bool
}

// Tab is one tab of a tabbed page. Count is shown as a badge when positive.
type Tab struct {
	ID    string
	Title string
	URL   string
	Count int64
}

// Context represents the navigation context for a page.
type Context struct {
	ActiveSection string
	ActivePage    string
	Breadcrumbs   []BreadcrumbItem
	Tabs          []Tab
	PageTitle     string
}

// NewContext creates a new navigation context.
func NewContext(pageTitle, activeSection, activePage string) *Context {
	return &Context{
		PageTitle:     pageTitle,
		ActiveSection: activeSection,
		ActivePage:    activePage,
		Breadcrumbs:   make([]BreadcrumbItem, 0),
	}
}

// AddBreadcrumb adds a breadcrumb item to the context.
func (c *Context) AddBreadcrumb(title, url string, active bool) *Context {
	c.Breadcrumbs = append(c.Breadcrumbs, BreadcrumbItem{
		Title:  title,
		URL:    url,
		Active: active,
	})

	return c
}

// AddTab adds a tab to the context.
func (c *Context) AddTab(id, title, url string, count int64) *Context {
	c.Tabs = append(c.Tabs, Tab{ID: id, Title: title, URL: url, Count: count})

	return c
}

// HasTab reports whether a tab with id exists.
func (c *Context) HasTab(id string) bool {
	for _, t := range c.Tabs {
		if t.ID == id {
			return true
		}
	}

	return false
}

// IsActive checks if the given section and page match the current context.
func (c *Context) IsActive(section, page string) bool {
	return c.ActiveSection == section && c.ActivePage == page
}

// IsSectionActive checks if the given section is active.
func (c *Context) IsSectionActive(section string) bool {
	return c.ActiveSection == section
}
