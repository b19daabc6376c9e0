package admin

import (
	"net/url"
	"strconv"
)

func approvedPageURL(search string, perPage, page int) string {
	v := url.Values{}
	v.Set("tab", TabApproved)

	if search != "" {
		v.Set("q", search)
	}

	v.Set("per_page", strconv.Itoa(perPage))
	v.Set("page", strconv.Itoa(page))

	return "?" + v.Encode()
}
