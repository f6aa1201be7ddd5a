package database

import (
	"fmt"
	"strings"
)

// ConstructDatabaseURL appends databaseName to the server URL in baseURL,
// keeping any query string and defaulting sslmode to disable. An empty
// databaseName returns baseURL unchanged.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	server, query, hasQuery := strings.Cut(strings.TrimRight(baseURL, "/"), "?")
	server = strings.TrimRight(server, "/")

	params := []string{}
	if hasQuery && query != "" {
		params = append(params, query)
	}
	if !strings.Contains(query, "sslmode=") {
		params = append(params, "sslmode=disable")
	}

	return fmt.Sprintf("%s/%s?%s", server, databaseName, strings.Join(params, "&"))
}
