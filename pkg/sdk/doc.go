// Package dishfinder is a Go client for the dishfinder HTTP API: natural
// language dish search over a restaurant catalog, plus single-item catalog
// edits and index introspection.
//
// # Search
//
//	client, _ := dishfinder.New("http://localhost:8080", dishfinder.WithAPIKey(key))
//	resp, _ := client.Search(ctx, dishfinder.SearchRequest{
//	    Query:      "острый веганский суп",
//	    MaxResults: 5,
//	})
//	for _, it := range resp.RankedItems {
//	    fmt.Println(it.Name, it.Relevance)
//	}
//
// # Catalog edits
//
//	created, _ := client.PutItem(ctx, dishfinder.Item{ID: "42", Name: "Том Ям", Category: "Супы"})
//	_ = client.DeleteItem(ctx, "42")
package dishfinder
