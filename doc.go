// Package dictcache provides an embeddable read-through cache of reference
// dictionaries served by a catalog API.
//
// Collections are refetched once their TTL elapses; form structures are
// fetched once and kept until a forced refresh. Lookups never fail hard:
// every method returns a usable value (an empty JSON array, a nil
// structure or a zero field) together with the error.
//
//	client, _ := dictcache.New(ctx,
//	    dictcache.WithBaseURL("https://catalog.example.com"),
//	    dictcache.WithToken(os.Getenv("CATALOG_TOKEN")),
//	)
//	defer client.Close()
//
//	companies, _ := client.GetDictionary(ctx, "Company", false)
//	title, _ := client.GetModelStructureField(ctx, "Company", "title")
//
// # Warm start
//
// With WithRedisSnapshot every successful fetch is also written to Redis,
// so a restarted process serves the last known data before the catalog
// API answers.
package dictcache
